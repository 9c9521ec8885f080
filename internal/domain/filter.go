package domain

// Wire defaults for a discovery request.
const (
	DefaultSortBy = "newest"
	DefaultPage   = 1
	DefaultLimit  = 12
)

// FilterSpec is the sparse set of optional criteria for a discovery request.
// Field names are part of the public query/response contract.
// Pointer fields are "unset" when nil.
type FilterSpec struct {
	Search           string   `json:"search,omitempty"`
	Category         string   `json:"category,omitempty"`
	MinPrice         *float64 `json:"minPrice,omitempty" validate:"omitempty,gte=0"`
	MaxPrice         *float64 `json:"maxPrice,omitempty" validate:"omitempty,gte=0"`
	InStock          *bool    `json:"inStock,omitempty"` // accepted and echoed, never compiled into a predicate
	Platforms        []string `json:"platforms,omitempty" validate:"omitempty,dive,required"`
	HasExternalLinks *bool    `json:"hasExternalLinks,omitempty"`
	IsNew            *bool    `json:"isNew,omitempty"`
	SortBy           string   `json:"sortBy"`
	Page             int      `json:"page" validate:"gte=1"`
	Limit            int      `json:"limit" validate:"gte=1,lte=100"`
	IncludeHits      bool     `json:"includeHits"`
}

// NewFilterSpec returns a FilterSpec with no criteria and the wire defaults applied.
func NewFilterSpec() FilterSpec {
	return FilterSpec{
		SortBy: DefaultSortBy,
		Page:   DefaultPage,
		Limit:  DefaultLimit,
	}
}

// Pagination is the metadata attached to a paginated result.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// PaginatedResult is one page of T together with its metadata and the filter that produced it.
type PaginatedResult[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Filters    FilterSpec `json:"filters"`
}

// ProductSuggestion is the projected form of a product used for type-ahead.
type ProductSuggestion struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// CategorySuggestion is the projected form of a category used for type-ahead.
type CategorySuggestion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SuggestionBundle groups the three kinds of search suggestions.
type SuggestionBundle struct {
	Products    []ProductSuggestion  `json:"products"`
	Categories  []CategorySuggestion `json:"categories"`
	Suggestions []string             `json:"suggestions"`
}
