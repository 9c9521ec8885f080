package discovery

import "product-discovery-service/internal/store"

// Recognized sort keys.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"
	SortPopular   = "popular"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
)

var sortPolicies = map[string]store.SortField{
	SortNewest:    store.Desc(store.FieldCreatedAt),
	SortPriceAsc:  store.Asc(store.FieldPrice),
	SortPriceDesc: store.Desc(store.FieldPrice),
	SortRating:    store.Desc(store.FieldRating),
	SortPopular:   store.Desc(store.FieldHits),
	SortNameAsc:   store.Asc(store.FieldName),
	SortNameDesc:  store.Desc(store.FieldName),
}

// ResolveSort maps a sort key to its ordering. Unknown keys, the empty one
// included, fall back to newest first.
func ResolveSort(key string) []store.SortField {
	if s, ok := sortPolicies[key]; ok {
		return []store.SortField{s}
	}
	return []store.SortField{sortPolicies[SortNewest]}
}
