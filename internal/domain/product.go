package domain

import (
	"time"
)

// Category represents a product category in the system.
// Products reference categories by id only; deleting a category never cascades.
type Category struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// ExternalLink points to the same product listed on another website.
type ExternalLink struct {
	WebsiteName string `json:"websiteName" bson:"websiteName" validate:"required,max=100"`
	URL         string `json:"url" bson:"url" validate:"required,url"`
}

// Product represents a product in the catalog.
// The json tags correspond to the fields expected in API responses/requests,
// the bson tags are the canonical document field names used by store predicates.
type Product struct {
	ID                 string         `json:"id" bson:"_id"`
	Name               string         `json:"name" bson:"name"`
	Description        string         `json:"description,omitempty" bson:"description,omitempty"`
	Price              float64        `json:"price" bson:"price"` // For currency, consider using a dedicated decimal type library
	CategoryID         string         `json:"categoryId,omitempty" bson:"categoryId,omitempty"`
	Images             []string       `json:"images,omitempty" bson:"images,omitempty"`
	ExternalLinks      []ExternalLink `json:"externalLinks,omitempty" bson:"externalLinks,omitempty"`
	AvailablePlatforms []string       `json:"availablePlatforms,omitempty" bson:"availablePlatforms,omitempty"`
	Rating             float64        `json:"rating,omitempty" bson:"rating"`
	ReviewCount        int64          `json:"reviewCount,omitempty" bson:"reviewCount"`
	Discount           float64        `json:"discount,omitempty" bson:"discount"`
	Hits               int64          `json:"hits,omitempty" bson:"hits"`
	LastViewed         *time.Time     `json:"lastViewed,omitempty" bson:"lastViewed,omitempty"`
	CreatedAt          time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// PrimaryImage returns the first image reference, or "" when the product has none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// HideCounters strips the view counters from a product copy that is about to be
// returned to a caller who did not ask for them.
func (p *Product) HideCounters() {
	p.Hits = 0
	p.LastViewed = nil
}

// UnknownProductName is recorded on analytics created for a product id that no longer resolves.
const UnknownProductName = "Unknown Product"

// ProductAnalytics holds the per-product counters. One record per product id,
// created lazily and never removed automatically together with the product.
type ProductAnalytics struct {
	ProductID   string     `json:"productId" bson:"_id"`
	ProductName string     `json:"productName" bson:"productName"`
	Views       int64      `json:"views" bson:"views"`
	Hits        int64      `json:"hits" bson:"hits"`
	AddsToCart  int64      `json:"addsToCart" bson:"addsToCart"`
	Purchases   int64      `json:"purchases" bson:"purchases"`
	LastViewed  *time.Time `json:"lastViewed,omitempty" bson:"lastViewed,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
}
