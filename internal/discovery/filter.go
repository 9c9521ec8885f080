package discovery

import (
	"regexp"
	"strings"
	"time"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// NewArrivalWindow is how old a product may be and still count as new.
const NewArrivalWindow = 30 * 24 * time.Hour

// A dimension derives at most one predicate from one FilterSpec criterion.
type dimension func(spec domain.FilterSpec, now time.Time) (store.Predicate, bool)

// InStock has no dimension: stock lives in a separate subsystem that is not joined here.
var dimensions = []dimension{
	searchTerm,
	category,
	priceRange,
	platforms,
	externalLinks,
	isNew,
}

// Compile folds every applicable criterion of spec into one conjunctive predicate.
// An empty spec compiles to store.All().
func Compile(spec domain.FilterSpec, now time.Time) store.Predicate {
	var preds []store.Predicate
	for _, d := range dimensions {
		if p, ok := d(spec, now); ok {
			preds = append(preds, p)
		}
	}
	return store.And(preds...)
}

// literal turns user input into a pattern matching it as a plain substring.
func literal(term string) string {
	return regexp.QuoteMeta(strings.TrimSpace(term))
}

func searchTerm(spec domain.FilterSpec, _ time.Time) (store.Predicate, bool) {
	if strings.TrimSpace(spec.Search) == "" {
		return store.Predicate{}, false
	}
	pattern := literal(spec.Search)
	return store.Or(
		store.Regex(store.FieldName, pattern),
		store.Regex(store.FieldDescription, pattern),
	), true
}

func category(spec domain.FilterSpec, _ time.Time) (store.Predicate, bool) {
	if spec.Category == "" {
		return store.Predicate{}, false
	}
	return store.Eq(store.FieldCategoryID, spec.Category), true
}

func priceRange(spec domain.FilterSpec, _ time.Time) (store.Predicate, bool) {
	switch {
	case spec.MinPrice != nil && spec.MaxPrice != nil:
		return store.And(
			store.Gte(store.FieldPrice, *spec.MinPrice),
			store.Lte(store.FieldPrice, *spec.MaxPrice),
		), true
	case spec.MinPrice != nil:
		return store.Gte(store.FieldPrice, *spec.MinPrice), true
	case spec.MaxPrice != nil:
		return store.Lte(store.FieldPrice, *spec.MaxPrice), true
	}
	return store.Predicate{}, false
}

func platforms(spec domain.FilterSpec, _ time.Time) (store.Predicate, bool) {
	if len(spec.Platforms) == 0 {
		return store.Predicate{}, false
	}
	return store.In(store.FieldAvailablePlatforms, spec.Platforms), true
}

func externalLinks(spec domain.FilterSpec, _ time.Time) (store.Predicate, bool) {
	if spec.HasExternalLinks == nil {
		return store.Predicate{}, false
	}
	if *spec.HasExternalLinks {
		// A stored null passes both $exists and a negated $size.
		return store.And(
			store.Exists(store.FieldExternalLinks),
			store.Not(store.IsNull(store.FieldExternalLinks)),
			store.Not(store.Size(store.FieldExternalLinks, 0)),
		), true
	}
	return store.Or(
		store.Missing(store.FieldExternalLinks),
		store.IsNull(store.FieldExternalLinks),
		store.Size(store.FieldExternalLinks, 0),
	), true
}

func isNew(spec domain.FilterSpec, now time.Time) (store.Predicate, bool) {
	if spec.IsNew == nil || !*spec.IsNew {
		return store.Predicate{}, false
	}
	return store.Gte(store.FieldCreatedAt, now.Add(-NewArrivalWindow)), true
}
