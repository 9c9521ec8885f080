package store

import (
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"product-discovery-service/internal/domain"
)

// fieldGetter resolves a canonical field name on a document.
// present is false when the document does not carry the field at all.
type fieldGetter func(field string) (value any, present bool)

func productFields(p *domain.Product) fieldGetter {
	return func(field string) (any, bool) {
		switch field {
		case FieldID:
			return p.ID, true
		case FieldName:
			return p.Name, true
		case FieldDescription:
			return p.Description, p.Description != ""
		case FieldPrice:
			return p.Price, true
		case FieldCategoryID:
			return p.CategoryID, p.CategoryID != ""
		case FieldImages:
			return p.Images, p.Images != nil
		case FieldExternalLinks:
			return p.ExternalLinks, p.ExternalLinks != nil
		case FieldAvailablePlatforms:
			return p.AvailablePlatforms, p.AvailablePlatforms != nil
		case FieldRating:
			return p.Rating, true
		case FieldReviewCount:
			return p.ReviewCount, true
		case FieldDiscount:
			return p.Discount, true
		case FieldHits:
			return p.Hits, true
		case FieldLastViewed:
			if p.LastViewed == nil {
				return nil, false
			}
			return *p.LastViewed, true
		case FieldCreatedAt:
			return p.CreatedAt, true
		case FieldUpdatedAt:
			return p.UpdatedAt, true
		}
		return nil, false
	}
}

func categoryFields(c *domain.Category) fieldGetter {
	return func(field string) (any, bool) {
		switch field {
		case FieldID:
			return c.ID, true
		case FieldName:
			return c.Name, true
		case FieldDescription:
			return c.Description, c.Description != ""
		}
		return nil, false
	}
}

// Match evaluates p against a product the same way the document backends do.
func Match(p Predicate, product *domain.Product) bool {
	return match(p, productFields(product))
}

func match(p Predicate, get fieldGetter) bool {
	switch p.Op {
	case OpAll:
		return true
	case OpAnd:
		for _, c := range p.Children {
			if !match(c, get) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range p.Children {
			if match(c, get) {
				return true
			}
		}
		return false
	case OpNot:
		return len(p.Children) == 1 && !match(p.Children[0], get)
	}

	v, present := get(p.Field)
	switch p.Op {
	case OpExists:
		want, _ := p.Value.(bool)
		return present == want
	case OpNull:
		return present && v == nil
	case OpSize:
		n, _ := p.Value.(int)
		return present && listLen(v) == n
	case OpEq:
		return present && equalsAny(v, p.Value)
	case OpNe:
		return !present || !equalsAny(v, p.Value)
	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false
		}
		c, ok := compare(v, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpGt:
			return c > 0
		case OpGte:
			return c >= 0
		case OpLt:
			return c < 0
		default:
			return c <= 0
		}
	case OpRegex:
		s, ok := v.(string)
		pattern, _ := p.Value.(string)
		if !present || !ok {
			return false
		}
		re, err := regexp.Compile("(?i)" + pattern)
		return err == nil && re.MatchString(s)
	case OpIn:
		values, _ := p.Value.([]string)
		if !present {
			return false
		}
		for _, want := range values {
			if equalsAny(v, want) {
				return true
			}
		}
		return false
	}
	return false
}

// equalsAny compares a scalar, or any element of a list, with want.
func equalsAny(v, want any) bool {
	if list, ok := v.([]string); ok {
		for _, e := range list {
			if equal(e, want) {
				return true
			}
		}
		return false
	}
	return equal(v, want)
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func listLen(v any) int {
	switch l := v.(type) {
	case []string:
		return len(l)
	case []domain.ExternalLink:
		return len(l)
	}
	return -1
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// compare orders two values of the same kind. ok is false for incomparable values.
func compare(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

// sortDocs orders docs in place by keys; docs must already be in natural order.
func sortDocs[T any](docs []T, fields func(*T) fieldGetter, keys []SortField) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		gi, gj := fields(&docs[i]), fields(&docs[j])
		for _, k := range keys {
			c := compareNullable(gi, gj, k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareNullable treats a missing field as smaller than any value.
func compareNullable(a, b fieldGetter, field string) int {
	va, pa := a(field)
	vb, pb := b(field)
	pa = pa && va != nil
	pb = pb && vb != nil
	switch {
	case !pa && !pb:
		return 0
	case !pa:
		return -1
	case !pb:
		return 1
	}
	c, _ := compare(va, vb)
	return c
}

// window applies skip and limit to an already ordered slice.
func window[T any](docs []T, skip, limit int64) []T {
	if skip >= int64(len(docs)) {
		return []T{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}
