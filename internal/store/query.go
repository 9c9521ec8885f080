package store

import "time"

// Canonical document field names. Predicates and sorts always refer to these;
// each backend maps them onto its own representation.
const (
	FieldID                 = "id"
	FieldName               = "name"
	FieldDescription        = "description"
	FieldPrice              = "price"
	FieldCategoryID         = "categoryId"
	FieldImages             = "images"
	FieldExternalLinks      = "externalLinks"
	FieldAvailablePlatforms = "availablePlatforms"
	FieldRating             = "rating"
	FieldReviewCount        = "reviewCount"
	FieldDiscount           = "discount"
	FieldHits               = "hits"
	FieldLastViewed         = "lastViewed"
	FieldCreatedAt          = "createdAt"
	FieldUpdatedAt          = "updatedAt"

	// Analytics counters.
	FieldViews      = "views"
	FieldAddsToCart = "addsToCart"
	FieldPurchases  = "purchases"
)

// Op identifies the kind of a predicate node.
type Op int

const (
	OpAll Op = iota
	OpAnd
	OpOr
	OpNot
	OpEq
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpRegex  // case-insensitive
	OpIn     // scalar field equals any value, or list field shares any value
	OpExists // Value is a bool
	OpNull
	OpSize // Value is an int
)

// Predicate is a boolean condition over document fields.
// The zero value matches every document.
type Predicate struct {
	Op       Op
	Field    string
	Value    any
	Children []Predicate
}

// All matches every document.
func All() Predicate { return Predicate{Op: OpAll} }

// And is the conjunction of ps. With no operands it matches everything.
func And(ps ...Predicate) Predicate {
	switch len(ps) {
	case 0:
		return All()
	case 1:
		return ps[0]
	}
	return Predicate{Op: OpAnd, Children: ps}
}

// Or is the disjunction of ps. With no operands it matches nothing.
func Or(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return Predicate{Op: OpOr, Children: ps}
}

func Not(p Predicate) Predicate { return Predicate{Op: OpNot, Children: []Predicate{p}} }

func Eq(field string, v any) Predicate  { return Predicate{Op: OpEq, Field: field, Value: v} }
func Ne(field string, v any) Predicate  { return Predicate{Op: OpNe, Field: field, Value: v} }
func Gt(field string, v any) Predicate  { return Predicate{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v any) Predicate { return Predicate{Op: OpGte, Field: field, Value: v} }
func Lt(field string, v any) Predicate  { return Predicate{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v any) Predicate { return Predicate{Op: OpLte, Field: field, Value: v} }

// Regex matches string fields against pattern, ignoring case.
func Regex(field, pattern string) Predicate {
	return Predicate{Op: OpRegex, Field: field, Value: pattern}
}

// In matches when field (or any element of a list field) equals one of values.
func In(field string, values []string) Predicate {
	return Predicate{Op: OpIn, Field: field, Value: values}
}

// Exists matches documents carrying the field, Missing the ones that do not.
func Exists(field string) Predicate  { return Predicate{Op: OpExists, Field: field, Value: true} }
func Missing(field string) Predicate { return Predicate{Op: OpExists, Field: field, Value: false} }

// IsNull matches documents whose field is explicitly null.
func IsNull(field string) Predicate { return Predicate{Op: OpNull, Field: field} }

// Size matches list fields with exactly n elements.
func Size(field string, n int) Predicate { return Predicate{Op: OpSize, Field: field, Value: n} }

// IsAll reports whether p trivially matches every document.
func (p Predicate) IsAll() bool {
	return p.Op == OpAll || (p.Op == OpAnd && len(p.Children) == 0)
}

// SortField is one ordering key. Nulls sort first ascending and last descending.
type SortField struct {
	Field string
	Desc  bool
}

func Asc(field string) SortField  { return SortField{Field: field} }
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// Query is a windowed, ordered read. Limit 0 means unlimited.
// Fields, when set, is a projection hint: backends may return full records.
type Query struct {
	Filter Predicate
	Sort   []SortField
	Skip   int64
	Limit  int64
	Fields []string
}

// Increment atomically adds Delta to Field and assigns Set in the same write.
type Increment struct {
	Field string
	Delta int64
	Set   map[string]any
}

// HitIncrement is the write performed when a product is viewed.
func HitIncrement(at time.Time) Increment {
	return Increment{Field: FieldHits, Delta: 1, Set: map[string]any{FieldLastViewed: at}}
}
