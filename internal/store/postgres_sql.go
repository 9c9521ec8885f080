package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

type columnKind int

const (
	scalarColumn columnKind = iota
	textArrayColumn
	jsonArrayColumn
)

type column struct {
	name string
	kind columnKind
}

var productColumns = map[string]column{
	FieldID:                 {name: "id"},
	FieldName:               {name: "name"},
	FieldDescription:        {name: "description"},
	FieldPrice:              {name: "price"},
	FieldCategoryID:         {name: "category_id"},
	FieldImages:             {name: "images", kind: textArrayColumn},
	FieldExternalLinks:      {name: "external_links", kind: jsonArrayColumn},
	FieldAvailablePlatforms: {name: "available_platforms", kind: textArrayColumn},
	FieldRating:             {name: "rating"},
	FieldReviewCount:        {name: "review_count"},
	FieldDiscount:           {name: "discount"},
	FieldHits:               {name: "hits"},
	FieldLastViewed:         {name: "last_viewed"},
	FieldCreatedAt:          {name: "created_at"},
	FieldUpdatedAt:          {name: "updated_at"},
}

var categoryColumns = map[string]column{
	FieldID:          {name: "id"},
	FieldName:        {name: "name"},
	FieldDescription: {name: "description"},
}

var analyticsColumns = map[string]column{
	FieldViews:      {name: "views"},
	FieldHits:       {name: "hits"},
	FieldAddsToCart: {name: "adds_to_cart"},
	FieldPurchases:  {name: "purchases"},
	FieldLastViewed: {name: "last_viewed"},
}

// sqlBuilder renders predicates into a WHERE clause with positional args.
type sqlBuilder struct {
	columns map[string]column
	args    []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) column(field string) (column, error) {
	c, ok := b.columns[field]
	if !ok {
		return column{}, fmt.Errorf("%w: unknown field %q", ErrUnsupported, field)
	}
	return c, nil
}

func (b *sqlBuilder) where(p Predicate) (string, error) {
	switch p.Op {
	case OpAll:
		return "TRUE", nil
	case OpAnd, OpOr:
		if len(p.Children) == 0 {
			if p.Op == OpAnd {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		parts := make([]string, 0, len(p.Children))
		for _, c := range p.Children {
			part, err := b.where(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		sep := " AND "
		if p.Op == OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	case OpNot:
		if len(p.Children) != 1 {
			return "", fmt.Errorf("%w: not takes one operand", ErrUnsupported)
		}
		inner, err := b.where(p.Children[0])
		if err != nil {
			return "", err
		}
		// A NULL comparison inside counts as false, so its negation is true.
		return "NOT COALESCE(" + inner + ", FALSE)", nil
	}

	c, err := b.column(p.Field)
	if err != nil {
		return "", err
	}
	switch p.Op {
	case OpExists:
		if want, _ := p.Value.(bool); want {
			return c.name + " IS NOT NULL", nil
		}
		return c.name + " IS NULL", nil
	case OpNull:
		return c.name + " IS NULL", nil
	case OpSize:
		switch c.kind {
		case textArrayColumn:
			return fmt.Sprintf("cardinality(%s) = %s", c.name, b.bind(p.Value)), nil
		case jsonArrayColumn:
			return fmt.Sprintf("jsonb_array_length(%s) = %s", c.name, b.bind(p.Value)), nil
		}
		return "", fmt.Errorf("%w: size of scalar field %q", ErrUnsupported, p.Field)
	case OpEq:
		if p.Value == nil {
			return c.name + " IS NULL", nil
		}
		if c.kind == textArrayColumn {
			return fmt.Sprintf("%s = ANY(%s)", b.bind(p.Value), c.name), nil
		}
		return fmt.Sprintf("%s = %s", c.name, b.bind(p.Value)), nil
	case OpNe:
		if p.Value == nil {
			return c.name + " IS NOT NULL", nil
		}
		if c.kind == textArrayColumn {
			return fmt.Sprintf("(%s IS NULL OR NOT (%s = ANY(%s)))", c.name, b.bind(p.Value), c.name), nil
		}
		return fmt.Sprintf("%s IS DISTINCT FROM %s", c.name, b.bind(p.Value)), nil
	case OpGt, OpGte, OpLt, OpLte:
		if c.kind != scalarColumn {
			return "", fmt.Errorf("%w: ordering on list field %q", ErrUnsupported, p.Field)
		}
		return fmt.Sprintf("%s %s %s", c.name, comparisonOps[p.Op], b.bind(p.Value)), nil
	case OpRegex:
		if c.kind != scalarColumn {
			return "", fmt.Errorf("%w: regex on list field %q", ErrUnsupported, p.Field)
		}
		return fmt.Sprintf("%s ~* %s", c.name, b.bind(p.Value)), nil
	case OpIn:
		values, _ := p.Value.([]string)
		if len(values) == 0 {
			return "FALSE", nil
		}
		switch c.kind {
		case textArrayColumn:
			return fmt.Sprintf("%s && %s", c.name, b.bind(pq.Array(values))), nil
		case scalarColumn:
			return fmt.Sprintf("%s = ANY(%s)", c.name, b.bind(pq.Array(values))), nil
		}
		return "", fmt.Errorf("%w: in on field %q", ErrUnsupported, p.Field)
	}
	return "", fmt.Errorf("%w: operator %d", ErrUnsupported, p.Op)
}

var comparisonOps = map[Op]string{OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<="}

func (b *sqlBuilder) orderBy(keys []SortField) (string, error) {
	if len(keys) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		c, err := b.column(k.Field)
		if err != nil {
			return "", err
		}
		if k.Desc {
			parts = append(parts, c.name+" DESC NULLS LAST")
		} else {
			parts = append(parts, c.name+" ASC NULLS FIRST")
		}
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// increment renders the SET list of an Increment. Set keys are emitted in sorted order.
func (b *sqlBuilder) increment(inc Increment) (string, error) {
	c, err := b.column(inc.Field)
	if err != nil {
		return "", err
	}
	parts := []string{fmt.Sprintf("%s = %s + %s", c.name, c.name, b.bind(inc.Delta))}
	for _, field := range sortedKeys(inc.Set) {
		sc, err := b.column(field)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s = %s", sc.name, b.bind(inc.Set[field])))
	}
	return strings.Join(parts, ", "), nil
}

// selectQuery renders a windowed read over table. Projections are ignored.
func selectQuery(table, columnList string, columns map[string]column, q Query) (string, []any, error) {
	b := &sqlBuilder{columns: columns}
	where, err := b.where(q.Filter)
	if err != nil {
		return "", nil, err
	}
	order, err := b.orderBy(q.Sort)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT " + columnList + " FROM " + table + " WHERE " + where + order
	if q.Limit > 0 {
		query += " LIMIT " + b.bind(q.Limit)
	}
	if q.Skip > 0 {
		query += " OFFSET " + b.bind(q.Skip)
	}
	return query, b.args, nil
}

// analyticsUpsert renders an insert that adds inc to an existing record or creates it.
func analyticsUpsert(productID string, inc Increment) (string, []any, error) {
	b := &sqlBuilder{columns: analyticsColumns}
	c, err := b.column(inc.Field)
	if err != nil {
		return "", nil, err
	}
	if c.name == "last_viewed" {
		return "", nil, fmt.Errorf("%w: cannot increment %q", ErrUnsupported, inc.Field)
	}
	cols := []string{"product_id", c.name}
	vals := []string{b.bind(productID), b.bind(inc.Delta)}
	updates := []string{fmt.Sprintf("%s = a.%s + EXCLUDED.%s", c.name, c.name, c.name)}
	for _, field := range sortedKeys(inc.Set) {
		sc, err := b.column(field)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, sc.name)
		vals = append(vals, b.bind(inc.Set[field]))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", sc.name, sc.name))
	}
	query := fmt.Sprintf(
		"INSERT INTO catalog.product_analytics AS a (%s) VALUES (%s) ON CONFLICT (product_id) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(vals, ", "), strings.Join(updates, ", "),
	)
	return query, b.args, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
