// Package services holds the storefront analytics and catalog logic that sits
// between the HTTP controllers and the gorm models.
package services

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sort keys accepted in the sortBy query parameter. Anything else falls back to SortDefault.
const (
	SortDefault   = ""
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortNewest    = "newest"
)

// MaxFilterCodes caps the distinct colors or materials kept per request.
// Codes past the cap are dropped, which keeps the IN list and its bind
// parameters bounded whatever the query string holds.
const MaxFilterCodes = 50

// CatalogQuery is the raw, optional, string-typed input of a catalog page.
type CatalogQuery struct {
	SortBy    string
	MinPrice  string
	MaxPrice  string
	Colors    []string
	Materials []string
	// CollectionSlug is set only by the collection page. A non-nil slug that
	// does not resolve to a collection restricts the result to nothing.
	CollectionSlug *string
}

// ParseCatalogQuery reads sortBy, minPrice, maxPrice, colors and materials.
// List parameters may be repeated (colors=red&colors=blue) or comma separated (colors=red,blue).
func ParseCatalogQuery(values url.Values) CatalogQuery {
	return CatalogQuery{
		SortBy:    values.Get("sortBy"),
		MinPrice:  values.Get("minPrice"),
		MaxPrice:  values.Get("maxPrice"),
		Colors:    splitListParam(values["colors"]),
		Materials: splitListParam(values["materials"]),
	}
}

func splitListParam(raw []string) []string {
	var out []string
	for _, v := range raw {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

// Predicate is one AND-combined condition with its bind arguments.
type Predicate struct {
	SQL  string
	Args []interface{}
}

// OrderTerm is one ORDER BY criterion.
type OrderTerm struct {
	Column string
	Desc   bool
}

// FilterSpec is the normalized form of a CatalogQuery. The zero value matches
// every product and uses the default ordering.
type FilterSpec struct {
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	Colors         []string
	Materials      []string
	Sort           string
	CollectionSlug *string
}

// BuildFilterSpec normalizes raw catalog parameters. It never fails: bad
// numbers, empty lists and unknown sort keys simply impose no constraint.
func BuildFilterSpec(q CatalogQuery) FilterSpec {
	spec := FilterSpec{
		MinPrice:  parsePriceBound(q.MinPrice),
		MaxPrice:  parsePriceBound(q.MaxPrice),
		Colors:    normalizeCodes(q.Colors),
		Materials: normalizeCodes(q.Materials),
		Sort:      normalizeSort(q.SortBy),
	}
	if q.CollectionSlug != nil {
		slug := strings.TrimSpace(*q.CollectionSlug)
		spec.CollectionSlug = &slug
	}
	return spec
}

func parsePriceBound(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}

func normalizeCodes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == MaxFilterCodes {
			break
		}
	}
	return out
}

func normalizeSort(raw string) string {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case SortPriceLow, SortPriceHigh, SortNewest:
		return s
	default:
		return SortDefault
	}
}

// Predicates returns the AND-combined conditions in a stable order:
// price bounds, colors, materials, collection.
func (s FilterSpec) Predicates() []Predicate {
	var preds []Predicate
	if s.MinPrice != nil {
		preds = append(preds, Predicate{SQL: "price >= ?", Args: []interface{}{*s.MinPrice}})
	}
	if s.MaxPrice != nil {
		preds = append(preds, Predicate{SQL: "price <= ?", Args: []interface{}{*s.MaxPrice}})
	}
	// IN is the OR-group of equality tests over the column
	if len(s.Colors) > 0 {
		preds = append(preds, Predicate{SQL: "color IN ?", Args: []interface{}{s.Colors}})
	}
	if len(s.Materials) > 0 {
		preds = append(preds, Predicate{SQL: "material IN ?", Args: []interface{}{s.Materials}})
	}
	if s.CollectionSlug != nil {
		// an unknown slug yields an empty subquery and therefore no rows
		preds = append(preds, Predicate{
			SQL:  "collection_id IN (SELECT id FROM collections WHERE slug = ?)",
			Args: []interface{}{*s.CollectionSlug},
		})
	}
	return preds
}

// Ordering returns the ORDER BY terms for the sort key.
func (s FilterSpec) Ordering() []OrderTerm {
	switch s.Sort {
	case SortPriceLow:
		return []OrderTerm{{Column: "price"}, {Column: "created_at", Desc: true}}
	case SortPriceHigh:
		return []OrderTerm{{Column: "price", Desc: true}, {Column: "created_at", Desc: true}}
	case SortNewest:
		return []OrderTerm{{Column: "created_at", Desc: true}}
	default:
		return []OrderTerm{{Column: "featured", Desc: true}, {Column: "created_at", Desc: true}}
	}
}

// Filter is a gorm scope applying only the predicates, suitable for counting.
func (s FilterSpec) Filter() func(*gorm.DB) *gorm.DB {
	preds := s.Predicates()
	return func(db *gorm.DB) *gorm.DB {
		for _, p := range preds {
			db = db.Where(p.SQL, p.Args...)
		}
		return db
	}
}

// Sorted is a gorm scope applying only the ordering.
func (s FilterSpec) Sorted() func(*gorm.DB) *gorm.DB {
	terms := s.Ordering()
	return func(db *gorm.DB) *gorm.DB {
		for _, t := range terms {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: t.Column}, Desc: t.Desc})
		}
		return db
	}
}

// Scope applies predicates and ordering.
func (s FilterSpec) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Scopes(s.Filter(), s.Sorted())
	}
}
