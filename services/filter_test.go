package services

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oakandloom/storefront/models"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

// decimalComparer lets cmp compare decimals by value rather than by representation.
var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestParseCatalogQuery(t *testing.T) {
	values, err := url.ParseQuery("sortBy=price-low&minPrice=100&maxPrice=&colors=red,blue&colors=green&materials=oak")
	require.NoError(t, err)

	got := ParseCatalogQuery(values)
	want := CatalogQuery{
		SortBy:    "price-low",
		MinPrice:  "100",
		MaxPrice:  "",
		Colors:    []string{"red", "blue", "green"},
		Materials: []string{"oak"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCatalogQuery mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFilterSpec(t *testing.T) {
	tests := []struct {
		name  string
		query CatalogQuery
		want  FilterSpec
	}{
		{
			name:  "empty query imposes nothing",
			query: CatalogQuery{},
			want:  FilterSpec{},
		},
		{
			name:  "both price bounds",
			query: CatalogQuery{MinPrice: "150", MaxPrice: " 499.99 "},
			want:  FilterSpec{MinPrice: decPtr("150"), MaxPrice: decPtr("499.99")},
		},
		{
			name:  "unparseable bound is ignored",
			query: CatalogQuery{MinPrice: "cheap", MaxPrice: "300"},
			want:  FilterSpec{MaxPrice: decPtr("300")},
		},
		{
			name:  "negative bound is ignored",
			query: CatalogQuery{MinPrice: "-5"},
			want:  FilterSpec{},
		},
		{
			name:  "blank and duplicate codes dropped",
			query: CatalogQuery{Colors: []string{" red", "", "red", "blue "}, Materials: []string{"  "}},
			want:  FilterSpec{Colors: []string{"red", "blue"}},
		},
		{
			name:  "sort key is case-insensitive",
			query: CatalogQuery{SortBy: "Price-High"},
			want:  FilterSpec{Sort: SortPriceHigh},
		},
		{
			name:  "unknown sort key falls back to default",
			query: CatalogQuery{SortBy: "popularity"},
			want:  FilterSpec{Sort: SortDefault},
		},
		{
			name:  "collection slug is trimmed",
			query: CatalogQuery{CollectionSlug: strPtr(" living-room ")},
			want:  FilterSpec{CollectionSlug: strPtr("living-room")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFilterSpec(tt.query)
			if diff := cmp.Diff(tt.want, got, decimalComparer); diff != "" {
				t.Errorf("BuildFilterSpec mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterSpec_Predicates(t *testing.T) {
	spec := BuildFilterSpec(CatalogQuery{
		MinPrice:       "100",
		MaxPrice:       "500",
		Colors:         []string{"red", "blue"},
		Materials:      []string{"wood"},
		CollectionSlug: strPtr("sofas"),
	})

	want := []Predicate{
		{SQL: "price >= ?", Args: []interface{}{decimal.NewFromInt(100)}},
		{SQL: "price <= ?", Args: []interface{}{decimal.NewFromInt(500)}},
		{SQL: "color IN ?", Args: []interface{}{[]string{"red", "blue"}}},
		{SQL: "material IN ?", Args: []interface{}{[]string{"wood"}}},
		{SQL: "collection_id IN (SELECT id FROM collections WHERE slug = ?)", Args: []interface{}{"sofas"}},
	}
	if diff := cmp.Diff(want, spec.Predicates(), decimalComparer); diff != "" {
		t.Errorf("Predicates mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterSpec_Ordering(t *testing.T) {
	tests := []struct {
		sort string
		want []OrderTerm
	}{
		{SortDefault, []OrderTerm{{Column: "featured", Desc: true}, {Column: "created_at", Desc: true}}},
		{SortPriceLow, []OrderTerm{{Column: "price"}, {Column: "created_at", Desc: true}}},
		{SortPriceHigh, []OrderTerm{{Column: "price", Desc: true}, {Column: "created_at", Desc: true}}},
		{SortNewest, []OrderTerm{{Column: "created_at", Desc: true}}},
	}
	for _, tt := range tests {
		t.Run("sort="+tt.sort, func(t *testing.T) {
			got := BuildFilterSpec(CatalogQuery{SortBy: tt.sort}).Ordering()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Ordering mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// findIDs runs spec against the products table and returns ids in result order.
func findIDs(t *testing.T, db *gorm.DB, spec FilterSpec) []uint {
	t.Helper()
	var products []models.Product
	require.NoError(t, db.Model(&models.Product{}).Scopes(spec.Scope()).Find(&products).Error)
	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestFilterSpec_Composition(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	red1 := newProduct(1, 100, base)
	red1.Color = "red"
	blue := newProduct(2, 300, base.Add(time.Hour))
	blue.Color = "blue"
	red3 := newProduct(3, 200, base.Add(2*time.Hour))
	red3.Color = "red"
	for _, p := range []*models.Product{red1, blue, red3} {
		mustCreate(t, db, p)
	}

	spec := BuildFilterSpec(CatalogQuery{MinPrice: "150", Colors: []string{"red"}})
	require.Equal(t, []uint{3}, findIDs(t, db, spec))
}

func TestFilterSpec_ColorsAndMaterialsAreORWithinANDAcross(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		id       uint
		color    string
		material string
	}{
		{1, "red", "wood"},
		{2, "blue", "wood"},
		{3, "red", "metal"},
		{4, "green", "wood"},
	}
	for i, r := range rows {
		p := newProduct(r.id, 100, base.Add(time.Duration(i)*time.Minute))
		p.Color, p.Material = r.color, r.material
		mustCreate(t, db, p)
	}

	spec := BuildFilterSpec(CatalogQuery{
		Colors:    []string{"red", "blue"},
		Materials: []string{"wood"},
		SortBy:    SortNewest,
	})
	require.Equal(t, []uint{2, 1}, findIDs(t, db, spec))
}

func TestFilterSpec_DefaultSortPrecedence(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	olderFeatured := newProduct(1, 100, base)
	olderFeatured.Featured = true
	plainNewest := newProduct(2, 100, base.Add(3*time.Hour))
	newerFeatured := newProduct(3, 100, base.Add(time.Hour))
	newerFeatured.Featured = true
	for _, p := range []*models.Product{olderFeatured, plainNewest, newerFeatured} {
		mustCreate(t, db, p)
	}

	require.Equal(t, []uint{3, 1, 2}, findIDs(t, db, BuildFilterSpec(CatalogQuery{})))
}

func TestFilterSpec_PriceSorts(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mustCreate(t, db, newProduct(1, 250, base))
	mustCreate(t, db, newProduct(2, 90, base.Add(time.Hour)))
	mustCreate(t, db, newProduct(3, 1200, base.Add(2*time.Hour)))
	// same price as 1 but newer: created_at DESC breaks the tie
	mustCreate(t, db, newProduct(4, 250, base.Add(3*time.Hour)))

	tests := []struct {
		sort string
		want []uint
	}{
		{SortPriceLow, []uint{2, 4, 1, 3}},
		{SortPriceHigh, []uint{3, 4, 1, 2}},
		{SortNewest, []uint{4, 3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.sort, func(t *testing.T) {
			require.Equal(t, tt.want, findIDs(t, db, BuildFilterSpec(CatalogQuery{SortBy: tt.sort})))
		})
	}
}

func TestFilterSpec_CollectionSlug(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sofas := &models.Collection{ID: 10, Name: "Sofas", Slug: "sofas"}
	tables := &models.Collection{ID: 11, Name: "Tables", Slug: "tables"}
	mustCreate(t, db, sofas)
	mustCreate(t, db, tables)

	inSofas := newProduct(1, 900, base)
	inSofas.CollectionID = &sofas.ID
	inTables := newProduct(2, 400, base)
	inTables.CollectionID = &tables.ID
	loose := newProduct(3, 50, base)
	for _, p := range []*models.Product{inSofas, inTables, loose} {
		mustCreate(t, db, p)
	}

	tests := []struct {
		name string
		slug string
		want []uint
	}{
		{name: "known slug", slug: "sofas", want: []uint{1}},
		{name: "unknown slug matches nothing", slug: "beds", want: []uint{}},
		{name: "blank slug matches nothing", slug: "   ", want: []uint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := BuildFilterSpec(CatalogQuery{CollectionSlug: strPtr(tt.slug)})
			require.Equal(t, tt.want, findIDs(t, db, spec))
		})
	}
}

func TestFilterSpec_FilterScopeCountsWithoutOrdering(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := uint(1); i <= 4; i++ {
		mustCreate(t, db, newProduct(i, int64(i*100), base))
	}

	spec := BuildFilterSpec(CatalogQuery{MinPrice: "200", MaxPrice: "300"})
	var total int64
	require.NoError(t, db.Model(&models.Product{}).Scopes(spec.Filter()).Count(&total).Error)
	require.Equal(t, int64(2), total)
}

func TestBuildFilterSpec_CapsCodeLists(t *testing.T) {
	codes := make([]string, 10000)
	for i := range codes {
		codes[i] = fmt.Sprintf("c%d", i)
	}
	values := url.Values{"colors": {strings.Join(codes, ",")}, "materials": codes}

	spec := BuildFilterSpec(ParseCatalogQuery(values))
	require.Len(t, spec.Colors, MaxFilterCodes)
	require.Len(t, spec.Materials, MaxFilterCodes)
	require.Equal(t, "c0", spec.Colors[0])
	require.Equal(t, fmt.Sprintf("c%d", MaxFilterCodes-1), spec.Colors[MaxFilterCodes-1])

	// duplicates do not use up the cap
	dup := BuildFilterSpec(CatalogQuery{Colors: append([]string{"red", "red", " red "}, codes[:MaxFilterCodes]...)})
	require.Len(t, dup.Colors, MaxFilterCodes)
	require.Equal(t, "red", dup.Colors[0])

	db := newTestDB(t)
	mustCreate(t, db, newProduct(1, 100, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	var total int64
	require.NoError(t, db.Model(&models.Product{}).Scopes(spec.Filter()).Count(&total).Error)
	require.Zero(t, total)
}
