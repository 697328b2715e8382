package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/oakandloom/storefront/metrics"
	"github.com/oakandloom/storefront/middleware"
	"github.com/oakandloom/storefront/models"
	"github.com/oakandloom/storefront/services"
	"github.com/oakandloom/storefront/utils"
)

// CatalogController serves the public product listings and product detail pages.
type CatalogController struct {
	db *gorm.DB
}

// NewCatalogController creates a new CatalogController instance.
func NewCatalogController(db *gorm.DB) *CatalogController {
	return &CatalogController{db: db}
}

// ListProducts returns published products matching the filter and sort query parameters.
func (c *CatalogController) ListProducts(ctx *gin.Context) {
	q := services.ParseCatalogQuery(ctx.Request.URL.Query())
	c.list(ctx, "all", services.BuildFilterSpec(q))
}

// ListCollectionProducts is ListProducts restricted to one collection.
// An unknown slug yields an empty page, not a 404.
func (c *CatalogController) ListCollectionProducts(ctx *gin.Context) {
	q := services.ParseCatalogQuery(ctx.Request.URL.Query())
	slug := ctx.Param("slug")
	q.CollectionSlug = &slug
	c.list(ctx, "collection", services.BuildFilterSpec(q))
}

func (c *CatalogController) list(ctx *gin.Context, scope string, spec services.FilterSpec) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	started := time.Now()

	base := func() *gorm.DB {
		return c.db.WithContext(ctx.Request.Context()).
			Model(&models.Product{}).
			Where("published = ?", true).
			Scopes(spec.Filter())
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to count products")
		return
	}

	products := []models.Product{}
	if err := base().Scopes(spec.Sorted()).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to list products")
		return
	}
	metrics.RecordCatalogQuery(scope, spec.Sort, time.Since(started))

	utils.Success(ctx, gin.H{
		"items": products,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// GetProduct returns one published product by slug and marks it as viewed.
func (c *CatalogController) GetProduct(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))

	var product models.Product
	err := c.db.WithContext(ctx.Request.Context()).
		Preload("Collection").
		Where("slug = ? AND published = ?", slug, true).
		Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40411, "product not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to load product")
		return
	}

	middleware.MarkProductViewed(ctx, product.ID)
	utils.Success(ctx, product)
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 24
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
