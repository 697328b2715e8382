package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextViewedProductKey is set by the product detail handler to the id of
// the product it rendered.
const ContextViewedProductKey = "viewed_product_id"

// ViewRecorder counts product detail views. Implementations must not fail the request.
type ViewRecorder interface {
	RecordView(ctx context.Context, productID uint, sessionToken string)
}

// MarkProductViewed tells ProductViewRecorder which product the response showed.
func MarkProductViewed(c *gin.Context, productID uint) {
	c.Set(ContextViewedProductKey, productID)
}

// ProductViewRecorder records a view after a successful GET whose handler
// called MarkProductViewed. The response is flushed first so the client does
// not wait on the view write.
func ProductViewRecorder(recorder ViewRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		v, ok := c.Get(ContextViewedProductKey)
		if !ok {
			return
		}
		productID, ok := v.(uint)
		if !ok || productID == 0 {
			return
		}
		c.Writer.Flush()
		recorder.RecordView(c.Request.Context(), productID, SessionToken(c))
	}
}
