package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oakandloom/storefront/utils"
)

const testSecret = "test-jwt-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, username, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(testSecret, 1, username, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAdminRequired(t *testing.T) {
	r := newEngine(AdminRequired(testSecret, []string{"Owner"}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "customer", header: bearer(t, "alice", "customer"), want: http.StatusForbidden},
		{name: "admin role", header: bearer(t, "bob", utils.RoleAdmin), want: http.StatusOK},
		{name: "listed username", header: bearer(t, "owner", ""), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			require.Equal(t, tt.want, do(r, req).Code)
		})
	}

	t.Run("token signed with another secret", func(t *testing.T) {
		tok, err := utils.GenerateToken("other", 1, "bob", utils.RoleAdmin, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		require.Equal(t, http.StatusUnauthorized, do(r, req).Code)
	})
}

func TestCronSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "matching secret", secret: "s3cret", header: "Bearer s3cret", want: http.StatusOK},
		{name: "wrong secret", secret: "s3cret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing header", secret: "s3cret", want: http.StatusUnauthorized},
		{name: "unconfigured secret", secret: "", header: "Bearer anything", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			require.Equal(t, tt.want, do(newEngine(CronSecret(tt.secret)), req).Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	r := newEngine(NewRateLimiter(2).Middleware())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, http.StatusOK, do(r, first).Code)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, http.StatusTooManyRequests, do(r, again).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	require.Equal(t, http.StatusOK, do(r, other).Code)
}

func TestRateLimiter_SweepsIdleClientsPeriodically(t *testing.T) {
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	now := start
	rl := NewRateLimiter(60)
	rl.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		rl.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	require.Len(t, rl.clients, 1000)
	require.Equal(t, start, rl.lastSweep)

	// inside the TTL nothing is scanned, even for brand new clients
	now = start.Add(limiterIdleTTL - time.Second)
	rl.allow("10.1.0.1")
	require.Len(t, rl.clients, 1001)
	require.Equal(t, start, rl.lastSweep)

	// the next sweep drops only the clients idle for longer than the TTL
	now = start.Add(limiterIdleTTL + time.Second)
	rl.allow("10.1.0.2")
	require.Len(t, rl.clients, 2)
	require.Contains(t, rl.clients, "10.1.0.1")
	require.Contains(t, rl.clients, "10.1.0.2")
	require.Equal(t, now, rl.lastSweep)
}

func TestVisitorSession(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(VisitorSession("sf_session"))
	r.GET("/", func(c *gin.Context) {
		seen = SessionToken(c)
		c.Status(http.StatusOK)
	})

	t.Run("issues a token", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, "sf_session", cookies[0].Name)
		require.True(t, cookies[0].HttpOnly)
		require.NoError(t, uuid.Validate(cookies[0].Value))
		require.Equal(t, cookies[0].Value, seen)
	})

	t.Run("keeps a valid token", func(t *testing.T) {
		token := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sf_session", Value: token})
		w := do(r, req)
		require.Empty(t, w.Result().Cookies())
		require.Equal(t, token, seen)
	})

	t.Run("replaces a malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sf_session", Value: "<script>"})
		w := do(r, req)
		require.Len(t, w.Result().Cookies(), 1)
		require.NotEqual(t, "<script>", seen)
		require.NoError(t, uuid.Validate(seen))
	})
}

type recordedView struct {
	productID uint
	token     string
}

type fakeRecorder struct {
	mu       sync.Mutex
	views    []recordedView
	onRecord func()
}

func (f *fakeRecorder) RecordView(_ context.Context, productID uint, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onRecord != nil {
		f.onRecord()
	}
	f.views = append(f.views, recordedView{productID, token})
}

func TestProductViewRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextSessionKey, "session-a")
		c.Next()
	})
	r.GET("/products/:slug", ProductViewRecorder(rec), func(c *gin.Context) {
		switch c.Param("slug") {
		case "missing":
			c.Status(http.StatusNotFound)
		case "unmarked":
			c.Status(http.StatusOK)
		default:
			MarkProductViewed(c, 42)
			c.Status(http.StatusOK)
		}
	})

	for _, slug := range []string{"chair", "missing", "unmarked"} {
		do(r, httptest.NewRequest(http.MethodGet, "/products/"+slug, nil))
	}

	require.Equal(t, []recordedView{{productID: 42, token: "session-a"}}, rec.views)
}

func TestProductViewRecorder_FlushesBeforeRecording(t *testing.T) {
	w := httptest.NewRecorder()
	var flushed bool
	var code int
	rec := &fakeRecorder{onRecord: func() {
		flushed = w.Flushed
		code = w.Code
	}}
	r := gin.New()
	r.GET("/products/:slug", ProductViewRecorder(rec), func(c *gin.Context) {
		MarkProductViewed(c, 7)
		c.JSON(http.StatusOK, gin.H{"id": 7})
	})

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/chair", nil))

	require.Len(t, rec.views, 1)
	require.True(t, flushed)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"id":7}`, w.Body.String())
}
