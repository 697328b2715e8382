package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextSessionKey holds the visitor's opaque session token.
const ContextSessionKey = "visitor_session"

const sessionCookieMaxAge = 365 * 24 * 60 * 60

// VisitorSession makes sure every visitor carries an opaque session token in
// cookieName. Missing or malformed tokens are replaced with a fresh UUID.
func VisitorSession(cookieName string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(cookieName)
		if err != nil || uuid.Validate(token) != nil {
			token = uuid.NewString()
			ctx.SetSameSite(http.SameSiteLaxMode)
			ctx.SetCookie(cookieName, token, sessionCookieMaxAge, "/", "", ctx.Request.TLS != nil, true)
		}
		ctx.Set(ContextSessionKey, token)
		ctx.Next()
	}
}

// SessionToken returns the token VisitorSession stored, or "" when absent.
func SessionToken(ctx *gin.Context) string {
	return ctx.GetString(ContextSessionKey)
}
