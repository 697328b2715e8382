package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oakandloom/storefront/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
// On failure it writes the 401 response and returns false.
func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		ctx.Abort()
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		ctx.Abort()
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		ctx.Abort()
		return "", false
	}
	return token, true
}

// AdminRequired admits requests carrying a valid JWT whose role is admin or
// whose username is listed in adminUsernames.
func AdminRequired(secret string, adminUsernames []string) gin.HandlerFunc {
	admins := make(map[string]struct{}, len(adminUsernames))
	for _, name := range adminUsernames {
		admins[strings.ToLower(name)] = struct{}{}
	}

	return func(ctx *gin.Context) {
		tokenString, ok := bearerToken(ctx)
		if !ok {
			return
		}

		claims, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		_, listed := admins[strings.ToLower(claims.Username)]
		if claims.Role != utils.RoleAdmin && !listed {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin access required")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// CronSecret guards scheduler endpoints with a shared bearer secret.
// An empty secret rejects every request.
func CronSecret(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		provided, ok := bearerToken(ctx)
		if !ok {
			return
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid cron secret")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
