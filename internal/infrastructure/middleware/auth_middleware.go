package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/services"
	apperrors "collabstream/pkg/errors"
	"collabstream/pkg/logger"
)

const userIDKey = "user_id"

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, apperrors.NewUnauthorizedError("authorization header required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is present
// and lets anonymous requests through otherwise.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				setUser(c, claims)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the caller identified by the auth middleware.
func CurrentUser(c *gin.Context) (domain.UserID, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	userID, ok := v.(domain.UserID)
	return userID, ok && userID != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setUser(c *gin.Context, claims *services.Claims) {
	c.Set(userIDKey, claims.UserID)
	c.Set("username", claims.Username)

	ctx := services.ContextWithUser(c.Request.Context(), claims.UserID)
	ctx = logger.WithUserID(ctx, string(claims.UserID))
	c.Request = c.Request.WithContext(ctx)
}
