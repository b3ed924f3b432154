// Package middleware holds the gin middleware chain: JWT authentication, role
// gates and the warm-up admission queue.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/auth"
	"github.com/permitkit/permitflow/internal/models"
)

const userContextKey = "current_user"

// UserLoader fetches the authenticated user by ID. Implemented by
// repository.UserRepository. Looking the user up per request keeps role and
// assignment changes effective immediately.
type UserLoader interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// AuthMiddleware verifies the bearer token and loads the current user into
// the gin context.
func AuthMiddleware(jwtManager *auth.JWTManager, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			apierrors.Error(c, apierrors.CodeUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwtManager.Parse(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				apierrors.Error(c, apierrors.CodeTokenExpired)
			} else {
				apierrors.Error(c, apierrors.CodeInvalidToken)
			}
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || user.ValidID != 1 {
			apierrors.Error(c, apierrors.CodeUnauthorized)
			c.Abort()
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// RequireRole aborts with 403 unless the current user holds one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			apierrors.Error(c, apierrors.CodeUnauthorized)
			c.Abort()
			return
		}
		if !allowed[user.Role] {
			apierrors.Error(c, apierrors.CodeForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the current user is an admin.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Cookie fallback for the form frontend.
	if cookie, err := c.Cookie("permitflow_token"); err == nil {
		return cookie
	}
	return ""
}
