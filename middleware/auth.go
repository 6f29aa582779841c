package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
	"marketplace-server/types"
	"marketplace-server/utils"
)

// Claims represents the JWT claims (using shared types)
type Claims = types.Claims

// Authenticator resolves bearer tokens to active users.
type Authenticator struct {
	tokens *utils.TokenIssuer
	store  repository.Store
	logger *zap.Logger
}

func NewAuthenticator(tokens *utils.TokenIssuer, store repository.Store, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, store: store, logger: logger}
}

// AuthMiddleware validates JWT tokens and sets user context
func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authorization header required",
				"message": "Please provide a valid token",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid token format",
				"message": "Token must be in format: Bearer <token>",
			})
			return
		}

		a.authenticate(c, tokenString)
	}
}

// WebSocketAuthMiddleware validates JWT tokens from query parameters for WebSocket connections
func (a *Authenticator) WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Token required",
				"message": "Please provide a valid token in query parameters",
			})
			return
		}

		a.authenticate(c, tokenString)
	}
}

func (a *Authenticator) authenticate(c *gin.Context, tokenString string) {
	claims, err := a.tokens.Verify(tokenString)
	if err != nil {
		a.logger.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid token",
			"message": "Token is invalid or expired",
		})
		return
	}

	user, err := a.store.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			a.logger.Error("failed to load user for token", zap.Uint("user_id", claims.UserID), zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "User not found",
			"message": "User associated with token not found",
		})
		return
	}

	if !user.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "User inactive",
			"message": "User account is deactivated",
		})
		return
	}

	c.Set("user", user)
	c.Set("user_id", user.ID)
	c.Set("role", user.Role)
	c.Next()
}

// RequireRole lets only users with one of the given roles through. It must run after
// AuthMiddleware.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		role, _ := value.(models.UserRole)
		if exists {
			for _, allowed := range roles {
				if role == allowed {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Forbidden",
			"message": "Access denied for your account type",
		})
	}
}
