package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-server/middleware"
	"marketplace-server/models"
	"marketplace-server/services"
	ws "marketplace-server/websocket"
)

// Handlers holds everything the HTTP layer calls into.
type Handlers struct {
	Auth          *services.AuthService
	Bookings      *services.BookingService
	Contracts     *services.ContractService
	Payments      *services.PaymentService
	Notifications *services.NotificationService
	// Storage is optional; without it payment proofs can only be given as URLs.
	Storage       services.ProofStorage
	Hub           *ws.Hub
	Authenticator *middleware.Authenticator
	Logger        *zap.Logger
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Marketplace server is running",
			"time":    time.Now().UTC(),
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		RegisterAuthRoutes(apiV1.Group("/auth"), h)

		// Live notification stream
		apiV1.GET("/ws", h.Authenticator.WebSocketAuthMiddleware(), h.handleWebSocketConnection)

		authed := apiV1.Group("")
		authed.Use(h.Authenticator.AuthMiddleware())
		{
			RegisterBookingRoutes(authed, h)
			RegisterContractRoutes(authed, h)
			RegisterPaymentRoutes(authed, h)
			RegisterNotificationRoutes(authed.Group("/notifications"), h)
		}
	}
}

// clientOnly and providerOnly gate the role-specific route groups.
func clientOnly() gin.HandlerFunc {
	return middleware.RequireRole(models.RoleClient)
}

func providerOnly() gin.HandlerFunc {
	return middleware.RequireRole(models.RoleProvider)
}

// idParam parses a positive numeric path parameter, answering 400 when it is not one.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint("user_id")
}

func currentRole(c *gin.Context) models.UserRole {
	role, _ := c.Get("role")
	r, _ := role.(models.UserRole)
	return r
}
