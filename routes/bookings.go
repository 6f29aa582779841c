package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace-server/models"
	"marketplace-server/services"
)

// CreateBookingRequest is the body of POST /client/bookings.
type CreateBookingRequest struct {
	ServiceID   uint      `json:"service_id" binding:"required"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	AddressID   *uint     `json:"address_id"`
	Notes       *string   `json:"notes"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
}

// DeclineBookingRequest is the optional body of the decline endpoint.
type DeclineBookingRequest struct {
	Reason string `json:"reason"`
}

// RegisterBookingRoutes registers the booking lifecycle routes
func RegisterBookingRoutes(router *gin.RouterGroup, h *Handlers) {
	router.GET("/bookings/:bookingId", h.getBooking)

	client := router.Group("/client")
	client.Use(clientOnly())
	{
		client.POST("/bookings", h.createBooking)
		client.GET("/bookings", h.listBookings(services.PartyClient))
		client.POST("/bookings/:bookingId/cancel", h.cancelBooking)
	}

	provider := router.Group("/provider")
	provider.Use(providerOnly())
	{
		provider.GET("/bookings", h.listBookings(services.PartyProvider))
		provider.POST("/bookings/:bookingId/accept", h.acceptBooking)
		provider.POST("/bookings/:bookingId/decline", h.declineBooking)
		provider.POST("/bookings/:bookingId/start", h.startService)
		provider.POST("/bookings/:bookingId/complete", h.completeService)
	}
}

func (h *Handlers) createBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	booking, err := h.Bookings.BookService(c.Request.Context(), currentUserID(c), services.BookServiceInput{
		ServiceID:   req.ServiceID,
		StartTime:   req.StartTime,
		AddressID:   req.AddressID,
		Notes:       req.Notes,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Booking request sent",
		"data":    booking,
	})
}

func (h *Handlers) listBookings(as services.Party) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.BookingStatus
		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			s := models.BookingStatus(strings.ToUpper(raw))
			status = &s
		}

		bookings, err := h.Bookings.ListBookings(c.Request.Context(), currentUserID(c), as, status)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if bookings == nil {
			bookings = []models.ServiceBooking{}
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    bookings,
			"count":   len(bookings),
		})
	}
}

func (h *Handlers) getBooking(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}
	booking, err := h.Bookings.GetBooking(c.Request.Context(), currentUserID(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": booking})
}

func (h *Handlers) acceptBooking(c *gin.Context) {
	h.bookingAction(c, "Booking accepted", h.Bookings.AcceptBooking)
}

func (h *Handlers) cancelBooking(c *gin.Context) {
	h.bookingAction(c, "Booking cancelled", h.Bookings.CancelBooking)
}

func (h *Handlers) startService(c *gin.Context) {
	h.bookingAction(c, "Service started", h.Bookings.StartService)
}

func (h *Handlers) completeService(c *gin.Context) {
	h.bookingAction(c, "Service completed", h.Bookings.CompleteService)
}

func (h *Handlers) declineBooking(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}
	var req DeclineBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request data", err)
			return
		}
	}

	booking, err := h.Bookings.DeclineBooking(c.Request.Context(), currentUserID(c), bookingID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking declined", "data": booking})
}

type bookingActionFunc func(ctx context.Context, userID, bookingID uint) (*models.ServiceBooking, error)

func (h *Handlers) bookingAction(c *gin.Context, message string, action bookingActionFunc) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}
	booking, err := action(c.Request.Context(), currentUserID(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "data": booking})
}
