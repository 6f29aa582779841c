package routes

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxProofSize = 10 << 20

var allowedProofExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".pdf": true,
}

// ProcessPaymentRequest is the JSON form of the payment endpoint. Multipart requests send the
// proof as a "payment_proof" file instead.
type ProcessPaymentRequest struct {
	PaymentProofURL *string `json:"payment_proof_url"`
}

// RegisterPaymentRoutes registers payment routes
func RegisterPaymentRoutes(router *gin.RouterGroup, h *Handlers) {
	router.GET("/bookings/:bookingId/payment", h.getPayment)
	router.POST("/client/bookings/:bookingId/payment", clientOnly(), h.processPayment)
	router.POST("/provider/bookings/:bookingId/payment/complete", providerOnly(), h.markPaymentCompleted)
}

func (h *Handlers) processPayment(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}

	var proofURL *string
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		url, ok := h.uploadProof(c, bookingID)
		if !ok {
			return
		}
		proofURL = url
	} else if c.Request.ContentLength > 0 {
		var req ProcessPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request data", err)
			return
		}
		proofURL = req.PaymentProofURL
	}

	payment, err := h.Payments.ProcessPayment(c.Request.Context(), currentUserID(c), bookingID, proofURL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment recorded", "data": payment})
}

// uploadProof stores the multipart proof file once the caller is known to be a party of the
// booking, and returns its URL. A request without a file yields a nil URL.
func (h *Handlers) uploadProof(c *gin.Context, bookingID uint) (*string, bool) {
	file, header, err := c.Request.FormFile("payment_proof")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		badRequest(c, "Failed to parse form", err)
		return nil, false
	}
	defer file.Close()

	if header.Size > maxProofSize {
		badRequest(c, "File size too large. Maximum 10MB allowed", nil)
		return nil, false
	}
	if !allowedProofExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		badRequest(c, "Only image or PDF payment proofs are supported", nil)
		return nil, false
	}
	if h.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "storage_unavailable",
			"message": "Payment proof uploads are not configured, send payment_proof_url instead",
		})
		return nil, false
	}

	if _, err := h.Bookings.GetBooking(c.Request.Context(), currentUserID(c), bookingID); err != nil {
		h.respondError(c, err)
		return nil, false
	}

	url, err := h.Storage.UploadPaymentProof(c.Request.Context(), bookingID, header.Filename, file)
	if err != nil {
		h.Logger.Error("payment proof upload failed", zap.Uint("booking_id", bookingID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "upload_failed",
			"message": "Failed to upload payment proof",
		})
		return nil, false
	}
	return &url, true
}

func (h *Handlers) markPaymentCompleted(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}
	payment, err := h.Payments.MarkPaymentCompleted(c.Request.Context(), currentUserID(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment confirmed", "data": payment})
}

func (h *Handlers) getPayment(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}
	payment, err := h.Payments.GetPayment(c.Request.Context(), currentUserID(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payment})
}
