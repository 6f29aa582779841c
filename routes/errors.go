package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-server/services"
)

// statusFor maps a service error kind to its HTTP status and a short error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrAlreadySigned):
		return http.StatusConflict, "already_signed"
	case errors.Is(err, services.ErrDuplicatePayment):
		return http.StatusConflict, "duplicate_payment"
	case errors.Is(err, services.ErrContractExists):
		return http.StatusConflict, "contract_exists"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Uint("user_id", c.GetUint("user_id")),
			zap.Error(err),
		)
		message = "Something went wrong, please try again later"
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"success": false, "error": "invalid_request", "message": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
