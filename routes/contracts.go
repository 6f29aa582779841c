package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"marketplace-server/models"
	"marketplace-server/repository"
	"marketplace-server/services"
)

// CreateContractRequest is the body of POST /provider/bookings/:bookingId/contract.
type CreateContractRequest struct {
	Terms         string             `json:"terms" binding:"required"`
	PaymentAmount decimal.Decimal    `json:"payment_amount"`
	PaymentType   models.PricingType `json:"payment_type" binding:"required"`
}

// UpdateContractRequest carries the fields a provider may change. Omitted fields are kept.
type UpdateContractRequest struct {
	Terms         *string             `json:"terms"`
	PaymentAmount *decimal.Decimal    `json:"payment_amount"`
	PaymentType   *models.PricingType `json:"payment_type"`
}

// RegisterContractRoutes registers contract routes
func RegisterContractRoutes(router *gin.RouterGroup, h *Handlers) {
	router.GET("/contracts/:contractId", h.getContract)
	router.POST("/contracts/:contractId/sign", h.signContract)

	provider := router.Group("/provider")
	provider.Use(providerOnly())
	{
		provider.POST("/bookings/:bookingId/contract", h.createContract)
		provider.PATCH("/contracts/:contractId", h.updateContract)
	}
}

func (h *Handlers) createContract(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingId")
	if !ok {
		return
	}
	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	contract, err := h.Contracts.CreateContract(c.Request.Context(), currentUserID(c), bookingID, services.ContractInput{
		Terms:         req.Terms,
		PaymentAmount: req.PaymentAmount,
		PaymentType:   req.PaymentType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Contract created", "data": contract})
}

func (h *Handlers) updateContract(c *gin.Context) {
	contractID, ok := idParam(c, "contractId")
	if !ok {
		return
	}
	var req UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	contract, err := h.Contracts.UpdateContract(c.Request.Context(), currentUserID(c), contractID, repository.ContractChanges{
		Terms:         req.Terms,
		PaymentAmount: req.PaymentAmount,
		PaymentType:   req.PaymentType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contract updated", "data": contract})
}

func (h *Handlers) signContract(c *gin.Context) {
	contractID, ok := idParam(c, "contractId")
	if !ok {
		return
	}
	contract, err := h.Contracts.SignContract(c.Request.Context(), currentUserID(c), contractID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Contract signed",
		"data":           contract,
		"fully_executed": contract.FullyExecuted(),
	})
}

func (h *Handlers) getContract(c *gin.Context) {
	contractID, ok := idParam(c, "contractId")
	if !ok {
		return
	}
	contract, err := h.Contracts.GetContract(c.Request.Context(), currentUserID(c), contractID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": contract})
}
