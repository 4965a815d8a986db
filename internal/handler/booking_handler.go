package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/internal/service"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
	"github.com/altavia-air/altavia-api/pkg/response"
)

// BookingHandler wires HTTP endpoints to the booking service.
type BookingHandler struct {
	service *service.BookingService
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// ListMine returns the current subject's bookings.
func (h *BookingHandler) ListMine(c *gin.Context) {
	bookings, err := h.service.ListMine(c.Request.Context(), subjectFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, bookings)
}

// Get returns a single booking owned by the current subject.
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), subjectFromContext(c), c.Param("id"), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, booking)
}

// Cancel cancels a booking owned by the current subject.
func (h *BookingHandler) Cancel(c *gin.Context) {
	booking, err := h.service.Cancel(c.Request.Context(), subjectFromContext(c), c.Param("id"), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, booking)
}

// CreatePaymentIntent hands an opaque provider token off for a booking.
func (h *BookingHandler) CreatePaymentIntent(c *gin.Context) {
	var req models.PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment intent payload"))
		return
	}

	intent, err := h.service.CreatePaymentIntent(c.Request.Context(), subjectFromContext(c), c.Param("id"), c.ClientIP(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, intent)
}
