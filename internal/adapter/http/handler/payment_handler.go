package handler

import (
	"ride-ledger/internal/adapter/http/dto"
	"ride-ledger/internal/adapter/http/middleware"
	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"
	"ride-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles booking payment and refund endpoints.
type PaymentHandler struct {
	paymentSvc ports.BookingPaymentService
	refundSvc  ports.RefundService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.BookingPaymentService, refundSvc ports.RefundService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, refundSvc: refundSvc}
}

// PayBooking handles POST /api/v1/bookings/:id/payments.
func (h *PaymentHandler) PayBooking(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.BookingPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentSvc.ProcessBookingPayment(c.Request.Context(), ports.BookingPaymentRequest{
		BookingID: bookingID,
		UserID:    userID,
		Amount:    req.Amount,
		Method:    domain.PaymentMethod(req.Method),
		Pricing:   req.Pricing,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewBookingPaymentResponse(result))
}

// ListBookingPayments handles GET /api/v1/bookings/:id/payments.
func (h *PaymentHandler) ListBookingPayments(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c)
	if !ok {
		return
	}

	payments, err := h.paymentSvc.ListBookingPayments(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !middleware.IsAdmin(c) {
		for _, p := range payments {
			if p.UserID != userID {
				response.Error(c, apperror.ErrNotAuthorized())
				return
			}
		}
	}
	response.OK(c, payments)
}

// GetPayment handles GET /api/v1/payments/:id.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	payment, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if payment.UserID != userID && !middleware.IsAdmin(c) {
		response.Error(c, apperror.ErrNotAuthorized())
		return
	}
	response.OK(c, payment)
}

// Refund handles POST /api/v1/admin/payments/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	operatorID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	refund, err := h.refundSvc.ProcessRefund(c.Request.Context(), ports.RefundRequest{
		PaymentID:   id,
		Amount:      req.Amount,
		Reason:      req.Reason,
		RequestedBy: operatorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, refund)
}
