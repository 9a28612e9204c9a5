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

// WithdrawalHandler handles withdrawal requests, saved methods and the operator review flow.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}

	in := ports.CreateWithdrawalRequest{
		UserID:   userID,
		Amount:   req.Amount,
		Method:   domain.WithdrawalMethodType(req.Method),
		MethodID: req.MethodID,
	}
	if req.MethodID == nil {
		if req.Method == "" {
			response.Error(c, apperror.Validation("method or method_id is required"))
			return
		}
		details, err := dto.AccountDetails(req.Method, req.AccountDetails)
		if err != nil {
			response.Error(c, err)
			return
		}
		in.AccountDetails = details
	}

	w, err := h.withdrawalSvc.CreateWithdrawal(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, w)
}

// List handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	items, total, err := h.withdrawalSvc.ListUserWithdrawals(c.Request.Context(), userID, page.Page, page.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	w, err := h.withdrawalSvc.GetWithdrawal(c.Request.Context(), id, userID, middleware.IsAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// Cancel handles POST /api/v1/withdrawals/:id/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.NotesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	w, err := h.withdrawalSvc.CancelWithdrawal(c.Request.Context(), id, userID, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// ListMethods handles GET /api/v1/withdrawal-methods.
func (h *WithdrawalHandler) ListMethods(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	methods, err := h.withdrawalSvc.ListMethods(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, methods)
}

// AddMethod handles POST /api/v1/withdrawal-methods.
func (h *WithdrawalHandler) AddMethod(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.WithdrawalMethodRequest
	if !bindJSON(c, &req) {
		return
	}
	details, err := dto.AccountDetails(req.Method, req.AccountDetails)
	if err != nil {
		response.Error(c, err)
		return
	}

	m, err := h.withdrawalSvc.AddMethod(c.Request.Context(), ports.AddWithdrawalMethodRequest{
		UserID:    userID,
		Details:   details,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// DeleteMethod handles DELETE /api/v1/withdrawal-methods/:id.
func (h *WithdrawalHandler) DeleteMethod(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.withdrawalSvc.DeleteMethod(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AdminList handles GET /api/v1/admin/withdrawals?status=pending.
func (h *WithdrawalHandler) AdminList(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}

	status := domain.WithdrawalStatus(c.Query("status"))
	items, total, err := h.withdrawalSvc.ListWithdrawals(c.Request.Context(), status, page.Page, page.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}

// Queue handles GET /api/v1/admin/withdrawals/queue.
func (h *WithdrawalHandler) Queue(c *gin.Context) {
	list, err := h.withdrawalSvc.ListOperatorQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Approve handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	reviewerID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.NotesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	w, payout, err := h.withdrawalSvc.ApproveWithdrawal(c.Request.Context(), id, reviewerID, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"withdrawal": w, "payout": payout})
}

// Reject handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	reviewerID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.NotesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	w, err := h.withdrawalSvc.RejectWithdrawal(c.Request.Context(), id, reviewerID, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// Retry handles POST /api/v1/admin/withdrawals/:id/retry.
func (h *WithdrawalHandler) Retry(c *gin.Context) {
	reviewerID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	payout, err := h.withdrawalSvc.RetryPayout(c.Request.Context(), id, reviewerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payout)
}
