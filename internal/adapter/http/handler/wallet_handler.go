package handler

import (
	"ride-ledger/internal/adapter/http/dto"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves the caller's own wallet.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, total, err := h.walletSvc.ListTransactions(c.Request.Context(), wallet.ID, page.Page, page.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}

// Recharge handles POST /api/v1/wallet/recharge.
func (h *WalletHandler) Recharge(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.RechargeRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.Recharge(c.Request.Context(), userID, req.Amount, req.ExternalRef)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}
