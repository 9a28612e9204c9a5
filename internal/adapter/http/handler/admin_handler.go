package handler

import (
	"time"

	"ride-ledger/internal/adapter/http/dto"
	"ride-ledger/internal/adapter/http/middleware"
	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"
	"ride-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves commission schedules, reports and wallet administration.
type AdminHandler struct {
	commissionSvc ports.CommissionService
	reportingSvc  ports.ReportingService
	walletSvc     ports.WalletService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(commissionSvc ports.CommissionService, reportingSvc ports.ReportingService, walletSvc ports.WalletService) *AdminHandler {
	return &AdminHandler{
		commissionSvc: commissionSvc,
		reportingSvc:  reportingSvc,
		walletSvc:     walletSvc,
	}
}

func commissionType(c *gin.Context) (domain.CommissionType, bool) {
	t := domain.CommissionType(c.Param("type"))
	if !t.Valid() {
		response.Error(c, apperror.Validation("unknown commission type"))
		return "", false
	}
	return t, true
}

// ActiveCommission handles GET /api/v1/commissions/:type.
func (h *AdminHandler) ActiveCommission(c *gin.Context) {
	t, ok := commissionType(c)
	if !ok {
		return
	}

	setting, err := h.commissionSvc.Active(c.Request.Context(), t)
	if err != nil {
		response.Error(c, err)
		return
	}
	if setting == nil {
		response.Error(c, apperror.ErrNotFound("commission setting"))
		return
	}
	response.OK(c, setting)
}

// ActivateCommission handles POST /api/v1/admin/commissions.
func (h *AdminHandler) ActivateCommission(c *gin.Context) {
	var req dto.ActivateCommissionRequest
	if !bindJSON(c, &req) {
		return
	}

	setting, err := h.commissionSvc.Activate(c.Request.Context(), ports.ActivateCommissionInput{
		Type:        domain.CommissionType(req.Type),
		Percentage:  req.Percentage,
		FixedAmount: req.FixedAmount,
		MinAmount:   req.MinAmount,
		MaxAmount:   req.MaxAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxAuditResourceID, setting.ID.String())
	response.Created(c, setting)
}

// CommissionHistory handles GET /api/v1/admin/commissions/:type/history.
func (h *AdminHandler) CommissionHistory(c *gin.Context) {
	t, ok := commissionType(c)
	if !ok {
		return
	}

	history, err := h.commissionSvc.History(c.Request.Context(), t)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, history)
}

// GenerateReport handles POST /api/v1/admin/reports.
func (h *AdminHandler) GenerateReport(c *gin.Context) {
	var req dto.GenerateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	day, err := dto.ParseDay(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reportingSvc.GenerateCommissionReport(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxAuditResourceID, req.Date)
	response.OK(c, report)
}

// GetReport handles GET /api/v1/admin/reports/:date.
func (h *AdminHandler) GetReport(c *gin.Context) {
	day, err := dto.ParseDay(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reportingSvc.GetCommissionReport(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// ListReports handles GET /api/v1/admin/reports?from=&to=.
func (h *AdminHandler) ListReports(c *gin.Context) {
	from, to, ok := bindDateRange(c)
	if !ok {
		return
	}

	reports, err := h.reportingSvc.ListCommissionReports(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reports)
}

// Reconcile handles GET /api/v1/admin/reconciliation?from=&to=.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	from, to, ok := bindDateRange(c)
	if !ok {
		return
	}

	lines, err := h.reportingSvc.Reconcile(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lines)
}

// GetWallet handles GET /api/v1/admin/wallets/:id.
func (h *AdminHandler) GetWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// WalletTransactions handles GET /api/v1/admin/wallets/:id/transactions.
func (h *AdminHandler) WalletTransactions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	items, total, err := h.walletSvc.ListTransactions(c.Request.Context(), id, page.Page, page.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}

// VerifyWallet handles GET /api/v1/admin/wallets/:id/verify.
func (h *AdminHandler) VerifyWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	v, err := h.reportingSvc.VerifyWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"verification": v, "consistent": v.Consistent()})
}

// UpdateLimits handles PUT /api/v1/admin/wallets/:id/limits.
func (h *AdminHandler) UpdateLimits(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.WalletLimitsRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.UpdateLimits(c.Request.Context(), id, req.DailyLimit, req.MonthlyLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// SetStatus handles PUT /api/v1/admin/wallets/:id/status.
func (h *AdminHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.WalletStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// GrantBonus handles POST /api/v1/admin/users/:id/bonus.
func (h *AdminHandler) GrantBonus(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.BonusRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.GrantBonus(c.Request.Context(), userID, req.Amount, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

func bindDateRange(c *gin.Context) (from, to time.Time, ok bool) {
	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return from, to, false
	}
	from, _ = dto.ParseDay(q.From)
	to, _ = dto.ParseDay(q.To)
	return from, to, true
}
