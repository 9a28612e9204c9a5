package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResourceID lets a handler name the resource it created when the route has no :id.
const CtxAuditResourceID = "audit_resource_id"

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps "METHOD route-template" to the action it records.
var auditedRoutes = map[string]auditRoute{
	"POST /api/v1/admin/payments/:id/refund":     {domain.AuditActionRefund, "booking_payment"},
	"POST /api/v1/admin/withdrawals/:id/approve": {domain.AuditActionWithdrawalApprove, "withdrawal"},
	"POST /api/v1/admin/withdrawals/:id/reject":  {domain.AuditActionWithdrawalReject, "withdrawal"},
	"POST /api/v1/admin/withdrawals/:id/retry":   {domain.AuditActionPayoutRetry, "withdrawal"},
	"POST /api/v1/admin/commissions":             {domain.AuditActionCommissionActivate, "commission_setting"},
	"PUT /api/v1/admin/wallets/:id/limits":       {domain.AuditActionWalletLimits, "wallet"},
	"PUT /api/v1/admin/wallets/:id/status":       {domain.AuditActionWalletStatus, "wallet"},
	"POST /api/v1/admin/users/:id/bonus":         {domain.AuditActionWalletBonus, "user"},
	"POST /api/v1/admin/reports":                 {domain.AuditActionReportGenerate, "commission_report"},
}

// AuditLog records successful operator writes once the handler has responded.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		action, resourceType := mapRouteToAction(c.Request.Method, c.FullPath())
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if id, ok := CallerID(c); ok {
			actorID = &id
		}

		resourceID := c.Param("id")
		if id := c.GetString(CtxAuditResourceID); id != "" {
			resourceID = id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			ActorRole:    c.GetString(CtxRole),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(method, route string) (domain.AuditAction, string) {
	r, ok := auditedRoutes[method+" "+route]
	if !ok {
		return "", ""
	}
	return r.action, r.resourceType
}
