package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an operator or money-moving action kept in the audit trail.
type AuditAction string

const (
	AuditActionRefund             AuditAction = "PAYMENT_REFUND"
	AuditActionWithdrawalApprove  AuditAction = "WITHDRAWAL_APPROVE"
	AuditActionWithdrawalReject   AuditAction = "WITHDRAWAL_REJECT"
	AuditActionPayoutRetry        AuditAction = "PAYOUT_RETRY"
	AuditActionCommissionActivate AuditAction = "COMMISSION_ACTIVATE"
	AuditActionWalletLimits       AuditAction = "WALLET_LIMITS"
	AuditActionWalletStatus       AuditAction = "WALLET_STATUS"
	AuditActionWalletBonus        AuditAction = "WALLET_BONUS"
	AuditActionReportGenerate     AuditAction = "REPORT_GENERATE"
)

// AuditLog records who changed what through the operator surface.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    string      `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
