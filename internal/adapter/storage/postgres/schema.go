package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		id            UUID PRIMARY KEY,
		user_id       UUID NOT NULL UNIQUE,
		balance       NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency      VARCHAR(3) NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		daily_limit   NUMERIC(14,2) NOT NULL DEFAULT 0,
		monthly_limit NUMERIC(14,2) NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		seq            BIGSERIAL UNIQUE,
		id             UUID PRIMARY KEY,
		wallet_id      UUID NOT NULL REFERENCES wallets(id),
		type           VARCHAR(10) NOT NULL CHECK (type IN ('credit','debit')),
		amount         NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		balance_before NUMERIC(14,2) NOT NULL,
		balance_after  NUMERIC(14,2) NOT NULL CHECK (balance_after >= 0),
		category       VARCHAR(32) NOT NULL,
		reference_type VARCHAR(32),
		reference_id   VARCHAR(128),
		description    TEXT NOT NULL DEFAULT '',
		status         VARCHAR(16) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallet_tx_wallet_created ON wallet_transactions (wallet_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL,
		driver_id      UUID,
		total_amount   NUMERIC(14,2) NOT NULL,
		currency       VARCHAR(3) NOT NULL,
		payment_status VARCHAR(16) NOT NULL DEFAULT 'unpaid',
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS booking_payments (
		id                      UUID PRIMARY KEY,
		booking_id              UUID NOT NULL REFERENCES bookings(id),
		user_id                 UUID NOT NULL,
		kind                    VARCHAR(16) NOT NULL,
		original_payment_id     UUID REFERENCES booking_payments(id),
		amount                  NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		currency                VARCHAR(3) NOT NULL,
		payment_method          VARCHAR(16) NOT NULL,
		status                  VARCHAR(16) NOT NULL,
		admin_commission_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		driver_earning_amount   NUMERIC(14,2) NOT NULL DEFAULT 0,
		pricing                 JSONB,
		gateway_intent_id       VARCHAR(128) UNIQUE,
		failure_reason          TEXT,
		refund_reason           TEXT,
		completed_at            TIMESTAMPTZ,
		created_at              TIMESTAMPTZ NOT NULL,
		updated_at              TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_booking_payments_booking ON booking_payments (booking_id)`,
	`CREATE INDEX IF NOT EXISTS idx_booking_payments_completed ON booking_payments (completed_at)`,
	`CREATE TABLE IF NOT EXISTS commission_settings (
		id             UUID PRIMARY KEY,
		type           VARCHAR(16) NOT NULL,
		percentage     NUMERIC(7,4) NOT NULL DEFAULT 0,
		fixed_amount   NUMERIC(14,2) NOT NULL DEFAULT 0,
		min_amount     NUMERIC(14,2),
		max_amount     NUMERIC(14,2),
		is_active      BOOLEAN NOT NULL,
		effective_from TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_commission_settings_active ON commission_settings (type) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS commission_transactions (
		id                    UUID PRIMARY KEY,
		booking_payment_id    UUID REFERENCES booking_payments(id),
		reference_type        VARCHAR(32),
		reference_id          VARCHAR(128),
		transaction_type      VARCHAR(32) NOT NULL,
		base_amount           NUMERIC(14,2) NOT NULL,
		commission_amount     NUMERIC(14,2) NOT NULL,
		commission_percentage NUMERIC(7,4) NOT NULL,
		status                VARCHAR(16) NOT NULL,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commission_tx_payment ON commission_transactions (booking_payment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_commission_tx_reference ON commission_transactions (reference_type, reference_id)`,
	`CREATE TABLE IF NOT EXISTS withdrawal_methods (
		id                  UUID PRIMARY KEY,
		user_id             UUID NOT NULL,
		method              VARCHAR(16) NOT NULL,
		account_details_enc TEXT NOT NULL,
		is_default          BOOLEAN NOT NULL DEFAULT FALSE,
		is_active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id                  UUID PRIMARY KEY,
		user_id             UUID NOT NULL,
		wallet_id           UUID NOT NULL REFERENCES wallets(id),
		amount              NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		fee_amount          NUMERIC(14,2) NOT NULL DEFAULT 0,
		method              VARCHAR(16) NOT NULL,
		account_details_enc TEXT NOT NULL,
		status              VARCHAR(16) NOT NULL,
		admin_notes         TEXT,
		reviewed_by         UUID,
		processed_at        TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_withdrawal_in_flight ON withdrawal_requests (user_id)
		WHERE status IN ('pending','approved','processing')`,
	`CREATE TABLE IF NOT EXISTS payout_transactions (
		id                    UUID PRIMARY KEY,
		withdrawal_request_id UUID NOT NULL REFERENCES withdrawal_requests(id),
		gateway               VARCHAR(32) NOT NULL,
		external_payout_id    VARCHAR(128),
		amount                NUMERIC(14,2) NOT NULL,
		fee_amount            NUMERIC(14,2) NOT NULL,
		net_amount            NUMERIC(14,2) NOT NULL,
		status                VARCHAR(16) NOT NULL,
		failure_reason        TEXT,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL,
		CHECK (net_amount = amount - fee_amount)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payouts_withdrawal ON payout_transactions (withdrawal_request_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS settlement_jobs (
		id           UUID PRIMARY KEY,
		payout_id    UUID NOT NULL UNIQUE REFERENCES payout_transactions(id),
		status       VARCHAR(16) NOT NULL,
		attempts     INT NOT NULL DEFAULT 0,
		next_run_at  TIMESTAMPTZ NOT NULL,
		locked_until TIMESTAMPTZ,
		last_error   TEXT,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_settlement_jobs_due ON settlement_jobs (next_run_at) WHERE status IN ('pending','running','awaiting')`,
	`CREATE TABLE IF NOT EXISTS gateway_events (
		event_id    VARCHAR(128) PRIMARY KEY,
		source      VARCHAR(32) NOT NULL,
		type        VARCHAR(64) NOT NULL,
		object_id   VARCHAR(128) NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS commission_reports (
		id                        UUID PRIMARY KEY,
		report_date               DATE NOT NULL UNIQUE,
		total_bookings            INT NOT NULL,
		total_booking_amount      NUMERIC(14,2) NOT NULL,
		total_commission_amount   NUMERIC(14,2) NOT NULL,
		total_refunded_commission NUMERIC(14,2) NOT NULL,
		total_withdrawals         INT NOT NULL,
		total_withdrawal_amount   NUMERIC(14,2) NOT NULL,
		total_withdrawal_fees     NUMERIC(14,2) NOT NULL,
		net_commission            NUMERIC(14,2) NOT NULL,
		created_at                TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id            UUID PRIMARY KEY,
		actor_id      UUID,
		actor_role    VARCHAR(32) NOT NULL DEFAULT '',
		action        VARCHAR(32) NOT NULL,
		resource_type VARCHAR(32) NOT NULL,
		resource_id   VARCHAR(64) NOT NULL DEFAULT '',
		details       TEXT NOT NULL DEFAULT '',
		ip_address    VARCHAR(64) NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs (created_at)`,
}

// Migrate creates the ledger tables when they are missing.
func Migrate(ctx context.Context, pool Pool, log zerolog.Logger) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("database schema up to date")
	return nil
}
