package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errNotMigrated = errors.New("ledger schema is not migrated")

// HealthCheck implements ports.HealthChecker for PostgreSQL. A reachable
// database without the ledger tables is reported unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var migrated bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('wallet_transactions') IS NOT NULL`).Scan(&migrated); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if !migrated {
		return errNotMigrated
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
