package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// lockTimeout bounds how long a unit of work waits for a wallet, booking or
// withdrawal row lock before PostgreSQL aborts it with SQLSTATE 55P03.
const lockTimeout = "5s"

// Transactor implements ports.DBTransactor on a Pool.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a READ COMMITTED transaction with a local lock timeout. Row locks
// taken with FOR UPDATE serialize writers.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'"); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return tx, nil
}
