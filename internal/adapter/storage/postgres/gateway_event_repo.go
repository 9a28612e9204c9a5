package postgres

import (
	"context"
	"fmt"

	"ride-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// GatewayEventRepo implements ports.GatewayEventRepository.
type GatewayEventRepo struct {
	pool Pool
}

func NewGatewayEventRepo(pool Pool) *GatewayEventRepo {
	return &GatewayEventRepo{pool: pool}
}

// Insert records the event inside the caller's transaction. Returns false for a known event id.
func (r *GatewayEventRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.GatewayEvent) (bool, error) {
	query := `INSERT INTO gateway_events (event_id, source, type, object_id, received_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (event_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query, e.EventID, e.Source, e.Type, e.ObjectID, e.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("insert gateway event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Exists reports whether a committed row carries eventID.
func (r *GatewayEventRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM gateway_events WHERE event_id = $1)`, eventID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("lookup gateway event: %w", err)
	}
	return found, nil
}
