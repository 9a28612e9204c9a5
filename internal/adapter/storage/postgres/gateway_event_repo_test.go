package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayEventRepo_Insert(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		inserted bool
	}{
		{"first delivery", 1, true},
		{"redelivery", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewGatewayEventRepo(mock)
			e := &domain.GatewayEvent{
				EventID:    "evt_123",
				Source:     domain.GatewayEventSourcePayments,
				Type:       domain.EventPaymentSucceeded,
				ObjectID:   "pi_456",
				ReceivedAt: time.Now().UTC().Truncate(time.Microsecond),
			}

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO gateway_events .+ ON CONFLICT \\(event_id\\) DO NOTHING").
				WithArgs(e.EventID, e.Source, e.Type, e.ObjectID, e.ReceivedAt).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.affected))

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			inserted, err := repo.Insert(context.Background(), tx, e)
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGatewayEventRepo_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayEventRepo(mock)

	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM gateway_events WHERE event_id = \\$1\\)").
		WithArgs("evt_123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("evt_404").
		WillReturnError(errors.New("connection reset"))

	found, err := repo.Exists(context.Background(), "evt_123")
	require.NoError(t, err)
	assert.True(t, found)

	_, err = repo.Exists(context.Background(), "evt_404")
	assert.ErrorContains(t, err, "lookup gateway event")
	assert.NoError(t, mock.ExpectationsWereMet())
}
