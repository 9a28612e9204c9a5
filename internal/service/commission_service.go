package service

import (
	"context"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var maxPercentage = decimal.NewFromInt(100)

// CommissionServiceImpl implements ports.CommissionService.
type CommissionServiceImpl struct {
	settingRepo ports.CommissionSettingRepository
	cache       ports.CommissionCache
	cacheTTL    time.Duration
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewCommissionService creates a new CommissionServiceImpl.
func NewCommissionService(
	settingRepo ports.CommissionSettingRepository,
	cache ports.CommissionCache,
	cacheTTL time.Duration,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *CommissionServiceImpl {
	return &CommissionServiceImpl{
		settingRepo: settingRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		transactor:  transactor,
		log:         log,
	}
}

// Active returns the active setting for t, or nil when none is configured.
func (s *CommissionServiceImpl) Active(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, error) {
	if !t.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown commission type %q", t))
	}

	// Layer 1: Redis
	var (
		version  int64
		fillable bool
	)
	if s.cache != nil {
		cached, v, err := s.cache.Get(ctx, t)
		if err != nil {
			s.log.Warn().Err(err).Str("type", string(t)).Msg("commission cache read failed, falling through to DB")
		}
		if cached != nil {
			return cached, nil
		}
		// The version is read before the DB so an activation in between retires this fill.
		version, fillable = v, err == nil
	}

	// Layer 2: DB
	setting, err := s.settingRepo.GetActive(ctx, t)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get active commission: %w", err))
	}
	if setting == nil {
		return nil, nil
	}

	if fillable {
		if err := s.cache.Set(ctx, setting, version, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("type", string(t)).Msg("failed to cache commission setting")
		}
	}
	return setting, nil
}

// Activate inserts a new schedule and deactivates the previous one atomically.
func (s *CommissionServiceImpl) Activate(ctx context.Context, in ports.ActivateCommissionInput) (*domain.CommissionSetting, error) {
	if err := validateCommissionInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	setting := &domain.CommissionSetting{
		ID:            uuid.New(),
		Type:          in.Type,
		Percentage:    in.Percentage,
		FixedAmount:   domain.RoundMoney(in.FixedAmount),
		MinAmount:     roundPtr(in.MinAmount),
		MaxAmount:     roundPtr(in.MaxAmount),
		IsActive:      true,
		EffectiveFrom: now,
		CreatedAt:     now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.settingRepo.DeactivateAll(ctx, dbTx, in.Type); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("deactivate commission settings: %w", err))
	}
	if err := s.settingRepo.Create(ctx, dbTx, setting); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create commission setting: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, in.Type); err != nil {
			s.log.Warn().Err(err).Str("type", string(in.Type)).Msg("failed to invalidate commission cache")
		}
	}

	s.log.Info().
		Str("setting_id", setting.ID.String()).
		Str("type", string(setting.Type)).
		Str("percentage", setting.Percentage.String()).
		Msg("commission setting activated")

	return setting, nil
}

// History lists every schedule of type t, newest first.
func (s *CommissionServiceImpl) History(ctx context.Context, t domain.CommissionType) ([]domain.CommissionSetting, error) {
	if !t.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown commission type %q", t))
	}
	settings, err := s.settingRepo.ListByType(ctx, t)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list commission settings: %w", err))
	}
	return settings, nil
}

func validateCommissionInput(in ports.ActivateCommissionInput) error {
	if !in.Type.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown commission type %q", in.Type))
	}
	if in.Percentage.IsNegative() || in.Percentage.GreaterThan(maxPercentage) {
		return apperror.Validation("percentage must be between 0 and 100")
	}
	if in.FixedAmount.IsNegative() {
		return apperror.Validation("fixed amount must not be negative")
	}
	if in.MinAmount != nil && in.MinAmount.IsNegative() {
		return apperror.Validation("min amount must not be negative")
	}
	if in.MaxAmount != nil && in.MaxAmount.IsNegative() {
		return apperror.Validation("max amount must not be negative")
	}
	if in.MinAmount != nil && in.MaxAmount != nil && in.MinAmount.GreaterThan(*in.MaxAmount) {
		return apperror.Validation("min amount must not exceed max amount")
	}
	if in.Type == domain.CommissionTypePerKm && !in.FixedAmount.IsPositive() {
		return apperror.Validation("per_km commission needs a fixed amount per km")
	}
	return nil
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := domain.RoundMoney(*d)
	return &v
}
