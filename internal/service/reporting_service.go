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

// maxReconcileDays bounds ad hoc reconciliation ranges.
const maxReconcileDays = 92

// reportingService implements ports.ReportingService.
type reportingService struct {
	reportRepo   ports.ReportRepository
	walletRepo   ports.WalletRepository
	walletTxRepo ports.WalletTransactionRepository
	log          zerolog.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	reportRepo ports.ReportRepository,
	walletRepo ports.WalletRepository,
	walletTxRepo ports.WalletTransactionRepository,
	log zerolog.Logger,
) ports.ReportingService {
	return &reportingService{
		reportRepo:   reportRepo,
		walletRepo:   walletRepo,
		walletTxRepo: walletTxRepo,
		log:          log,
	}
}

// GenerateCommissionReport persists the report for date's UTC day. An existing
// report is returned unchanged.
func (s *reportingService) GenerateCommissionReport(ctx context.Context, date time.Time) (*domain.CommissionReport, error) {
	from, to := domain.DayBounds(date)

	existing, err := s.reportRepo.GetByDate(ctx, from)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get report: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	totals, err := s.reportRepo.ComputeTotals(ctx, from, to)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("compute totals: %w", err))
	}

	report := domain.NewCommissionReport(from, totals)
	created, err := s.reportRepo.Create(ctx, report)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create report: %w", err))
	}
	if !created {
		// Another generator won the insert.
		existing, err = s.reportRepo.GetByDate(ctx, from)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get report: %w", err))
		}
		if existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("report for %s vanished after conflict", from.Format(time.DateOnly)))
		}
		return existing, nil
	}

	s.log.Info().
		Str("date", from.Format(time.DateOnly)).
		Int("bookings", totals.TotalBookings).
		Str("net_commission", report.NetCommission.StringFixed(2)).
		Msg("commission report generated")

	return report, nil
}

func (s *reportingService) GetCommissionReport(ctx context.Context, date time.Time) (*domain.CommissionReport, error) {
	report, err := s.reportRepo.GetByDate(ctx, date)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get report: %w", err))
	}
	if report == nil {
		return nil, apperror.ErrNotFound("report")
	}
	return report, nil
}

func (s *reportingService) ListCommissionReports(ctx context.Context, from, to time.Time) ([]domain.CommissionReport, error) {
	start, end, err := dayRange(from, to)
	if err != nil {
		return nil, err
	}
	reports, err := s.reportRepo.List(ctx, start, end)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list reports: %w", err))
	}
	return reports, nil
}

// Reconcile recomputes every day in [from, to] and compares it with the persisted report.
// Nothing is written.
func (s *reportingService) Reconcile(ctx context.Context, from, to time.Time) ([]domain.ReconciliationLine, error) {
	start, end, err := dayRange(from, to)
	if err != nil {
		return nil, err
	}

	var lines []domain.ReconciliationLine
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		totals, err := s.reportRepo.ComputeTotals(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("compute totals: %w", err))
		}
		persisted, err := s.reportRepo.GetByDate(ctx, day)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get report: %w", err))
		}

		line := domain.ReconciliationLine{Date: day, Computed: totals, Persisted: persisted}
		line.Diff()
		if len(line.Mismatches) > 0 {
			s.log.Warn().
				Str("date", day.Format(time.DateOnly)).
				Strs("fields", line.Mismatches).
				Msg("commission report drift")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// VerifyWallet replays the wallet's ledger: the balance must equal the sum of
// completed entries and every entry must start where the previous one ended.
func (s *reportingService) VerifyWallet(ctx context.Context, walletID uuid.UUID) (*domain.WalletVerification, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	chain, err := s.walletTxRepo.ListChain(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}

	v := &domain.WalletVerification{
		WalletID:        walletID,
		Balance:         wallet.Balance,
		ComputedBalance: decimal.Zero,
	}
	var prev *domain.WalletTransaction
	for i := range chain {
		t := &chain[i]
		if t.Status != domain.TransactionStatusCompleted {
			continue
		}
		v.TransactionCount++
		v.ComputedBalance = v.ComputedBalance.Add(t.Delta())
		if !t.Consistent() || (prev != nil && !prev.BalanceAfter.Equal(t.BalanceBefore)) {
			v.ChainBreaks = append(v.ChainBreaks, t.ID)
		}
		prev = t
	}

	if !v.Consistent() {
		s.log.Error().
			Str("wallet_id", walletID.String()).
			Str("balance", v.Balance.StringFixed(2)).
			Str("computed", v.ComputedBalance.StringFixed(2)).
			Int("chain_breaks", len(v.ChainBreaks)).
			Msg("wallet ledger inconsistent")
	}
	return v, nil
}

// dayRange turns an inclusive [from, to] date range into half-open UTC day bounds.
func dayRange(from, to time.Time) (time.Time, time.Time, error) {
	start, _ := domain.DayBounds(from)
	_, end := domain.DayBounds(to)
	if end.Before(start) || end.Equal(start) {
		return time.Time{}, time.Time{}, apperror.Validation("from must not be after to")
	}
	if end.Sub(start) > maxReconcileDays*24*time.Hour {
		return time.Time{}, time.Time{}, apperror.Validation(fmt.Sprintf("range must not exceed %d days", maxReconcileDays))
	}
	return start, end, nil
}
