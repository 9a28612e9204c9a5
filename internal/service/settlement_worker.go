package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// WorkerSettings tunes the settlement worker.
type WorkerSettings struct {
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
	// ConfirmWindow bounds how long an accepted payout waits for the rail's final answer.
	ConfirmWindow time.Duration
	MaxAttempts   int
	Currency      string
}

// SettlementWorker drives approved payouts to the payout rail from the durable
// settlement_jobs outbox. Jobs survive restarts; a crashed worker's lease expires
// and the job is claimed again.
type SettlementWorker struct {
	jobRepo     ports.SettlementJobRepository
	withdrawals *WithdrawalServiceImpl
	rail        ports.PayoutGateway
	reports     ports.ReportingService
	transactor  ports.DBTransactor
	cfg         WorkerSettings
	log         zerolog.Logger
	now         func() time.Time

	lastReportDay time.Time
}

// NewSettlementWorker creates a new SettlementWorker.
func NewSettlementWorker(
	jobRepo ports.SettlementJobRepository,
	withdrawals *WithdrawalServiceImpl,
	rail ports.PayoutGateway,
	reports ports.ReportingService,
	transactor ports.DBTransactor,
	cfg WorkerSettings,
	log zerolog.Logger,
) *SettlementWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if cfg.ConfirmWindow <= 0 {
		cfg.ConfirmWindow = 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = len(domain.SettlementRetryIntervals)
	}
	return &SettlementWorker{
		jobRepo:     jobRepo,
		withdrawals: withdrawals,
		rail:        rail,
		reports:     reports,
		transactor:  transactor,
		cfg:         cfg,
		log:         log.With().Str("component", "settlement_worker").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("settlement worker started")
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("settlement tick failed")
		}
		w.generateDailyReport(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("settlement worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due jobs and settles them. It returns the number of jobs claimed.
func (w *SettlementWorker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.claim(ctx)
	if err != nil {
		return 0, err
	}
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		w.settle(ctx, &jobs[i])
	}
	return len(jobs), nil
}

func (w *SettlementWorker) claim(ctx context.Context) ([]domain.SettlementJob, error) {
	dbTx, err := w.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	jobs, err := w.jobRepo.ClaimDue(ctx, dbTx, w.now(), w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return jobs, nil
}

func (w *SettlementWorker) settle(ctx context.Context, job *domain.SettlementJob) {
	log := w.log.With().
		Str("job_id", job.ID.String()).
		Str("payout_id", job.PayoutID.String()).
		Int("attempt", job.Attempts).
		Logger()

	payout, wr, err := w.withdrawals.StartSettlement(ctx, job.PayoutID)
	if err != nil {
		switch apperror.CodeOf(err) {
		case apperror.CodeAlreadyProcessed:
			log.Debug().Msg("payout already settled, closing job")
			w.finish(ctx, job, domain.JobDone, "")
		case apperror.CodeNotFound:
			log.Error().Msg("payout for settlement job not found")
			w.finish(ctx, job, domain.JobFailed, "payout not found")
		default:
			if job.Attempts < w.cfg.MaxAttempts {
				log.Warn().Err(err).Msg("could not start settlement")
				w.reschedule(ctx, job, err)
				return
			}
			log.Error().Err(err).Msg("could not start settlement, giving up")
			w.giveUp(ctx, log, job, err.Error())
		}
		return
	}

	// A payout the rail already accepted is bounded by the confirmation window, not by attempts.
	accepted := payout.ExternalPayoutID != nil
	expired := !w.now().Before(job.CreatedAt.Add(w.cfg.ConfirmWindow))

	receipt, err := w.rail.SendPayout(ctx, ports.PayoutRequest{
		IdempotencyKey: payout.ID.String(),
		PayoutID:       payout.ID,
		Amount:         payout.NetAmount,
		Currency:       w.cfg.Currency,
		Method:         wr.Method,
		Details:        wr.AccountDetails,
	})
	if err != nil {
		switch {
		case accepted && !expired:
			log.Warn().Err(err).Msg("payout status poll failed, polling again")
			w.await(ctx, job)
		case accepted:
			log.Error().Err(err).Msg("payout never confirmed by rail, handing to operator")
			w.giveUp(ctx, log, job, errUnconfirmedPayout)
		case retryable(err) && job.Attempts < w.cfg.MaxAttempts:
			log.Warn().Err(err).Dur("retry_in", domain.RetryDelay(job.Attempts)).Msg("payout rail call failed, retrying")
			w.reschedule(ctx, job, err)
		default:
			log.Error().Err(err).Msg("payout rail call failed, giving up")
			w.giveUp(ctx, log, job, err.Error())
		}
		return
	}

	switch receipt.Status {
	case ports.PayoutReceiptPaid:
		w.complete(ctx, log, domain.PayoutResult{PayoutID: payout.ID, ExternalPayoutID: receipt.ExternalID, Succeeded: true})
	case ports.PayoutReceiptFailed:
		w.complete(ctx, log, domain.PayoutResult{PayoutID: payout.ID, ExternalPayoutID: receipt.ExternalID, FailureReason: receipt.FailureReason})
	default:
		if expired {
			log.Error().Str("external_id", receipt.ExternalID).Msg("payout never confirmed by rail, handing to operator")
			w.giveUp(ctx, log, job, errUnconfirmedPayout)
			return
		}
		if !accepted {
			if err := w.withdrawals.RecordPayoutReference(ctx, payout.ID, receipt.ExternalID); err != nil {
				log.Warn().Err(err).Msg("failed to record external payout id")
			}
			log.Info().Str("external_id", receipt.ExternalID).Msg("payout accepted by rail, awaiting confirmation")
		}
		w.await(ctx, job)
	}
}

// errUnconfirmedPayout is the failure reason recorded when the confirmation window runs out.
const errUnconfirmedPayout = "payout not confirmed by rail"

func (w *SettlementWorker) complete(ctx context.Context, log zerolog.Logger, result domain.PayoutResult) {
	if _, err := w.withdrawals.CompletePayout(ctx, result); err != nil && apperror.CodeOf(err) != apperror.CodeAlreadyProcessed {
		// The lease expires and the job is claimed again; the rail replays by idempotency key.
		log.Error().Err(err).Msg("failed to record payout result")
	}
}

// giveUp fails the payout so the withdrawal lands in the operator queue. If even that
// cannot be recorded the job is closed as failed so it stops cycling.
func (w *SettlementWorker) giveUp(ctx context.Context, log zerolog.Logger, job *domain.SettlementJob, reason string) {
	_, err := w.withdrawals.CompletePayout(ctx, domain.PayoutResult{PayoutID: job.PayoutID, FailureReason: reason})
	if err == nil || apperror.CodeOf(err) == apperror.CodeAlreadyProcessed {
		return
	}
	log.Error().Err(err).Msg("failed to record payout failure, closing job")
	w.finish(ctx, job, domain.JobFailed, fmt.Sprintf("%s: %v", reason, err))
}

// await parks an accepted payout until the next status poll.
func (w *SettlementWorker) await(ctx context.Context, job *domain.SettlementJob) {
	job.Status = domain.JobAwaiting
	job.NextRunAt = w.now().Add(domain.ConfirmationPollInterval)
	job.LockedUntil = nil
	job.UpdatedAt = w.now()
	if err := w.jobRepo.Update(ctx, nil, job); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to park settlement job")
	}
}

func (w *SettlementWorker) reschedule(ctx context.Context, job *domain.SettlementJob, cause error) {
	msg := cause.Error()
	job.Status = domain.JobPending
	job.NextRunAt = w.now().Add(domain.RetryDelay(job.Attempts))
	job.LockedUntil = nil
	job.LastError = &msg
	job.UpdatedAt = w.now()
	if err := w.jobRepo.Update(ctx, nil, job); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to reschedule settlement job")
	}
}

func (w *SettlementWorker) finish(ctx context.Context, job *domain.SettlementJob, status domain.JobStatus, lastErr string) {
	job.Status = status
	job.LockedUntil = nil
	if lastErr != "" {
		job.LastError = &lastErr
	}
	job.UpdatedAt = w.now()
	if err := w.jobRepo.Update(ctx, nil, job); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to close settlement job")
	}
}

// generateDailyReport persists yesterday's commission report once per UTC day.
func (w *SettlementWorker) generateDailyReport(ctx context.Context) {
	if w.reports == nil {
		return
	}
	today, _ := domain.DayBounds(w.now())
	if w.lastReportDay.Equal(today) {
		return
	}
	yesterday := today.AddDate(0, 0, -1)
	if _, err := w.reports.GenerateCommissionReport(ctx, yesterday); err != nil {
		w.log.Warn().Err(err).Time("date", yesterday).Msg("daily commission report failed")
		return
	}
	w.lastReportDay = today
}

// retryable reports whether a rail error may succeed on a later attempt.
// Errors that do not say otherwise, such as timeouts, are retried.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}
