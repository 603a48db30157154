package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/metrics"
)

const (
	defaultSweepLimit   = 250
	defaultStaleAfter   = 30 * time.Minute
	defaultAbandonAfter = 24 * time.Hour
)

type paymentSweeper interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)
	Verify(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	Abandon(ctx context.Context, reference string) (bool, error)
}

// PaymentSweepJobParams configures the stale-payment sweep job.
type PaymentSweepJobParams struct {
	Logger   *logger.Logger
	Payments paymentSweeper
	Metrics  *metrics.ReconcileJobMetrics
	Limit    int
	// StaleAfter is how long a transaction may sit pending before the sweep
	// asks the gateway for its real outcome.
	StaleAfter time.Duration
	// AbandonAfter is how long a transaction may sit pending before the sweep
	// gives up on it entirely.
	AbandonAfter time.Duration
	Now          func() time.Time
}

// NewPaymentSweepJob builds the job that settles pending transactions whose
// webhook never arrived.
func NewPaymentSweepJob(params PaymentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	abandonAfter := params.AbandonAfter
	if abandonAfter <= 0 {
		abandonAfter = defaultAbandonAfter
	}
	return &paymentSweepJob{
		logg:         params.Logger,
		payments:     params.Payments,
		metrics:      params.Metrics,
		limit:        limit,
		staleAfter:   staleAfter,
		abandonAfter: abandonAfter,
		now:          now,
	}, nil
}

type paymentSweepJob struct {
	logg         *logger.Logger
	payments     paymentSweeper
	metrics      *metrics.ReconcileJobMetrics
	limit        int
	staleAfter   time.Duration
	abandonAfter time.Duration
	now          func() time.Time
}

func (j *paymentSweepJob) Name() string { return "payment-sweep" }

func (j *paymentSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.staleAfter)
	stale, err := j.payments.ListStalePending(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list stale pending transactions: %w", err)
	}

	var errs error
	settled := 0
	abandoned := 0
	flagged := 0
	for i := range stale {
		outcome, err := j.sweepTransaction(ctx, &stale[i])
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		switch outcome {
		case sweepSettled:
			settled++
		case sweepAbandoned:
			abandoned++
		case sweepFlagged:
			flagged++
		}
	}
	j.metrics.AddRepaired(j.Name(), settled+abandoned)
	j.metrics.AddFlagged(j.Name(), flagged)

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"settled":    settled,
		"abandoned":  abandoned,
		"flagged":    flagged,
	})
	j.logg.Info(reportCtx, "payment sweep complete")
	return errs
}

type sweepOutcome int

const (
	sweepNone sweepOutcome = iota
	sweepSettled
	sweepAbandoned
	sweepFlagged
)

func (j *paymentSweepJob) sweepTransaction(ctx context.Context, txn *models.PaymentTransaction) (sweepOutcome, error) {
	lctx := j.logg.WithReference(ctx, txn.Reference)

	verified, err := j.payments.Verify(lctx, txn.Reference)
	if err != nil {
		j.logg.Warn(lctx, "could not verify stale transaction with gateway")
		return sweepFlagged, fmt.Errorf("verify %s: %w", txn.Reference, err)
	}
	if verified.Status.IsTerminal() {
		j.logg.Info(lctx, fmt.Sprintf("stale transaction settled as %s", verified.Status))
		return sweepSettled, nil
	}

	// Still pending at the gateway. Past the abandon window there is nothing
	// left to wait for.
	if txn.CreatedAt.Before(j.now().Add(-j.abandonAfter)) {
		won, err := j.payments.Abandon(lctx, txn.Reference)
		if err != nil {
			return sweepFlagged, fmt.Errorf("abandon %s: %w", txn.Reference, err)
		}
		if won {
			j.logg.Info(lctx, "stale transaction abandoned")
			return sweepAbandoned, nil
		}
		return sweepNone, nil
	}
	return sweepNone, nil
}
