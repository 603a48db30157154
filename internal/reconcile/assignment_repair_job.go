package reconcile

import (
	"context"
	"fmt"

	"github.com/farmgatehq/farmgate-backend/internal/deliveries"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/metrics"
)

const defaultRepairLimit = 100

type assignmentRepairer interface {
	RepairDanglingAssignments(ctx context.Context, limit int) (*deliveries.RepairReport, error)
}

// AssignmentRepairJobParams configures the dangling-assignment repair job.
type AssignmentRepairJobParams struct {
	Logger     *logger.Logger
	Deliveries assignmentRepairer
	Metrics    *metrics.ReconcileJobMetrics
	Limit      int
}

// NewAssignmentRepairJob builds the job that re-links deliveries whose paired
// order update never landed and flags assignments with no delivery behind them.
func NewAssignmentRepairJob(params AssignmentRepairJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Deliveries == nil {
		return nil, fmt.Errorf("deliveries service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRepairLimit
	}
	return &assignmentRepairJob{
		logg:       params.Logger,
		deliveries: params.Deliveries,
		metrics:    params.Metrics,
		limit:      limit,
	}, nil
}

type assignmentRepairJob struct {
	logg       *logger.Logger
	deliveries assignmentRepairer
	metrics    *metrics.ReconcileJobMetrics
	limit      int
}

func (j *assignmentRepairJob) Name() string { return "assignment-repair" }

func (j *assignmentRepairJob) Run(ctx context.Context) error {
	report, err := j.deliveries.RepairDanglingAssignments(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("repair dangling assignments: %w", err)
	}
	j.metrics.AddRepaired(j.Name(), report.Repaired)
	j.metrics.AddFlagged(j.Name(), report.Flagged)

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"repaired": report.Repaired,
		"flagged":  report.Flagged,
	})
	j.logg.Info(reportCtx, "assignment repair pass complete")
	return nil
}
