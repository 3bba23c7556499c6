package job

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

type MonthReconciler interface {
	ThisMonth() string
	ReconcileMonth(ctx context.Context, yearMonth string) (int64, error)
}

// UsageRollupJob rebuilds the monthly rollup of the current and previous month
// from daily rows, so late writes to the previous month are folded in.
type UsageRollupJob struct {
	ledger MonthReconciler
}

func NewUsageRollupJob(ledger MonthReconciler) *UsageRollupJob {
	return &UsageRollupJob{ledger: ledger}
}

func (j *UsageRollupJob) Name() string {
	return "usage_rollup"
}

func (j *UsageRollupJob) Run(ctx context.Context) error {
	current := j.ledger.ThisMonth()
	t, err := time.Parse(model.YearMonthLayout, current)
	if err != nil {
		return fmt.Errorf("parse current month %q: %w", current, err)
	}
	previous := t.AddDate(0, -1, 0).Format(model.YearMonthLayout)
	logger := logutil.GetLogger(ctx)
	for _, ym := range []string{previous, current} {
		rows, err := j.ledger.ReconcileMonth(ctx, ym)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", ym, err)
		}
		logger.Info("monthly usage reconciled", zap.String("year_month", ym), zap.Int64("rows", rows))
	}
	return nil
}
