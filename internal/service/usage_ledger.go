package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

const (
	MonthlySourceRollup = "rollup"
	MonthlySourceDaily  = "daily"

	defaultRecordTimeout = 2 * time.Second
)

type UsageLedger struct {
	store         IUsageStore
	calendar      model.UsageCalendar
	monthlySource string
	recordTimeout time.Duration
	now           func() time.Time
}

func NewUsageLedger(store IUsageStore, calendar model.UsageCalendar, monthlySource string, recordTimeout time.Duration) *UsageLedger {
	if monthlySource != MonthlySourceDaily {
		monthlySource = MonthlySourceRollup
	}
	if recordTimeout <= 0 {
		recordTimeout = defaultRecordTimeout
	}
	return &UsageLedger{
		store:         store,
		calendar:      calendar,
		monthlySource: monthlySource,
		recordTimeout: recordTimeout,
		now:           time.Now,
	}
}

func (l *UsageLedger) Today() string {
	return l.calendar.Date(l.now())
}

func (l *UsageLedger) ThisMonth() string {
	return l.calendar.YearMonth(l.now())
}

// Record counts one action. The daily and monthly counters move together with
// the event append, so a returned nil means all three were written.
func (l *UsageLedger) Record(ctx context.Context, userID string, kind model.ActionKind, metadata map[string]interface{}) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required: %w", appErr.ErrInvalid)
	}
	if _, err := model.ParseActionKind(string(kind)); err != nil {
		return fmt.Errorf("%v: %w", err, appErr.ErrInvalid)
	}
	now := l.now()
	event := &model.UsageEvent{
		ID:        newID(),
		UserID:    userID,
		Kind:      kind,
		Timestamp: now.Unix(),
		Date:      l.calendar.Date(now),
		YearMonth: l.calendar.YearMonth(now),
		Metadata:  metadata,
	}
	if err := l.store.Record(ctx, event); err != nil {
		return appErr.Unavailable(err)
	}
	return nil
}

// RecordAfter records an action that has already been performed. The write
// outlives the request context and failures are only logged.
func (l *UsageLedger) RecordAfter(ctx context.Context, userID string, kind model.ActionKind, metadata map[string]interface{}) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.recordTimeout)
	defer cancel()
	if err := l.Record(rctx, userID, kind, metadata); err != nil {
		logutil.GetLogger(ctx).Warn("record usage failed",
			zap.String("user_id", userID),
			zap.String("action_kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (l *UsageLedger) DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error) {
	count, err := l.store.DailyCount(ctx, userID, date, kind)
	if err != nil {
		return 0, appErr.Unavailable(err)
	}
	return count, nil
}

// MonthlyCount reads the configured monthly source. With the rollup source a
// month that has no rollup row yet is summed from daily rows.
func (l *UsageLedger) MonthlyCount(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, error) {
	if l.monthlySource == MonthlySourceDaily {
		return l.MonthlyCountFromDaily(ctx, userID, yearMonth, kind)
	}
	count, ok, err := l.store.MonthlyCount(ctx, userID, yearMonth, kind)
	if err != nil {
		return 0, appErr.Unavailable(err)
	}
	if !ok {
		return l.MonthlyCountFromDaily(ctx, userID, yearMonth, kind)
	}
	return count, nil
}

func (l *UsageLedger) MonthlyCountFromRollup(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, error) {
	count, _, err := l.store.MonthlyCount(ctx, userID, yearMonth, kind)
	if err != nil {
		return 0, appErr.Unavailable(err)
	}
	return count, nil
}

func (l *UsageLedger) MonthlyCountFromDaily(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, error) {
	from, to, err := l.calendar.MonthRange(yearMonth)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, appErr.ErrInvalid)
	}
	count, err := l.store.SumDaily(ctx, userID, from, to, kind)
	if err != nil {
		return 0, appErr.Unavailable(err)
	}
	return count, nil
}

func (l *UsageLedger) DailyUsage(ctx context.Context, userID, date string) (*model.DailyUsage, error) {
	counts, err := l.store.DailyCounts(ctx, userID, date)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}
	return &model.DailyUsage{UserID: userID, Date: date, Counts: fillKinds(counts)}, nil
}

func (l *UsageLedger) MonthlyUsage(ctx context.Context, userID, yearMonth string) (*model.MonthlyUsage, error) {
	var (
		counts map[model.ActionKind]int64
		err    error
	)
	if l.monthlySource == MonthlySourceRollup {
		counts, err = l.store.MonthlyCounts(ctx, userID, yearMonth)
		if err != nil {
			return nil, appErr.Unavailable(err)
		}
	}
	if len(counts) == 0 {
		from, to, rerr := l.calendar.MonthRange(yearMonth)
		if rerr != nil {
			return nil, fmt.Errorf("%v: %w", rerr, appErr.ErrInvalid)
		}
		counts, err = l.store.SumDailyCounts(ctx, userID, from, to)
		if err != nil {
			return nil, appErr.Unavailable(err)
		}
	}
	return &model.MonthlyUsage{UserID: userID, YearMonth: yearMonth, Counts: fillKinds(counts)}, nil
}

// ReconcileMonth rewrites the monthly rollup of yearMonth from daily rows.
func (l *UsageLedger) ReconcileMonth(ctx context.Context, yearMonth string) (int64, error) {
	from, to, err := l.calendar.MonthRange(yearMonth)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, appErr.ErrInvalid)
	}
	rows, err := l.store.RebuildMonthly(ctx, yearMonth, from, to)
	if err != nil {
		return 0, appErr.Unavailable(err)
	}
	return rows, nil
}

func fillKinds(counts map[model.ActionKind]int64) map[model.ActionKind]int64 {
	out := make(map[model.ActionKind]int64, len(model.AllActionKinds))
	for _, k := range model.AllActionKinds {
		out[k] = counts[k]
	}
	return out
}
