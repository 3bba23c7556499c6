package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/memstore"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

func TestConcurrentRecordsAreAllCounted(t *testing.T) {
	env := newTestEnv(t)
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.ledger.Record(context.Background(), "u1", model.ActionAsk, nil))
		}()
	}
	wg.Wait()

	ctx := context.Background()
	daily, err := env.ledger.DailyCount(ctx, "u1", "2026-10-16", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, n, daily)

	rollup, err := env.ledger.MonthlyCountFromRollup(ctx, "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	fromDaily, err := env.ledger.MonthlyCountFromDaily(ctx, "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, n, rollup)
	require.Equal(t, rollup, fromDaily)
	require.Len(t, env.usage.Events(), n)
}

func TestRecordBucketsUseConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	store := memstore.NewUsageStore()
	l := NewUsageLedger(store, model.NewUsageCalendar(loc), MonthlySourceRollup, 0)
	l.now = func() time.Time { return time.Date(2026, 11, 1, 3, 0, 0, 0, time.UTC) }

	require.Equal(t, "2026-10-31", l.Today())
	require.Equal(t, "2026-10", l.ThisMonth())
	require.NoError(t, l.Record(context.Background(), "u1", model.ActionAsk, nil))

	count, err := l.MonthlyCount(context.Background(), "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMonthlyCountFallsBackToDaily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.record(t, "u1", model.ActionAsk, 3)
	env.usage.DropMonthly()

	count, err := env.ledger.MonthlyCount(ctx, "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	rollup, err := env.ledger.MonthlyCountFromRollup(ctx, "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	require.Zero(t, rollup)
}

func TestDailySourceIgnoresRollup(t *testing.T) {
	store := memstore.NewUsageStore()
	l := NewUsageLedger(store, model.NewUsageCalendar(time.UTC), MonthlySourceDaily, 0)
	l.now = func() time.Time { return fixedNow }
	require.NoError(t, l.Record(context.Background(), "u1", model.ActionAsk, nil))
	store.SetMonthly("u1", "2026-10", model.ActionAsk, 99)

	count, err := l.MonthlyCount(context.Background(), "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestReconcileMonthRewritesRollup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.record(t, "u1", model.ActionAsk, 4)
	env.record(t, "u2", model.ActionTTS, 2)
	env.usage.SetMonthly("u1", "2026-10", model.ActionAsk, 17)

	rows, err := env.ledger.ReconcileMonth(ctx, "2026-10")
	require.NoError(t, err)
	require.EqualValues(t, 2, rows)

	count, err := env.ledger.MonthlyCountFromRollup(ctx, "u1", "2026-10", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	_, err = env.ledger.ReconcileMonth(ctx, "2026-13")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUsageSnapshotsListEveryKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.record(t, "u1", model.ActionAsk, 2)
	env.record(t, "u1", model.ActionSTT, 1)

	daily, err := env.ledger.DailyUsage(ctx, "u1", "2026-10-16")
	require.NoError(t, err)
	require.Len(t, daily.Counts, len(model.AllActionKinds))
	require.EqualValues(t, 2, daily.Counts[model.ActionAsk])
	require.EqualValues(t, 1, daily.Counts[model.ActionSTT])
	require.Zero(t, daily.Counts[model.ActionTTS])

	monthly, err := env.ledger.MonthlyUsage(ctx, "u1", "2026-10")
	require.NoError(t, err)
	require.EqualValues(t, 2, monthly.Counts[model.ActionAsk])
}

func TestRecordValidation(t *testing.T) {
	env := newTestEnv(t)
	require.ErrorIs(t, env.ledger.Record(context.Background(), "", model.ActionAsk, nil), appErr.ErrInvalid)
	require.ErrorIs(t, env.ledger.Record(context.Background(), "u1", model.ActionKind("fly"), nil), appErr.ErrInvalid)
}

func TestRecordFailureIsTyped(t *testing.T) {
	l := NewUsageLedger(&failingUsage{}, model.NewUsageCalendar(time.UTC), MonthlySourceRollup, 0)
	err := l.Record(context.Background(), "u1", model.ActionAsk, nil)
	require.ErrorIs(t, err, appErr.ErrStoreUnavailable)
	require.ErrorIs(t, err, errDown)
	l.RecordAfter(context.Background(), "u1", model.ActionAsk, nil)
}

func TestRecordAfterSurvivesCancelledRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.ledger.RecordAfter(ctx, "u1", model.ActionAsk, map[string]interface{}{"q": "torque"})

	count, err := env.ledger.DailyCount(context.Background(), "u1", "2026-10-16", model.ActionAsk)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
