package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/dbutil"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// Record appends the event and bumps both counters in one transaction. The
// increments are done by the database so concurrent records never lose a count.
func (r *UsageRepo) Record(ctx context.Context, event *model.UsageEvent) (err error) {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	blob, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode usage metadata: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertEvent = `
		INSERT INTO usage_events (id, user_id, action_kind, usage_date, year_month, metadata, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err = tx.ExecContext(ctx, insertEvent, event.ID, event.UserID, string(event.Kind),
		event.Date, event.YearMonth, blob, event.Timestamp); err != nil {
		return err
	}
	const bumpDaily = `
		INSERT INTO daily_usage (user_id, usage_date, action_kind, count, mtime)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, usage_date, action_kind) DO UPDATE SET
			count = daily_usage.count + EXCLUDED.count,
			mtime = EXCLUDED.mtime
	`
	if _, err = tx.ExecContext(ctx, bumpDaily, event.UserID, event.Date, string(event.Kind), event.Timestamp); err != nil {
		return err
	}
	const bumpMonthly = `
		INSERT INTO monthly_usage (user_id, year_month, action_kind, count, mtime)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, year_month, action_kind) DO UPDATE SET
			count = monthly_usage.count + EXCLUDED.count,
			mtime = EXCLUDED.mtime
	`
	if _, err = tx.ExecContext(ctx, bumpMonthly, event.UserID, event.YearMonth, string(event.Kind), event.Timestamp); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *UsageRepo) DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error) {
	where := map[string]interface{}{
		"user_id":     userID,
		"usage_date":  date,
		"action_kind": string(kind),
	}
	count, _, err := r.selectCount(ctx, "daily_usage", where)
	return count, err
}

func (r *UsageRepo) DailyCounts(ctx context.Context, userID, date string) (map[model.ActionKind]int64, error) {
	where := map[string]interface{}{
		"user_id":    userID,
		"usage_date": date,
	}
	return r.selectCounts(ctx, "daily_usage", where)
}

func (r *UsageRepo) MonthlyCount(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, bool, error) {
	where := map[string]interface{}{
		"user_id":     userID,
		"year_month":  yearMonth,
		"action_kind": string(kind),
	}
	return r.selectCount(ctx, "monthly_usage", where)
}

func (r *UsageRepo) MonthlyCounts(ctx context.Context, userID, yearMonth string) (map[model.ActionKind]int64, error) {
	where := map[string]interface{}{
		"user_id":    userID,
		"year_month": yearMonth,
	}
	return r.selectCounts(ctx, "monthly_usage", where)
}

func (r *UsageRepo) SumDaily(ctx context.Context, userID, fromDate, toDate string, kind model.ActionKind) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(count), 0)
		FROM daily_usage
		WHERE user_id = $1 AND action_kind = $2 AND usage_date >= $3 AND usage_date <= $4
	`
	var total int64
	if err := r.db.QueryRowContext(ctx, query, userID, string(kind), fromDate, toDate).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *UsageRepo) SumDailyCounts(ctx context.Context, userID, fromDate, toDate string) (map[model.ActionKind]int64, error) {
	const query = `
		SELECT action_kind, SUM(count)
		FROM daily_usage
		WHERE user_id = $1 AND usage_date >= $2 AND usage_date <= $3
		GROUP BY action_kind
	`
	rows, err := r.db.QueryContext(ctx, query, userID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanCounts(rows)
}

// RebuildMonthly replaces the rollup rows of yearMonth with daily sums.
func (r *UsageRepo) RebuildMonthly(ctx context.Context, yearMonth, fromDate, toDate string) (rows int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM monthly_usage WHERE year_month = $1`, yearMonth); err != nil {
		return 0, err
	}
	const rebuild = `
		INSERT INTO monthly_usage (user_id, year_month, action_kind, count, mtime)
		SELECT user_id, $1, action_kind, SUM(count), MAX(mtime)
		FROM daily_usage
		WHERE usage_date >= $2 AND usage_date <= $3
		GROUP BY user_id, action_kind
	`
	res, err := tx.ExecContext(ctx, rebuild, yearMonth, fromDate, toDate)
	if err != nil {
		return 0, err
	}
	if rows, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return rows, nil
}

func (r *UsageRepo) selectCount(ctx context.Context, table string, where map[string]interface{}) (int64, bool, error) {
	sqlStr, args, err := builder.BuildSelect(table, where, []string{"count"})
	if err != nil {
		return 0, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

func (r *UsageRepo) selectCounts(ctx context.Context, table string, where map[string]interface{}) (map[model.ActionKind]int64, error) {
	sqlStr, args, err := builder.BuildSelect(table, where, []string{"action_kind", "count"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanCounts(rows)
}

func scanCounts(rows *sql.Rows) (map[model.ActionKind]int64, error) {
	out := make(map[model.ActionKind]int64)
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		out[model.ActionKind(kind)] = count
	}
	return out, rows.Err()
}
