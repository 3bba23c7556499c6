package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

const (
	usageStreamMaxLen = 100000
	dailyKeyTTL       = 100 * 24 * time.Hour
	monthlyKeyTTL     = 400 * 24 * time.Hour
)

// UsageRedisRepo keeps usage counters in hashes keyed by day and month, one
// field per action kind. Events go to a capped stream.
type UsageRedisRepo struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewUsageRedisRepo(rdb goredis.UniversalClient, prefix string) *UsageRedisRepo {
	if prefix == "" {
		prefix = "greasemonkey"
	}
	return &UsageRedisRepo{rdb: rdb, prefix: prefix}
}

func (r *UsageRedisRepo) eventsKey() string {
	return r.prefix + ":usage:events"
}

func (r *UsageRedisRepo) dailyKey(userID, date string) string {
	return fmt.Sprintf("%s:usage:daily:%s:%s", r.prefix, date, userID)
}

func (r *UsageRedisRepo) monthlyKey(userID, yearMonth string) string {
	return fmt.Sprintf("%s:usage:monthly:%s:%s", r.prefix, yearMonth, userID)
}

func (r *UsageRedisRepo) usersKey(yearMonth string) string {
	return fmt.Sprintf("%s:usage:users:%s", r.prefix, yearMonth)
}

// Record runs the stream append and both increments in one MULTI block.
func (r *UsageRedisRepo) Record(ctx context.Context, event *model.UsageEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode usage metadata: %w", err)
	}
	kind := string(event.Kind)
	daily := r.dailyKey(event.UserID, event.Date)
	monthly := r.monthlyKey(event.UserID, event.YearMonth)
	users := r.usersKey(event.YearMonth)
	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: r.eventsKey(),
			MaxLen: usageStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"id":          event.ID,
				"user_id":     event.UserID,
				"action_kind": kind,
				"date":        event.Date,
				"year_month":  event.YearMonth,
				"timestamp":   event.Timestamp,
				"metadata":    string(metadata),
			},
		})
		pipe.HIncrBy(ctx, daily, kind, 1)
		pipe.Expire(ctx, daily, dailyKeyTTL)
		pipe.HIncrBy(ctx, monthly, kind, 1)
		pipe.Expire(ctx, monthly, monthlyKeyTTL)
		pipe.SAdd(ctx, users, event.UserID)
		pipe.Expire(ctx, users, monthlyKeyTTL)
		return nil
	})
	return err
}

func (r *UsageRedisRepo) DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error) {
	n, _, err := r.hget(ctx, r.dailyKey(userID, date), string(kind))
	return n, err
}

func (r *UsageRedisRepo) DailyCounts(ctx context.Context, userID, date string) (map[model.ActionKind]int64, error) {
	return r.hgetall(ctx, r.dailyKey(userID, date))
}

func (r *UsageRedisRepo) MonthlyCount(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, bool, error) {
	return r.hget(ctx, r.monthlyKey(userID, yearMonth), string(kind))
}

func (r *UsageRedisRepo) MonthlyCounts(ctx context.Context, userID, yearMonth string) (map[model.ActionKind]int64, error) {
	return r.hgetall(ctx, r.monthlyKey(userID, yearMonth))
}

func (r *UsageRedisRepo) SumDaily(ctx context.Context, userID, fromDate, toDate string, kind model.ActionKind) (int64, error) {
	dates, err := datesBetween(fromDate, toDate)
	if err != nil {
		return 0, err
	}
	cmds := make([]*goredis.StringCmd, 0, len(dates))
	_, err = r.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, d := range dates {
			cmds = append(cmds, pipe.HGet(ctx, r.dailyKey(userID, d), string(kind)))
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, err
	}
	var total int64
	for _, cmd := range cmds {
		n, err := cmd.Int64()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (r *UsageRedisRepo) SumDailyCounts(ctx context.Context, userID, fromDate, toDate string) (map[model.ActionKind]int64, error) {
	dates, err := datesBetween(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	cmds := make([]*goredis.MapStringStringCmd, 0, len(dates))
	if _, err := r.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, d := range dates {
			cmds = append(cmds, pipe.HGetAll(ctx, r.dailyKey(userID, d)))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	out := make(map[model.ActionKind]int64)
	for _, cmd := range cmds {
		counts, err := parseCounts(cmd.Val())
		if err != nil {
			return nil, err
		}
		for k, v := range counts {
			out[k] += v
		}
	}
	return out, nil
}

// RebuildMonthly rewrites the monthly hash of every user seen in yearMonth.
// The sum and rewrite run server side per user so increments from a
// concurrent Record land either before or after the rebuild, never in between.
func (r *UsageRedisRepo) RebuildMonthly(ctx context.Context, yearMonth, fromDate, toDate string) (int64, error) {
	dates, err := datesBetween(fromDate, toDate)
	if err != nil {
		return 0, err
	}
	users, err := r.rdb.SMembers(ctx, r.usersKey(yearMonth)).Result()
	if err != nil {
		return 0, err
	}
	ttl := int64(monthlyKeyTTL / time.Second)
	var rows int64
	for _, userID := range users {
		keys := make([]string, 0, len(dates)+1)
		keys = append(keys, r.monthlyKey(userID, yearMonth))
		for _, d := range dates {
			keys = append(keys, r.dailyKey(userID, d))
		}
		n, err := rebuildMonthlyScript.Run(ctx, r.rdb, keys, ttl).Int64()
		if err != nil {
			return rows, fmt.Errorf("rebuild monthly usage for %s: %w", userID, err)
		}
		rows += n
	}
	return rows, nil
}

// KEYS[1] is the monthly hash, KEYS[2..] the daily hashes, ARGV[1] the ttl.
var rebuildMonthlyScript = goredis.NewScript(`
local totals = {}
local fields = {}
for i = 2, #KEYS do
  local flat = redis.call('HGETALL', KEYS[i])
  for j = 1, #flat, 2 do
    local f = flat[j]
    if totals[f] == nil then
      totals[f] = 0
      table.insert(fields, f)
    end
    totals[f] = totals[f] + tonumber(flat[j + 1])
  end
end
redis.call('DEL', KEYS[1])
for _, f in ipairs(fields) do
  redis.call('HSET', KEYS[1], f, tostring(totals[f]))
end
if #fields > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return #fields
`)

func (r *UsageRedisRepo) hget(ctx context.Context, key, field string) (int64, bool, error) {
	n, err := r.rdb.HGet(ctx, key, field).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (r *UsageRedisRepo) hgetall(ctx context.Context, key string) (map[model.ActionKind]int64, error) {
	raw, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(raw)
}

func parseCounts(raw map[string]string) (map[model.ActionKind]int64, error) {
	out := make(map[model.ActionKind]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse usage count %s=%q: %w", k, v, err)
		}
		out[model.ActionKind(k)] = n
	}
	return out, nil
}

// datesBetween lists the calendar dates from..to inclusive.
func datesBetween(from, to string) ([]string, error) {
	start, err := time.Parse(model.DateLayout, from)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, nil
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(model.DateLayout))
	}
	return out, nil
}
