package memstore

import (
	"context"
	"sync"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

type dailyKey struct {
	userID string
	date   string
	kind   model.ActionKind
}

type monthlyKey struct {
	userID    string
	yearMonth string
	kind      model.ActionKind
}

type UsageStore struct {
	mu      sync.Mutex
	events  []model.UsageEvent
	daily   map[dailyKey]int64
	monthly map[monthlyKey]int64
}

func NewUsageStore() *UsageStore {
	return &UsageStore{
		daily:   make(map[dailyKey]int64),
		monthly: make(map[monthlyKey]int64),
	}
}

func (s *UsageStore) Record(ctx context.Context, event *model.UsageEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	s.daily[dailyKey{event.UserID, event.Date, event.Kind}]++
	s.monthly[monthlyKey{event.UserID, event.YearMonth, event.Kind}]++
	return nil
}

func (s *UsageStore) DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[dailyKey{userID, date, kind}], nil
}

func (s *UsageStore) DailyCounts(ctx context.Context, userID, date string) (map[model.ActionKind]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.ActionKind]int64)
	for k, v := range s.daily {
		if k.userID == userID && k.date == date {
			out[k.kind] = v
		}
	}
	return out, nil
}

func (s *UsageStore) MonthlyCount(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.monthly[monthlyKey{userID, yearMonth, kind}]
	return v, ok, nil
}

func (s *UsageStore) MonthlyCounts(ctx context.Context, userID, yearMonth string) (map[model.ActionKind]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.ActionKind]int64)
	for k, v := range s.monthly {
		if k.userID == userID && k.yearMonth == yearMonth {
			out[k.kind] = v
		}
	}
	return out, nil
}

func (s *UsageStore) SumDaily(ctx context.Context, userID, fromDate, toDate string, kind model.ActionKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for k, v := range s.daily {
		if k.userID == userID && k.kind == kind && k.date >= fromDate && k.date <= toDate {
			total += v
		}
	}
	return total, nil
}

func (s *UsageStore) SumDailyCounts(ctx context.Context, userID, fromDate, toDate string) (map[model.ActionKind]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.ActionKind]int64)
	for k, v := range s.daily {
		if k.userID == userID && k.date >= fromDate && k.date <= toDate {
			out[k.kind] += v
		}
	}
	return out, nil
}

func (s *UsageStore) RebuildMonthly(ctx context.Context, yearMonth, fromDate, toDate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.monthly {
		if k.yearMonth == yearMonth {
			delete(s.monthly, k)
		}
	}
	for k, v := range s.daily {
		if k.date >= fromDate && k.date <= toDate {
			s.monthly[monthlyKey{k.userID, yearMonth, k.kind}] += v
		}
	}
	var rows int64
	for k := range s.monthly {
		if k.yearMonth == yearMonth {
			rows++
		}
	}
	return rows, nil
}

// SetMonthly overwrites one rollup row.
func (s *UsageStore) SetMonthly(userID, yearMonth string, kind model.ActionKind, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly[monthlyKey{userID, yearMonth, kind}] = count
}

// DropMonthly removes every rollup row.
func (s *UsageStore) DropMonthly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly = make(map[monthlyKey]int64)
}

func (s *UsageStore) Events() []model.UsageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UsageEvent, len(s.events))
	copy(out, s.events)
	return out
}
