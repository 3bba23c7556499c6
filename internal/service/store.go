package service

import (
	"context"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

type IUserStore interface {
	GetByID(ctx context.Context, userID string) (*model.User, error)
	// EnsureUser creates the user with tier when absent and returns the stored row.
	// Concurrent first calls for one user must produce a single row.
	EnsureUser(ctx context.Context, userID string, tier model.Tier, now int64) (*model.User, error)
	UpdateTier(ctx context.Context, userID string, tier model.Tier, now int64) error
}

type IOverrideStore interface {
	Create(ctx context.Context, override *model.TierOverride) error
	// ListActive returns overrides with expires_at after now.
	ListActive(ctx context.Context, userID string, now int64) ([]*model.TierOverride, error)
}

type IUsageStore interface {
	// Record appends the event and increments the daily and monthly counters
	// of (user, kind) in one atomic step.
	Record(ctx context.Context, event *model.UsageEvent) error
	DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error)
	DailyCounts(ctx context.Context, userID, date string) (map[model.ActionKind]int64, error)
	// MonthlyCount reports false when no rollup row exists.
	MonthlyCount(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, bool, error)
	MonthlyCounts(ctx context.Context, userID, yearMonth string) (map[model.ActionKind]int64, error)
	SumDaily(ctx context.Context, userID, fromDate, toDate string, kind model.ActionKind) (int64, error)
	SumDailyCounts(ctx context.Context, userID, fromDate, toDate string) (map[model.ActionKind]int64, error)
	// RebuildMonthly rewrites every monthly row of yearMonth from daily sums and
	// returns the number of rows written.
	RebuildMonthly(ctx context.Context, yearMonth, fromDate, toDate string) (int64, error)
}

type IDocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset uint) ([]*model.Document, error)
	Delete(ctx context.Context, userID, docID string) error
	CountByUser(ctx context.Context, userID string) (int64, error)
	SumSizeByUser(ctx context.Context, userID string) (int64, error)
}

type IVehicleStore interface {
	Create(ctx context.Context, vehicle *model.Vehicle) error
	GetByID(ctx context.Context, userID, vehicleID string) (*model.Vehicle, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Vehicle, error)
	Delete(ctx context.Context, userID, vehicleID string) error
	CountByUser(ctx context.Context, userID string) (int64, error)
}
