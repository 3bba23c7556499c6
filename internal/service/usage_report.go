package service

import (
	"context"
	"fmt"
	"time"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type IUsageReader interface {
	Today() string
	DailyUsage(ctx context.Context, userID, date string) (*model.DailyUsage, error)
	MonthlyUsage(ctx context.Context, userID, yearMonth string) (*model.MonthlyUsage, error)
}

type UsageStats struct {
	UserID              string                     `json:"user_id"`
	Tier                model.Tier                 `json:"tier"`
	TierName            string                     `json:"tier_name"`
	Policy              model.TierPolicy           `json:"policy"`
	Date                string                     `json:"date"`
	YearMonth           string                     `json:"year_month"`
	Today               map[model.ActionKind]int64 `json:"today"`
	Month               map[model.ActionKind]int64 `json:"month"`
	AsksRemainingToday  *int64                     `json:"asks_remaining_today"`
	AsksRemainingMonth  *int64                     `json:"asks_remaining_month"`
	Documents           int64                      `json:"documents"`
	DocumentsRemaining  *int64                     `json:"documents_remaining"`
	Vehicles            int64                      `json:"vehicles"`
	StorageBytes        int64                      `json:"storage_bytes"`
	StorageBytesAllowed *int64                     `json:"storage_bytes_allowed"`
}

type UsageReporter struct {
	tiers     ITierSource
	usage     IUsageReader
	documents IDocumentCounter
	vehicles  IVehicleCounter
}

func NewUsageReporter(tiers ITierSource, usage IUsageReader, documents IDocumentCounter, vehicles IVehicleCounter) *UsageReporter {
	return &UsageReporter{tiers: tiers, usage: usage, documents: documents, vehicles: vehicles}
}

// Report summarises usage on date, today when date is empty, and the month it falls in.
func (r *UsageReporter) Report(ctx context.Context, userID, date string) (*UsageStats, error) {
	if date == "" {
		date = r.usage.Today()
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", appErr.ErrInvalid)
	}
	tier, err := r.tiers.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	policy := model.PolicyOf(tier)
	yearMonth := model.YearMonthOfDate(date)

	daily, err := r.usage.DailyUsage(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	monthly, err := r.usage.MonthlyUsage(ctx, userID, yearMonth)
	if err != nil {
		return nil, err
	}
	docs, err := r.documents.CountByUser(ctx, userID)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}
	stored, err := r.documents.SumSizeByUser(ctx, userID)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}
	vehicles, err := r.vehicles.CountByUser(ctx, userID)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}

	return &UsageStats{
		UserID:              userID,
		Tier:                tier,
		TierName:            tier.DisplayName(),
		Policy:              policy,
		Date:                date,
		YearMonth:           yearMonth,
		Today:               daily.Counts,
		Month:               monthly.Counts,
		AsksRemainingToday:  remaining(policy.MaxDailyAsks, daily.Counts[model.ActionAsk]),
		AsksRemainingMonth:  remaining(policy.MaxMonthlyAsks, monthly.Counts[model.ActionAsk]),
		Documents:           docs,
		DocumentsRemaining:  remaining(policy.MaxDocumentUploads, docs),
		Vehicles:            vehicles,
		StorageBytes:        stored,
		StorageBytesAllowed: policy.MaxStorageBytes,
	}, nil
}

// remaining is nil for unlimited ceilings and never negative.
func remaining(limit *int64, used int64) *int64 {
	if limit == nil {
		return nil
	}
	left := *limit - used
	if left < 0 {
		left = 0
	}
	return &left
}
