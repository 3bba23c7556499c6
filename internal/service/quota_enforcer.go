package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type ITierSource interface {
	Resolve(ctx context.Context, userID string) (model.Tier, error)
}

type IUsageCounter interface {
	Today() string
	ThisMonth() string
	DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error)
	MonthlyCount(ctx context.Context, userID, yearMonth string, kind model.ActionKind) (int64, error)
}

type IDocumentCounter interface {
	CountByUser(ctx context.Context, userID string) (int64, error)
	SumSizeByUser(ctx context.Context, userID string) (int64, error)
}

type IVehicleCounter interface {
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type QuotaEnforcer struct {
	tiers     ITierSource
	usage     IUsageCounter
	documents IDocumentCounter
	vehicles  IVehicleCounter
}

func NewQuotaEnforcer(tiers ITierSource, usage IUsageCounter, documents IDocumentCounter, vehicles IVehicleCounter) *QuotaEnforcer {
	return &QuotaEnforcer{tiers: tiers, usage: usage, documents: documents, vehicles: vehicles}
}

// Evaluate decides whether userID may perform kind now. Store failures are
// returned; Check is the fail-open variant used on request paths.
func (q *QuotaEnforcer) Evaluate(ctx context.Context, userID string, kind model.ActionKind) (model.Decision, error) {
	return q.evaluate(ctx, userID, kind, 0)
}

// EvaluateUpload is Evaluate for document_upload with the incoming file size
// counted against the storage ceiling.
func (q *QuotaEnforcer) EvaluateUpload(ctx context.Context, userID string, sizeBytes int64) (model.Decision, error) {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	return q.evaluate(ctx, userID, model.ActionDocumentUpload, sizeBytes)
}

func (q *QuotaEnforcer) Check(ctx context.Context, userID string, kind model.ActionKind) model.Decision {
	d, err := q.Evaluate(ctx, userID, kind)
	return q.failOpen(ctx, userID, kind, d, err)
}

func (q *QuotaEnforcer) CheckUpload(ctx context.Context, userID string, sizeBytes int64) model.Decision {
	d, err := q.EvaluateUpload(ctx, userID, sizeBytes)
	return q.failOpen(ctx, userID, model.ActionDocumentUpload, d, err)
}

func (q *QuotaEnforcer) failOpen(ctx context.Context, userID string, kind model.ActionKind, d model.Decision, err error) model.Decision {
	if err == nil {
		return d
	}
	logutil.GetLogger(ctx).Warn("quota check failed, allowing action",
		zap.String("user_id", userID),
		zap.String("action_kind", string(kind)),
		zap.Error(err),
	)
	return model.Allow(d.Tier)
}

func (q *QuotaEnforcer) evaluate(ctx context.Context, userID string, kind model.ActionKind, uploadBytes int64) (model.Decision, error) {
	tier, err := q.tiers.Resolve(ctx, userID)
	if err != nil {
		return model.Decision{Tier: model.DefaultTier}, err
	}
	policy := model.PolicyOf(tier)
	if !policy.FeatureEnabled(kind) {
		return model.Deny(&model.PolicyDenied{
			Kind:      kind,
			Ceiling:   model.CeilingFeature,
			Tier:      tier,
			UpgradeTo: upgradeFor(tier, kind),
		}), nil
	}

	deny := func(ceiling model.Ceiling, used, limit int64) model.Decision {
		return model.Deny(&model.PolicyDenied{
			Kind:      kind,
			Ceiling:   ceiling,
			Tier:      tier,
			Used:      used,
			Limit:     limit,
			UpgradeTo: upgradeFor(tier, kind),
		})
	}

	switch kind {
	case model.ActionAsk:
		if limit := policy.MaxDailyAsks; limit != nil {
			used, err := q.usage.DailyCount(ctx, userID, q.usage.Today(), kind)
			if err != nil {
				return model.Decision{Tier: tier}, err
			}
			if used >= *limit {
				return deny(model.CeilingDaily, used, *limit), nil
			}
		}
		if limit := policy.MaxMonthlyAsks; limit != nil {
			used, err := q.usage.MonthlyCount(ctx, userID, q.usage.ThisMonth(), kind)
			if err != nil {
				return model.Decision{Tier: tier}, err
			}
			if used >= *limit {
				return deny(model.CeilingMonthly, used, *limit), nil
			}
		}
	case model.ActionDocumentUpload:
		if limit := policy.MaxDocumentUploads; limit != nil {
			used, err := q.documents.CountByUser(ctx, userID)
			if err != nil {
				return model.Decision{Tier: tier}, appErr.Unavailable(err)
			}
			if used >= *limit {
				return deny(model.CeilingLifetime, used, *limit), nil
			}
		}
		if limit := policy.MaxStorageBytes; limit != nil {
			stored, err := q.documents.SumSizeByUser(ctx, userID)
			if err != nil {
				return model.Decision{Tier: tier}, appErr.Unavailable(err)
			}
			if stored+uploadBytes > *limit || (uploadBytes == 0 && stored >= *limit) {
				return deny(model.CeilingStorage, stored, *limit), nil
			}
		}
	case model.ActionAddVehicle:
		if limit := policy.MaxVehicles; limit != nil {
			used, err := q.vehicles.CountByUser(ctx, userID)
			if err != nil {
				return model.Decision{Tier: tier}, appErr.Unavailable(err)
			}
			if used >= *limit {
				return deny(model.CeilingLifetime, used, *limit), nil
			}
		}
	}
	return model.Allow(tier), nil
}

// upgradeFor returns the first higher tier on which kind is enabled.
func upgradeFor(tier model.Tier, kind model.ActionKind) *model.Tier {
	for next, ok := tier.Next(); ok; next, ok = next.Next() {
		if model.PolicyOf(next).FeatureEnabled(kind) {
			t := next
			return &t
		}
	}
	return nil
}
