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

const DefaultOverrideTTL = 24 * time.Hour

type TierResolver struct {
	users       IUserStore
	overrides   IOverrideStore
	overrideTTL time.Duration
	now         func() time.Time
}

func NewTierResolver(users IUserStore, overrides IOverrideStore, overrideTTL time.Duration) *TierResolver {
	if overrideTTL <= 0 {
		overrideTTL = DefaultOverrideTTL
	}
	return &TierResolver{users: users, overrides: overrides, overrideTTL: overrideTTL, now: time.Now}
}

// Resolve returns the effective tier: the newest active override, else the
// stored tier. A user seen for the first time is created on the default tier.
func (r *TierResolver) Resolve(ctx context.Context, userID string) (model.Tier, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.DefaultTier, appErr.ErrInvalid
	}
	now := r.now().Unix()

	overrides, err := r.overrides.ListActive(ctx, userID, now)
	if err != nil {
		return model.DefaultTier, appErr.Unavailable(err)
	}
	if o := latestOverride(overrides, now); o != nil {
		return o.Tier, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err == nil {
		return user.Tier, nil
	}
	if !appErr.IsNotFound(err) {
		return model.DefaultTier, appErr.Unavailable(err)
	}
	user, err = r.users.EnsureUser(ctx, userID, model.DefaultTier, now)
	if err != nil {
		return model.DefaultTier, appErr.Unavailable(err)
	}
	return user.Tier, nil
}

// ResolveTier never fails: store errors degrade to the default tier.
func (r *TierResolver) ResolveTier(ctx context.Context, userID string) model.Tier {
	tier, err := r.Resolve(ctx, userID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("resolve tier failed, using default tier",
			zap.String("user_id", userID),
			zap.String("tier", model.DefaultTier.String()),
			zap.Error(err),
		)
		return model.DefaultTier
	}
	return tier
}

// SetOverride appends a manual tier assignment. ttl <= 0 uses the configured default.
func (r *TierResolver) SetOverride(ctx context.Context, userID string, tier model.Tier, ttl time.Duration, reason string) (*model.TierOverride, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", appErr.ErrInvalid)
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("tier %d is not valid: %w", int(tier), appErr.ErrInvalid)
	}
	if ttl <= 0 {
		ttl = r.overrideTTL
	}
	now := r.now()
	override := &model.TierOverride{
		ID:        newID(),
		UserID:    userID,
		Tier:      tier,
		Reason:    strings.TrimSpace(reason),
		ExpiresAt: now.Add(ttl).Unix(),
		Ctime:     now.Unix(),
	}
	if err := r.overrides.Create(ctx, override); err != nil {
		return nil, appErr.Unavailable(err)
	}
	logutil.GetLogger(ctx).Info("tier override created",
		zap.String("user_id", userID),
		zap.String("tier", tier.String()),
		zap.Int64("expires_at", override.ExpiresAt),
	)
	return override, nil
}

// AssignTier changes the stored tier, creating the user when absent. Active
// overrides still take precedence in Resolve.
func (r *TierResolver) AssignTier(ctx context.Context, userID string, tier model.Tier) (*model.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", appErr.ErrInvalid)
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("tier %d is not valid: %w", int(tier), appErr.ErrInvalid)
	}
	now := r.now().Unix()
	if _, err := r.users.EnsureUser(ctx, userID, tier, now); err != nil {
		return nil, appErr.Unavailable(err)
	}
	if err := r.users.UpdateTier(ctx, userID, tier, now); err != nil {
		return nil, appErr.Unavailable(err)
	}
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}
	logutil.GetLogger(ctx).Info("stored tier assigned",
		zap.String("user_id", userID),
		zap.String("tier", tier.String()),
	)
	return user, nil
}

func latestOverride(items []*model.TierOverride, now int64) *model.TierOverride {
	var latest *model.TierOverride
	for _, o := range items {
		if o == nil || !o.ActiveAt(now) || !o.Tier.Valid() {
			continue
		}
		if latest == nil || o.Ctime > latest.Ctime || (o.Ctime == latest.Ctime && o.ID > latest.ID) {
			latest = o
		}
	}
	return latest
}
