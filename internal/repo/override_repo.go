package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/dbutil"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type OverrideRepo struct {
	db *sql.DB
}

func NewOverrideRepo(db *sql.DB) *OverrideRepo {
	return &OverrideRepo{db: db}
}

func (r *OverrideRepo) Create(ctx context.Context, o *model.TierOverride) error {
	data := map[string]interface{}{
		"id":         o.ID,
		"user_id":    o.UserID,
		"tier":       o.Tier.String(),
		"reason":     o.Reason,
		"expires_at": o.ExpiresAt,
		"ctime":      o.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("tier_overrides", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *OverrideRepo) ListActive(ctx context.Context, userID string, now int64) ([]*model.TierOverride, error) {
	where := map[string]interface{}{
		"user_id":      userID,
		"expires_at >": now,
		"_orderby":     "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("tier_overrides", where, []string{"id", "user_id", "tier", "reason", "expires_at", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.TierOverride
	for rows.Next() {
		var (
			o    model.TierOverride
			tier string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &tier, &o.Reason, &o.ExpiresAt, &o.Ctime); err != nil {
			return nil, err
		}
		parsed, err := model.ParseTier(tier)
		if err != nil {
			logutil.GetLogger(ctx).Warn("skip override with unknown tier",
				zap.String("override_id", o.ID),
				zap.String("tier", tier),
			)
			continue
		}
		o.Tier = parsed
		out = append(out, &o)
	}
	return out, rows.Err()
}
