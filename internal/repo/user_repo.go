package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/dbutil"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

var userColumns = []string{"id", "tier", "ctime", "mtime"}

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	where := map[string]interface{}{"id": userID}
	sqlStr, args, err := builder.BuildSelect("users", where, userColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanUser(rows)
}

// EnsureUser inserts the user unless a row already exists and reads back the
// stored row, so racing first requests agree on one tier.
func (r *UserRepo) EnsureUser(ctx context.Context, userID string, tier model.Tier, now int64) (*model.User, error) {
	const query = `
		INSERT INTO users (id, tier, ctime, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, tier.String(), now, now); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, userID)
}

func (r *UserRepo) UpdateTier(ctx context.Context, userID string, tier model.Tier, now int64) error {
	where := map[string]interface{}{"id": userID}
	update := map[string]interface{}{
		"tier":  tier.String(),
		"mtime": now,
	}
	sqlStr, args, err := builder.BuildUpdate("users", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user model.User
		tier string
	)
	if err := row.Scan(&user.ID, &tier, &user.Ctime, &user.Mtime); err != nil {
		return nil, err
	}
	parsed, err := model.ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user.ID, err)
	}
	user.Tier = parsed
	return &user, nil
}
