package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/dbutil"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

var vehicleColumns = []string{"id", "user_id", "make", "model", "year", "engine", "nickname", "ctime"}

type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	data := map[string]interface{}{
		"id":       v.ID,
		"user_id":  v.UserID,
		"make":     v.Make,
		"model":    v.Model,
		"year":     v.Year,
		"engine":   v.Engine,
		"nickname": v.Nickname,
		"ctime":    v.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("vehicles", []map[string]interface{}{data})
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

func (r *VehicleRepo) GetByID(ctx context.Context, userID, vehicleID string) (*model.Vehicle, error) {
	where := map[string]interface{}{"id": vehicleID, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("vehicles", where, vehicleColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	v, err := scanVehicle(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return v, err
}

func (r *VehicleRepo) ListByUser(ctx context.Context, userID string) ([]*model.Vehicle, error) {
	where := map[string]interface{}{"user_id": userID, "_orderby": "ctime asc, id asc"}
	sqlStr, args, err := builder.BuildSelect("vehicles", where, vehicleColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VehicleRepo) Delete(ctx context.Context, userID, vehicleID string) error {
	sqlStr, args, err := builder.BuildDelete("vehicles", map[string]interface{}{"id": vehicleID, "user_id": userID})
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

func (r *VehicleRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM vehicles WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func scanVehicle(row rowScanner) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := row.Scan(&v.ID, &v.UserID, &v.Make, &v.Model, &v.Year, &v.Engine, &v.Nickname, &v.Ctime); err != nil {
		return nil, err
	}
	return &v, nil
}
