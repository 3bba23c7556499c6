package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/dbutil"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "user_id", "collection", "title", "filename", "document_type",
	"vehicle_make", "vehicle_model", "vehicle_year", "size_bytes", "storage_key",
	"chunk_count", "ctime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":            doc.ID,
		"user_id":       doc.UserID,
		"collection":    doc.Collection,
		"title":         doc.Title,
		"filename":      doc.Filename,
		"document_type": string(doc.DocumentType),
		"vehicle_make":  doc.Vehicle.Make,
		"vehicle_model": doc.Vehicle.Model,
		"vehicle_year":  doc.Vehicle.Year,
		"size_bytes":    doc.SizeBytes,
		"storage_key":   doc.StorageKey,
		"chunk_count":   doc.ChunkCount,
		"ctime":         doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
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

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{"id": docID, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return doc, err
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID string, limit, offset uint) ([]*model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc, id asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	sqlStr, args, err := builder.BuildDelete("documents", map[string]interface{}{"id": docID, "user_id": userID})
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

func (r *DocumentRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *DocumentRepo) SumSizeByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM documents WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc     model.Document
		docType string
	)
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Collection, &doc.Title, &doc.Filename, &docType,
		&doc.Vehicle.Make, &doc.Vehicle.Model, &doc.Vehicle.Year, &doc.SizeBytes, &doc.StorageKey,
		&doc.ChunkCount, &doc.Ctime); err != nil {
		return nil, err
	}
	doc.DocumentType = model.DocumentType(docType)
	return &doc, nil
}
