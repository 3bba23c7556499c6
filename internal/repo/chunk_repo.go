package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

// ChunkRepo stores document chunks in a pgvector column and serves as the
// default retrieval index.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) Name() string {
	return "pgvector"
}

func (r *ChunkRepo) Upsert(ctx context.Context, chunks []*model.DocumentChunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	const query = `
		INSERT INTO document_chunks (id, collection, document_id, owner_id, position, content, embedding,
			vehicle_make, vehicle_model, vehicle_year, document_type, title, tags, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			vehicle_make = EXCLUDED.vehicle_make,
			vehicle_model = EXCLUDED.vehicle_model,
			vehicle_year = EXCLUDED.vehicle_year,
			document_type = EXCLUDED.document_type,
			title = EXCLUDED.title,
			tags = EXCLUDED.tags
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		tags := c.Metadata.Tags
		if tags == nil {
			tags = []string{}
		}
		blob, merr := json.Marshal(tags)
		if merr != nil {
			return merr
		}
		m := c.Metadata
		if _, err = stmt.ExecContext(ctx, c.ID, c.Collection, m.DocumentID, m.Owner, c.Position, c.Content,
			pgvector.NewVector(c.Embedding), m.Vehicle.Make, m.Vehicle.Model, m.Vehicle.Year,
			string(m.DocumentType), m.Title, blob, c.Ctime); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE collection = $1 AND document_id = $2`,
		collection, documentID)
	return err
}

// Query ranks by cosine distance d and reports 1 - d. A collection without
// rows returns no hits.
func (r *ChunkRepo) Query(ctx context.Context, collection string, vector []float32, k int) ([]*model.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, collection, document_id, owner_id, position, content,
			vehicle_make, vehicle_model, vehicle_year, document_type, title, tags, ctime,
			embedding <=> $2 AS distance
		FROM document_chunks
		WHERE collection = $1
		ORDER BY distance ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, collection, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.ScoredChunk
	for rows.Next() {
		var (
			c        model.DocumentChunk
			docType  string
			tags     []byte
			distance float64
		)
		if err := rows.Scan(&c.ID, &c.Collection, &c.Metadata.DocumentID, &c.Metadata.Owner, &c.Position, &c.Content,
			&c.Metadata.Vehicle.Make, &c.Metadata.Vehicle.Model, &c.Metadata.Vehicle.Year, &docType,
			&c.Metadata.Title, &tags, &c.Ctime, &distance); err != nil {
			return nil, err
		}
		c.Metadata.DocumentType = model.DocumentType(docType)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &c.Metadata.Tags); err != nil {
				return nil, fmt.Errorf("decode chunk tags: %w", err)
			}
		}
		out = append(out, &model.ScoredChunk{Chunk: c, Score: retrieval.ScoreFromCosineDistance(distance)})
	}
	return out, rows.Err()
}
