package retrieval

import (
	"context"
	"math"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// Index answers top-K nearest neighbour queries against a named collection.
// A collection that was never written returns appErr.ErrCollectionNotFound or
// an empty slice. Hits come back best first.
type Index interface {
	Name() string
	Query(ctx context.Context, collection string, vector []float32, k int) ([]*model.ScoredChunk, error)
}

type Writer interface {
	Upsert(ctx context.Context, chunks []*model.DocumentChunk) error
	DeleteDocument(ctx context.Context, collection string, documentID string) error
}

type Store interface {
	Index
	Writer
}

// ScoreFromCosineDistance maps a cosine distance d in [0,2] to 1-d clamped to [0,1].
func ScoreFromCosineDistance(d float64) float64 {
	return ClampScore(1 - d)
}

func ClampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func DefaultCollections(userID string) []string {
	if userID == "" {
		return []string{model.SystemCollection}
	}
	return []string{model.UserCollection(userID), model.SystemCollection}
}
