package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type EmbeddingCacheStore interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// EmbeddingCacheCleanupJob expires cached embeddings older than maxAgeDays.
type EmbeddingCacheCleanupJob struct {
	store      EmbeddingCacheStore
	maxAgeDays int
	now        func() time.Time
}

func NewEmbeddingCacheCleanupJob(store EmbeddingCacheStore, maxAgeDays int) *EmbeddingCacheCleanupJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &EmbeddingCacheCleanupJob{store: store, maxAgeDays: maxAgeDays, now: time.Now}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -j.maxAgeDays).Unix()
	deleted, err := j.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache expired", zap.Int64("deleted", deleted), zap.Int64("cutoff", cutoff))
	return nil
}
