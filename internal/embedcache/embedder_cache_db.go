package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/ai"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.CachedEmbedding) error
}

// WrapDBCacheToEmbedder persists embeddings keyed by model, task type and a
// sha256 of the text. Questions are hashed after case and whitespace folding.
// Cache failures are logged and never fail the embed.
func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	modelName := cacheModelName(d.next.ModelName())
	contentHash := hashCacheText(taskType, text)
	values, ok, err := d.store.Get(ctx, modelName, taskType, contentHash)
	if err != nil {
		logger.Warn("read embedding cache failed", zap.Error(err))
	} else if ok {
		logger.Debug("embedding cache hit (db)", zap.String("task_type", taskType))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.CachedEmbedding{
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: contentHash,
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logger.Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func cacheModelName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return name
}

// cacheText folds case and spacing of questions, which vary between
// transcriptions of the same spoken query. Other text is used verbatim.
func cacheText(taskType, text string) string {
	if taskType != retrieval.TaskTypeQuery {
		return text
	}
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func hashCacheText(taskType, text string) string {
	hash := sha256.Sum256([]byte(cacheText(taskType, text)))
	return hex.EncodeToString(hash[:])
}
