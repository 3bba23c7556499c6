package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunoamorim39/greasemonkey-ai/internal/ai"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

const (
	DefaultLimit = 5
	MaxLimit     = 50
)

type SearchRequest struct {
	Query       string
	UserID      string
	Filter      model.VehicleInfo
	Collections []string
	Limit       int
}

type Engine struct {
	embedder      ai.IEmbedder
	index         Index
	routes        map[string]Index
	yearTolerance int
	defaultLimit  int
	maxLimit      int
}

type Option func(*Engine)

func WithYearTolerance(years int) Option {
	return func(e *Engine) {
		if years >= 0 {
			e.yearTolerance = years
		}
	}
}

func WithLimits(defaultLimit, maxLimit int) Option {
	return func(e *Engine) {
		if defaultLimit > 0 {
			e.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			e.maxLimit = maxLimit
		}
	}
}

// WithCollectionIndex routes one collection to its own index.
func WithCollectionIndex(collection string, idx Index) Option {
	return func(e *Engine) {
		if idx != nil {
			e.routes[collection] = idx
		}
	}
}

func NewEngine(embedder ai.IEmbedder, index Index, opts ...Option) *Engine {
	e := &Engine{
		embedder:      embedder,
		index:         index,
		routes:        make(map[string]Index),
		yearTolerance: DefaultYearTolerance,
		defaultLimit:  DefaultLimit,
		maxLimit:      MaxLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultLimit > e.maxLimit {
		e.defaultLimit = e.maxLimit
	}
	return e
}

func (e *Engine) indexFor(collection string) Index {
	if idx, ok := e.routes[collection]; ok {
		return idx
	}
	return e.index
}

func (e *Engine) normalizeLimit(limit int) int {
	if limit <= 0 {
		return e.defaultLimit
	}
	if limit > e.maxLimit {
		return e.maxLimit
	}
	return limit
}

func normalizeCollections(userID string, in []string) []string {
	if len(in) == 0 {
		return DefaultCollections(userID)
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Search embeds the query once, queries every collection concurrently and
// merges the filtered hits into at most limit results ranked by score. A
// failing collection is skipped. A cancelled context discards partial results.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]*model.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return []*model.SearchResult{}, nil
	}
	limit := e.normalizeLimit(req.Limit)
	collections := normalizeCollections(req.UserID, req.Collections)
	if len(collections) == 0 {
		return []*model.SearchResult{}, nil
	}
	if e.embedder == nil || e.index == nil {
		return nil, appErr.ErrIndexUnavailable
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", req.UserID))

	vector, err := e.embedder.Embed(ctx, query, TaskTypeQuery)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, appErr.IndexUnavailable(err)
	}
	if len(vector) == 0 {
		return nil, appErr.IndexUnavailable(errors.New("empty query embedding"))
	}

	perCollection := make([][]*model.ScoredChunk, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range collections {
		g.Go(func() error {
			hits, err := e.indexFor(collection).Query(gctx, collection, vector, limit)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if errors.Is(err, appErr.ErrCollectionNotFound) {
					logger.Debug("collection not indexed", zap.String("collection", collection))
					return nil
				}
				logger.Warn("collection query failed, skipping",
					zap.String("collection", collection),
					zap.Error(err),
				)
				return nil
			}
			perCollection[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter := NormalizeFilter(req.Filter)
	pool := make([]*model.SearchResult, 0, limit*len(collections))
	for i, hits := range perCollection {
		for _, hit := range hits {
			if hit == nil {
				continue
			}
			if !MatchVehicle(filter, hit.Chunk.Metadata.Vehicle, e.yearTolerance) {
				continue
			}
			pool = append(pool, &model.SearchResult{
				Collection:     collections[i],
				ChunkID:        hit.Chunk.ID,
				Content:        hit.Chunk.Content,
				Metadata:       hit.Chunk.Metadata,
				RelevanceScore: ClampScore(hit.Score),
			})
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].RelevanceScore > pool[j].RelevanceScore
	})
	if len(pool) > limit {
		pool = pool[:limit]
	}
	for i, r := range pool {
		r.Rank = i + 1
	}
	logger.Debug("search finished",
		zap.Int("collections", len(collections)),
		zap.Int("results", len(pool)),
	)
	return pool, nil
}
