package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type memoryEntry struct {
	chunk  model.DocumentChunk
	vector []float32
}

// MemoryIndex is a brute-force index. Vectors are L2-normalized on insert so
// the inner product is the cosine similarity s; the reported score is
// 1 - (1 - s), clamped to [0,1].
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string][]memoryEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string][]memoryEntry)}
}

func (m *MemoryIndex) Name() string {
	return "memory"
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if c.Collection == "" {
			return fmt.Errorf("chunk %s has no collection", c.ID)
		}
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		entry := memoryEntry{chunk: *c, vector: normalize(c.Embedding)}
		entry.chunk.Embedding = nil
		entries := m.collections[c.Collection]
		replaced := false
		for i := range entries {
			if entries[i].chunk.ID == c.ID {
				entries[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, entry)
		}
		m.collections[c.Collection] = entries
	}
	return nil
}

func (m *MemoryIndex) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.collections[collection]
	if !ok {
		return nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.chunk.Metadata.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	m.collections[collection] = kept
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]*model.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.collections[collection]
	if !ok {
		return nil, appErr.ErrCollectionNotFound
	}
	if k <= 0 || len(entries) == 0 {
		return nil, nil
	}
	q := normalize(vector)
	out := make([]*model.ScoredChunk, 0, len(entries))
	for _, e := range entries {
		if len(e.vector) != len(q) {
			return nil, fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(q), len(e.vector))
		}
		var dot float64
		for i := range q {
			dot += float64(q[i]) * float64(e.vector[i])
		}
		out = append(out, &model.ScoredChunk{
			Chunk: e.chunk,
			Score: ScoreFromCosineDistance(1 - dot),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
