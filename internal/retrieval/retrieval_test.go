package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type fixedEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fixedEmbedder) ModelName() string {
	return "fixed"
}

// scriptedIndex returns canned hits per collection.
type scriptedIndex struct {
	hits  map[string][]*model.ScoredChunk
	errs  map[string]error
	block bool
	seenK atomic.Int32
}

func (s *scriptedIndex) Name() string {
	return "scripted"
}

func (s *scriptedIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]*model.ScoredChunk, error) {
	s.seenK.Store(int32(k))
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := s.errs[collection]; ok {
		return nil, err
	}
	hits, ok := s.hits[collection]
	if !ok {
		return nil, appErr.ErrCollectionNotFound
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func hit(id string, score float64, vehicle model.VehicleInfo) *model.ScoredChunk {
	return &model.ScoredChunk{
		Chunk: model.DocumentChunk{
			ID:      id,
			Content: "content of " + id,
			Metadata: model.ChunkMetadata{
				DocumentID:   "doc-" + id,
				Vehicle:      vehicle,
				DocumentType: model.DocumentTypeHaynesManual,
				Title:        "Title " + id,
			},
		},
		Score: score,
	}
}

func newTestEngine(idx Index, opts ...Option) (*Engine, *fixedEmbedder) {
	emb := &fixedEmbedder{vec: []float32{1, 0, 0}}
	return NewEngine(emb, idx, opts...), emb
}

func TestSearchMergesCollectionsByScore(t *testing.T) {
	idx := &scriptedIndex{hits: map[string][]*model.ScoredChunk{
		"user_u1":          {hit("private", 0.9, model.VehicleInfo{})},
		"system_documents": {hit("system", 0.95, model.VehicleInfo{})},
	}}
	engine, emb := newTestEngine(idx)

	results, err := engine.Search(context.Background(), SearchRequest{Query: "brake pads", UserID: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "system", results[0].ChunkID)
	require.Equal(t, 0.95, results[0].RelevanceScore)
	require.Equal(t, 1, results[0].Rank)
	require.Equal(t, "private", results[1].ChunkID)
	require.Equal(t, 0.9, results[1].RelevanceScore)
	require.Equal(t, 2, results[1].Rank)
	require.Equal(t, "user_u1", results[1].Collection)
	require.Equal(t, int32(1), emb.calls.Load())
	require.Equal(t, int32(5), idx.seenK.Load())
}

func TestSearchVehicleFilterTolerance(t *testing.T) {
	idx := &scriptedIndex{hits: map[string][]*model.ScoredChunk{
		"system_documents": {
			hit("e90", 0.8, model.VehicleInfo{Make: "BMW", Year: 2012}),
			hit("g20", 0.9, model.VehicleInfo{Make: "BMW", Year: 2020}),
			hit("civic", 0.85, model.VehicleInfo{Make: "Honda", Year: 2015}),
			hit("generic", 0.5, model.VehicleInfo{}),
		},
	}}
	engine, _ := newTestEngine(idx)

	results, err := engine.Search(context.Background(), SearchRequest{
		Query:       "coolant",
		Filter:      model.VehicleInfo{Make: "bmw", Year: 2015},
		Collections: []string{model.SystemCollection},
	})
	require.NoError(t, err)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	require.Equal(t, []string{"e90", "generic"}, ids)
}

func TestSearchExactYearTolerance(t *testing.T) {
	idx := &scriptedIndex{hits: map[string][]*model.ScoredChunk{
		"system_documents": {
			hit("same", 0.7, model.VehicleInfo{Make: "BMW", Year: 2015}),
			hit("prior", 0.9, model.VehicleInfo{Make: "BMW", Year: 2014}),
		},
	}}
	engine, _ := newTestEngine(idx, WithYearTolerance(0))

	results, err := engine.Search(context.Background(), SearchRequest{
		Query:       "coolant",
		Filter:      model.VehicleInfo{Make: "BMW", Year: 2015},
		Collections: []string{model.SystemCollection},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "same", results[0].ChunkID)
}

func TestSearchSkipsFailingCollection(t *testing.T) {
	idx := &scriptedIndex{
		hits: map[string][]*model.ScoredChunk{
			"system_documents": {hit("sys", 0.7, model.VehicleInfo{})},
		},
		errs: map[string]error{"user_u1": errors.New("connection reset")},
	}
	engine, _ := newTestEngine(idx)
	results, err := engine.Search(context.Background(), SearchRequest{Query: "alternator", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "sys", results[0].ChunkID)
}

func TestSearchMissingCollection(t *testing.T) {
	idx := &scriptedIndex{hits: map[string][]*model.ScoredChunk{}}
	engine, _ := newTestEngine(idx)
	results, err := engine.Search(context.Background(), SearchRequest{Query: "spark plugs", UserID: "nobody"})
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestSearchBlankQuery(t *testing.T) {
	idx := &scriptedIndex{}
	engine, emb := newTestEngine(idx)
	results, err := engine.Search(context.Background(), SearchRequest{Query: "   ", UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
	require.Equal(t, int32(0), emb.calls.Load())
}

func TestSearchEmbedFailure(t *testing.T) {
	engine := NewEngine(&fixedEmbedder{err: errors.New("no key")}, &scriptedIndex{})
	_, err := engine.Search(context.Background(), SearchRequest{Query: "q", UserID: "u1"})
	require.ErrorIs(t, err, appErr.ErrIndexUnavailable)
}

func TestSearchCancelled(t *testing.T) {
	idx := &scriptedIndex{block: true}
	engine, _ := newTestEngine(idx)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	results, err := engine.Search(ctx, SearchRequest{Query: "q", UserID: "u1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, results)
}

func TestSearchTiesKeepCollectionOrder(t *testing.T) {
	idx := &scriptedIndex{hits: map[string][]*model.ScoredChunk{
		"a": {hit("a1", 0.8, model.VehicleInfo{}), hit("a2", 0.8, model.VehicleInfo{})},
		"b": {hit("b1", 0.8, model.VehicleInfo{})},
	}}
	engine, _ := newTestEngine(idx)
	results, err := engine.Search(context.Background(), SearchRequest{Query: "q", Collections: []string{"a", "b", "a"}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "a1", results[0].ChunkID)
	require.Equal(t, "a2", results[1].ChunkID)
	require.Equal(t, "b1", results[2].ChunkID)
}

func TestSearchLimitAndClamp(t *testing.T) {
	var hits []*model.ScoredChunk
	for i, s := range []float64{1.4, 0.9, 0.8, 0.7, -0.2} {
		hits = append(hits, hit(string(rune('a'+i)), s, model.VehicleInfo{}))
	}
	idx := &scriptedIndex{hits: map[string][]*model.ScoredChunk{"system_documents": hits}}
	engine, _ := newTestEngine(idx, WithLimits(2, 3))

	results, err := engine.Search(context.Background(), SearchRequest{Query: "q", Collections: []string{model.SystemCollection}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 1.0, results[0].RelevanceScore)

	results, err = engine.Search(context.Background(), SearchRequest{Query: "q", Collections: []string{model.SystemCollection}, Limit: 100})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, int32(3), idx.seenK.Load())
	for _, r := range results {
		require.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		require.LessOrEqual(t, r.RelevanceScore, 1.0)
	}
}

func TestSearchCollectionRouting(t *testing.T) {
	primary := &scriptedIndex{hits: map[string][]*model.ScoredChunk{"user_u1": {hit("mine", 0.6, model.VehicleInfo{})}}}
	shared := &scriptedIndex{hits: map[string][]*model.ScoredChunk{"system_documents": {hit("shared", 0.7, model.VehicleInfo{})}}}
	engine, _ := newTestEngine(primary, WithCollectionIndex(model.SystemCollection, shared))
	results, err := engine.Search(context.Background(), SearchRequest{Query: "q", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "shared", results[0].ChunkID)
}

func TestMatchVehicle(t *testing.T) {
	bmw2015 := model.VehicleInfo{Make: "BMW", Year: 2015}
	require.True(t, MatchVehicle(bmw2015, model.VehicleInfo{Make: "bmw", Year: 2012}, 3))
	require.False(t, MatchVehicle(bmw2015, model.VehicleInfo{Make: "BMW", Year: 2020}, 3))
	require.True(t, MatchVehicle(bmw2015, model.VehicleInfo{Make: "BMW", Year: 2020}, 5))
	require.True(t, MatchVehicle(bmw2015, model.VehicleInfo{}, 3))
	require.True(t, MatchVehicle(model.VehicleInfo{}, model.VehicleInfo{Make: "Ford"}, 3))
	require.False(t, MatchVehicle(model.VehicleInfo{Model: "3 Series"}, model.VehicleInfo{Model: "5 Series"}, 3))
	require.True(t, MatchVehicle(model.VehicleInfo{Model: " 3 series"}, model.VehicleInfo{Model: "3 Series"}, 3))
}

func TestNormalizeFilterDropsBadYear(t *testing.T) {
	f := NormalizeFilter(model.VehicleInfo{Make: " BMW ", Year: 15})
	require.Equal(t, model.VehicleInfo{Make: "BMW"}, f)
}

func TestParseVehicle(t *testing.T) {
	cases := map[string]model.VehicleInfo{
		"BMW 3 Series 2015":     {Make: "BMW", Model: "3 Series", Year: 2015},
		"2015 BMW 3 Series":     {Make: "BMW", Model: "3 Series", Year: 2015},
		"Honda Civic 2008":      {Make: "Honda", Model: "Civic", Year: 2008},
		"Toyota Land Cruiser":   {Make: "Toyota", Model: "Land Cruiser"},
		"Mazda 2019":            {Make: "Mazda", Year: 2019},
		"BMW":                   {},
		"":                      {},
		"Ford F-150 Raptor 999": {Make: "Ford", Model: "F-150 Raptor 999"},
	}
	for in, want := range cases {
		require.Equal(t, want, ParseVehicle(in), in)
	}
}

func TestBuildContext(t *testing.T) {
	require.Equal(t, "", BuildContext(nil))
	results := []*model.SearchResult{
		{Content: "Torque to 110 Nm.", RelevanceScore: 0.95, Metadata: model.ChunkMetadata{DocumentType: model.DocumentTypeHaynesManual, Title: "E90 Brakes"}},
		{Content: " Use DOT4 fluid. ", RelevanceScore: 0.9, Metadata: model.ChunkMetadata{DocumentType: model.DocumentTypeUserUpload, Title: "My notes"}},
	}
	want := "Source 1: [Haynes Manual: E90 Brakes] (Score: 0.95)\nTorque to 110 Nm.\n" +
		"\nSource 2: [User Upload: My notes] (Score: 0.90)\nUse DOT4 fluid.\n"
	require.Equal(t, want, BuildContext(results))
}
