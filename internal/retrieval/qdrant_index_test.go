package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type qdrantCall struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

func newQdrantServer(t *testing.T, handle func(call qdrantCall) (int, string)) (*QdrantIndex, *[]qdrantCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []qdrantCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := qdrantCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.Body)
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
		status, body := handle(call)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	idx, err := NewQdrantIndex(QdrantConfig{URL: srv.URL + "/"})
	require.NoError(t, err)
	return idx, &calls
}

func TestQdrantQuery(t *testing.T) {
	idx, calls := newQdrantServer(t, func(call qdrantCall) (int, string) {
		return 200, `{"status":"ok","time":0.001,"result":[
			{"id":"p1","score":0.95,"payload":{"chunk_id":"c1","document_id":"d1","owner":"system","content":"Bleed the brakes","vehicle_make":"BMW","vehicle_year":2012,"document_type":"haynes_manual","title":"E90 Brakes"}},
			{"id":"p2","score":-0.5,"payload":{"content":"unrelated"}}
		]}`
	})
	hits, err := idx.Query(context.Background(), model.SystemCollection, []float32{0.1, 0.2}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "c1", hits[0].Chunk.ID)
	require.InDelta(t, 0.95, hits[0].Score, 1e-9)
	require.Equal(t, model.VehicleInfo{Make: "BMW", Year: 2012}, hits[0].Chunk.Metadata.Vehicle)
	require.Equal(t, model.DocumentTypeHaynesManual, hits[0].Chunk.Metadata.DocumentType)
	require.Equal(t, "p2", hits[1].Chunk.ID)
	require.Equal(t, 0.0, hits[1].Score)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, http.MethodPost, call.Method)
	require.Equal(t, "/collections/system_documents/points/search", call.Path)
	require.Equal(t, float64(3), call.Body["limit"])
	require.Equal(t, true, call.Body["with_payload"])
}

func TestQdrantMissingCollection(t *testing.T) {
	idx, _ := newQdrantServer(t, func(call qdrantCall) (int, string) {
		return 404, `{"status":{"error":"Not found: Collection user_u9 doesn't exist!"}}`
	})
	_, err := idx.Query(context.Background(), "user_u9", []float32{1}, 3)
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)
	require.NoError(t, idx.DeleteDocument(context.Background(), "user_u9", "d1"))
}

func TestQdrantServerError(t *testing.T) {
	idx, _ := newQdrantServer(t, func(call qdrantCall) (int, string) {
		return 500, `boom`
	})
	_, err := idx.Query(context.Background(), "c", []float32{1}, 3)
	var qe *QdrantError
	require.True(t, errors.As(err, &qe))
	require.Equal(t, QdrantErrorStatus, qe.Code)
	require.Equal(t, 500, qe.StatusCode)
}

func TestQdrantUpsertCreatesCollection(t *testing.T) {
	created := false
	idx, calls := newQdrantServer(t, func(call qdrantCall) (int, string) {
		switch {
		case call.Method == http.MethodGet && !created:
			return 404, `{"status":{"error":"not found"}}`
		case call.Method == http.MethodPut && call.Path == "/collections/user_u1":
			created = true
			return 200, `{"status":"ok","result":true}`
		}
		return 200, `{"status":"ok","result":{"status":"acknowledged"}}`
	})
	c := &model.DocumentChunk{
		ID:         "chunk-1",
		Collection: "user_u1",
		Content:    "Replace the serpentine belt",
		Embedding:  []float32{0.5, 0.5},
		Metadata:   model.ChunkMetadata{DocumentID: "d1", Owner: "u1", Title: "Belt"},
	}
	require.NoError(t, idx.Upsert(context.Background(), []*model.DocumentChunk{c}))
	require.NoError(t, idx.Upsert(context.Background(), []*model.DocumentChunk{c}))

	var paths []string
	for _, call := range *calls {
		paths = append(paths, call.Method+" "+call.Path)
	}
	require.Equal(t, []string{
		"GET /collections/user_u1",
		"PUT /collections/user_u1",
		"PUT /collections/user_u1/points",
		"PUT /collections/user_u1/points",
	}, paths)

	create := (*calls)[1].Body["vectors"].(map[string]any)
	require.Equal(t, float64(2), create["size"])
	require.Equal(t, "Cosine", create["distance"])

	points := (*calls)[2].Body["points"].([]any)
	point := points[0].(map[string]any)
	require.Equal(t, pointID("user_u1", "chunk-1"), point["id"])
	payload := point["payload"].(map[string]any)
	require.Equal(t, "chunk-1", payload["chunk_id"])
	require.Equal(t, "d1", payload["document_id"])
}

func TestQdrantDeleteDocument(t *testing.T) {
	idx, calls := newQdrantServer(t, func(call qdrantCall) (int, string) {
		return 200, `{"status":"ok","result":{"status":"acknowledged"}}`
	})
	require.NoError(t, idx.DeleteDocument(context.Background(), "user_u1", "d1"))
	call := (*calls)[0]
	require.Equal(t, "/collections/user_u1/points/delete", call.Path)
	require.Equal(t, "wait=true", call.Query)
	filter := call.Body["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 1)
}

func TestQdrantRequiresURL(t *testing.T) {
	_, err := NewQdrantIndex(QdrantConfig{})
	require.Error(t, err)
}
