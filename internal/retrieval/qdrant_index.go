package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

const maxErrorBodyBytes = 1024

var pointIDNamespace = uuid.MustParse("5b0e7f0c-93a4-4c55-9d1e-6f0a2b4c8d17")

type QdrantErrorCode string

const (
	QdrantErrorValidation QdrantErrorCode = "validation_failed"
	QdrantErrorEncode     QdrantErrorCode = "encode_failed"
	QdrantErrorDecode     QdrantErrorCode = "decode_failed"
	QdrantErrorTransport  QdrantErrorCode = "transport_failed"
	QdrantErrorTimeout    QdrantErrorCode = "timeout"
	QdrantErrorStatus     QdrantErrorCode = "bad_status"
)

type QdrantError struct {
	Code       QdrantErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *QdrantError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("qdrant %s failed (code=%s status=%d): %s", e.Operation, e.Code, e.StatusCode, msg)
}

func (e *QdrantError) Unwrap() error {
	return e.Cause
}

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QdrantIndex talks to Qdrant over its REST API. Each collection maps onto a
// Qdrant collection with cosine distance. Qdrant reports cosine similarity s
// in [-1,1]; the index treats 1 - s as the distance and reports 1 - distance
// clamped to [0,1].
type QdrantIndex struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu      sync.Mutex
	ensured map[string]struct{}
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantSearchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload qdrantPayload   `json:"payload"`
}

type qdrantPayload struct {
	ChunkID      string   `json:"chunk_id"`
	DocumentID   string   `json:"document_id"`
	Owner        string   `json:"owner"`
	Position     int      `json:"position"`
	Content      string   `json:"content"`
	VehicleMake  string   `json:"vehicle_make"`
	VehicleModel string   `json:"vehicle_model"`
	VehicleYear  int      `json:"vehicle_year"`
	DocumentType string   `json:"document_type"`
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
	Ctime        int64    `json:"ctime"`
}

func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantIndex{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		ensured: make(map[string]struct{}),
	}, nil
}

func (q *QdrantIndex) Name() string {
	return "qdrant"
}

func (q *QdrantIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]*model.ScoredChunk, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, &QdrantError{Code: QdrantErrorValidation, Operation: op, Message: "query vector required"}
	}
	if k <= 0 {
		k = DefaultLimit
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	var items []qdrantSearchItem
	if err := q.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &items); err != nil {
		var qe *QdrantError
		if errors.As(err, &qe) && qe.StatusCode == http.StatusNotFound {
			return nil, appErr.ErrCollectionNotFound
		}
		return nil, err
	}
	out := make([]*model.ScoredChunk, 0, len(items))
	for _, item := range items {
		p := item.Payload
		chunkID := p.ChunkID
		if chunkID == "" {
			chunkID = decodePointID(item.ID)
		}
		out = append(out, &model.ScoredChunk{
			Chunk: model.DocumentChunk{
				ID:         chunkID,
				Collection: collection,
				Position:   p.Position,
				Content:    p.Content,
				Ctime:      p.Ctime,
				Metadata: model.ChunkMetadata{
					DocumentID:   p.DocumentID,
					Owner:        p.Owner,
					Vehicle:      model.VehicleInfo{Make: p.VehicleMake, Model: p.VehicleModel, Year: p.VehicleYear},
					DocumentType: model.DocumentType(p.DocumentType),
					Title:        p.Title,
					Tags:         p.Tags,
				},
			},
			Score: ScoreFromCosineDistance(1 - item.Score),
		})
	}
	return out, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, chunks []*model.DocumentChunk) error {
	const op = "upsert"
	byCollection := make(map[string][]qdrantPoint)
	var order []string
	dims := make(map[string]int)
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if c.Collection == "" || len(c.Embedding) == 0 {
			return &QdrantError{Code: QdrantErrorValidation, Operation: op, Message: fmt.Sprintf("chunk %q needs a collection and an embedding", c.ID)}
		}
		if _, ok := byCollection[c.Collection]; !ok {
			order = append(order, c.Collection)
			dims[c.Collection] = len(c.Embedding)
		}
		byCollection[c.Collection] = append(byCollection[c.Collection], qdrantPoint{
			ID:      pointID(c.Collection, c.ID),
			Vector:  c.Embedding,
			Payload: payloadOf(c),
		})
	}
	for _, collection := range order {
		if err := q.ensureCollection(ctx, collection, dims[collection]); err != nil {
			return err
		}
		req := map[string]any{"points": byCollection[collection]}
		if err := q.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *QdrantIndex) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	err := q.doJSON(ctx, "delete", http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
	var qe *QdrantError
	if errors.As(err, &qe) && qe.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, collection string, dim int) error {
	q.mu.Lock()
	_, done := q.ensured[collection]
	q.mu.Unlock()
	if done {
		return nil
	}
	const op = "ensure_collection"
	err := q.doJSON(ctx, op, http.MethodGet, collectionPath(collection, ""), nil, nil)
	var qe *QdrantError
	if errors.As(err, &qe) && qe.StatusCode == http.StatusNotFound {
		req := map[string]any{
			"vectors": map[string]any{"size": dim, "distance": "Cosine"},
		}
		err = q.doJSON(ctx, op, http.MethodPut, collectionPath(collection, ""), req, nil)
	}
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.ensured[collection] = struct{}{}
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return &QdrantError{Code: QdrantErrorEncode, Operation: op, Cause: err}
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return &QdrantError{Code: QdrantErrorTransport, Operation: op, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &QdrantError{Code: QdrantErrorDecode, Operation: op, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &QdrantError{
			Code:       QdrantErrorStatus,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    truncateBody(raw),
		}
	}
	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &QdrantError{Code: QdrantErrorDecode, Operation: op, StatusCode: resp.StatusCode, Cause: err}
	}
	if msg := envelopeStatusError(envelope.Status); msg != "" {
		return &QdrantError{Code: QdrantErrorStatus, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return &QdrantError{Code: QdrantErrorDecode, Operation: op, StatusCode: resp.StatusCode, Cause: err}
	}
	return nil
}

func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &QdrantError{Code: QdrantErrorTimeout, Operation: op, Cause: err}
	}
	return &QdrantError{Code: QdrantErrorTransport, Operation: op, Cause: err}
}

func envelopeStatusError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return "status=" + s
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Error != "" {
		return obj.Error
	}
	return "status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func collectionPath(collection, suffix string) string {
	return "/collections/" + collection + suffix
}

// pointID derives a stable UUID, since Qdrant only accepts UUID or integer ids.
func pointID(collection, chunkID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(collection+"|"+chunkID)).String()
}

func decodePointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func payloadOf(c *model.DocumentChunk) map[string]any {
	tags := c.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"chunk_id":      c.ID,
		"document_id":   c.Metadata.DocumentID,
		"owner":         c.Metadata.Owner,
		"position":      c.Position,
		"content":       c.Content,
		"vehicle_make":  c.Metadata.Vehicle.Make,
		"vehicle_model": c.Metadata.Vehicle.Model,
		"vehicle_year":  c.Metadata.Vehicle.Year,
		"document_type": string(c.Metadata.DocumentType),
		"title":         c.Metadata.Title,
		"tags":          tags,
		"ctime":         c.Ctime,
	}
}
