package model

const (
	SystemOwner      = "system"
	SystemCollection = "system_documents"
)

// UserCollection names the private collection of a user.
func UserCollection(userID string) string {
	return "user_" + userID
}

type ChunkMetadata struct {
	DocumentID   string       `json:"document_id"`
	Owner        string       `json:"owner"`
	Vehicle      VehicleInfo  `json:"vehicle"`
	DocumentType DocumentType `json:"document_type,omitempty"`
	Title        string       `json:"title,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
}

type DocumentChunk struct {
	ID         string        `json:"id"`
	Collection string        `json:"collection"`
	Position   int           `json:"position"`
	Content    string        `json:"content"`
	Embedding  []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
	Ctime      int64         `json:"ctime"`
}

// CachedEmbedding is a stored vector for one model, task type and text hash.
type CachedEmbedding struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"-"`
	Ctime       int64     `json:"ctime"`
}

// TextChunk is chunker output before it is embedded.
type TextChunk struct {
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	Position   int    `json:"position"`
	Heading    string `json:"heading,omitempty"`
}

// ScoredChunk is an index hit. Score is the index's similarity already mapped
// into [0,1]; each index documents its own conversion.
type ScoredChunk struct {
	Chunk DocumentChunk
	Score float64
}
