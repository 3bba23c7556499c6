package model

import "fmt"

type SearchResult struct {
	Collection     string        `json:"collection"`
	ChunkID        string        `json:"chunk_id"`
	Content        string        `json:"content"`
	Metadata       ChunkMetadata `json:"metadata"`
	RelevanceScore float64       `json:"relevance_score"`
	Rank           int           `json:"rank"`
}

// Label renders the provenance tag, e.g. "[Haynes Manual: E90 Brakes] (Score: 0.95)".
func (r *SearchResult) Label() string {
	title := r.Metadata.Title
	if title == "" {
		title = "Unknown"
	}
	return fmt.Sprintf("[%s: %s] (Score: %.2f)", r.Metadata.DocumentType.Label(), title, r.RelevanceScore)
}
