package model

import (
	"fmt"
	"strings"
)

type DocumentType string

const (
	DocumentTypeFSMOfficial     DocumentType = "fsm_official"
	DocumentTypeBentleyManual   DocumentType = "bentley_manual"
	DocumentTypeHaynesManual    DocumentType = "haynes_manual"
	DocumentTypeServiceBulletin DocumentType = "service_bulletin"
	DocumentTypeUserUpload      DocumentType = "user_upload"
)

var documentTypeLabels = map[DocumentType]string{
	DocumentTypeFSMOfficial:     "Factory Service Manual",
	DocumentTypeBentleyManual:   "Bentley Manual",
	DocumentTypeHaynesManual:    "Haynes Manual",
	DocumentTypeServiceBulletin: "Service Bulletin",
	DocumentTypeUserUpload:      "User Upload",
}

func ParseDocumentType(s string) (DocumentType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DocumentTypeUserUpload, nil
	}
	t := DocumentType(s)
	if _, ok := documentTypeLabels[t]; !ok {
		return "", fmt.Errorf("unknown document type: %q", s)
	}
	return t, nil
}

// Label is the human readable name used in provenance tags.
func (t DocumentType) Label() string {
	if label, ok := documentTypeLabels[t]; ok {
		return label
	}
	if t == "" {
		return "Document"
	}
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type Document struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Collection   string       `json:"collection"`
	Title        string       `json:"title"`
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"document_type"`
	Vehicle      VehicleInfo  `json:"vehicle"`
	SizeBytes    int64        `json:"size_bytes"`
	StorageKey   string       `json:"storage_key,omitempty"`
	ChunkCount   int          `json:"chunk_count"`
	Ctime        int64        `json:"ctime"`
}

// VehicleInfo carries the optional vehicle attributes attached to documents,
// chunks and search filters. Empty strings and a zero year mean unknown.
type VehicleInfo struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
}

func (v VehicleInfo) IsEmpty() bool {
	return v.Make == "" && v.Model == "" && v.Year == 0
}

func (v VehicleInfo) String() string {
	parts := make([]string, 0, 3)
	if v.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", v.Year))
	}
	if v.Make != "" {
		parts = append(parts, v.Make)
	}
	if v.Model != "" {
		parts = append(parts, v.Model)
	}
	return strings.Join(parts, " ")
}

type Vehicle struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     int    `json:"year"`
	Engine   string `json:"engine,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Ctime    int64  `json:"ctime"`
}

func (v *Vehicle) Info() VehicleInfo {
	return VehicleInfo{Make: v.Make, Model: v.Model, Year: v.Year}
}
