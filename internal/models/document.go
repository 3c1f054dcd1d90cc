package models

import "time"

// FallbackSource tags the synthetic document used when no page could be loaded.
const FallbackSource = "fallback"

type Document struct {
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a bounded window of a document's text. Index is the chunk's
// position within its parent document.
type Chunk struct {
	Text      string
	SourceURL string
	Index     int
}

// EmbeddingRecord is one indexed chunk. ChunkID orders records across the
// whole index; ChunkIndex is the position within the source document.
type EmbeddingRecord struct {
	ChunkID    int
	ChunkIndex int
	Vector     []float32
	Text       string
	SourceURL  string
}

func (r EmbeddingRecord) Chunk() Chunk {
	return Chunk{Text: r.Text, SourceURL: r.SourceURL, Index: r.ChunkIndex}
}

type ScoredChunk struct {
	Chunk
	Score float64
}

// IndexMeta is persisted next to the records so an index is never queried
// with vectors from a different embedding provider.
type IndexMeta struct {
	Provider  string
	Dimension int
	Count     int
	CreatedAt time.Time
}

type Lead struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	InquiryType string    `json:"inquiry_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type ConversationTurn struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}
