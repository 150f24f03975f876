// Package store persists stores, contents, and chunks in SQLite.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attachmcp/attachmcp/internal/chunk"
)

// Store is a named, isolated collection of contents, typically scoped to
// one agent session.
type Store struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Content is one ingested document: its decoded text plus metadata.
type Content struct {
	ID         string
	StoreID    string
	Filename   string
	MimeType   string
	Hash       string
	SizeBytes  int64
	LineCount  int
	Preview    string
	Text       string
	UploadedAt time.Time
}

// Chunk is a persisted slice of a content's text, the unit of indexing.
type Chunk struct {
	ID        string
	ContentID string
	StoreID   string
	Index     int
	Text      string
	StartLine int
	EndLine   int
}

// Summary is the listing view of a content, without the full text.
type Summary struct {
	ID         string
	Filename   string
	MimeType   string
	SizeBytes  int64
	LineCount  int
	Preview    string
	ChunkCount int
	UploadedAt time.Time
}

// NewStoreID returns a fresh store id.
func NewStoreID() string {
	return "store_" + uuid.NewString()
}

// NewContentID returns a fresh content id.
func NewContentID() string {
	return "content_" + uuid.NewString()
}

// ChunkID derives the deterministic id of a content's n-th chunk.
func ChunkID(contentID string, index int) string {
	return fmt.Sprintf("chunk_%s_%d", contentID, index)
}

// ChunksFromText converts chunker output into persistable chunks.
func ChunksFromText(storeID, contentID string, parts []chunk.Chunk) []*Chunk {
	chunks := make([]*Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, &Chunk{
			ID:        ChunkID(contentID, p.Index),
			ContentID: contentID,
			StoreID:   storeID,
			Index:     p.Index,
			Text:      p.Text,
			StartLine: p.StartLine,
			EndLine:   p.EndLine,
		})
	}
	return chunks
}
