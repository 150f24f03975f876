// Package contentstore orchestrates document ingestion, listing, reading,
// and keyword search over session-scoped stores.
package contentstore

import (
	"context"
	"time"

	"github.com/attachmcp/attachmcp/internal/store"
)

// Repository is the persistence surface the service depends on.
// *store.SQLiteStore satisfies it.
type Repository interface {
	CreateStore(ctx context.Context, st *store.Store) error
	GetStore(ctx context.Context, id string) (*store.Store, error)
	DeleteStore(ctx context.Context, id string) error

	CreateContent(ctx context.Context, c *store.Content, chunks []*store.Chunk) error
	GetContent(ctx context.Context, id string) (*store.Content, error)
	GetContentByHash(ctx context.Context, storeID, hash string) (*store.Content, error)
	ListContent(ctx context.Context, storeID string, offset, limit int) ([]*store.Summary, int, error)
	CountChunks(ctx context.Context, contentID string) (int, error)

	ListChunksByStore(ctx context.Context, storeID string) ([]*store.Chunk, error)
	GetChunk(ctx context.Context, id string) (*store.Chunk, error)
}

// Decoder turns fetched bytes into text. Implementations fail on empty or
// undecodable input.
type Decoder interface {
	Decode(data []byte, mimeHint string) (string, error)
}

// Fetcher retrieves the bytes behind a URL plus a MIME hint.
// Timeouts are owned by the implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// CreateStoreRequest names a new store.
type CreateStoreRequest struct {
	Name        string
	Description string
}

// CreateStoreResponse identifies the created store.
type CreateStoreResponse struct {
	StoreID   string
	CreatedAt time.Time
}

// ContentMetadata describes a document supplied inline.
type ContentMetadata struct {
	Filename string
	MimeType string
}

// AddContentRequest ingests one document into a store. Exactly one of
// FileURL or Content must be set; Content requires Metadata.Filename.
type AddContentRequest struct {
	StoreID  string
	FileURL  string
	Content  string
	Metadata ContentMetadata
}

// AddContentResponse summarizes the ingested (or deduplicated) content.
type AddContentResponse struct {
	ContentID    string
	Filename     string
	SizeBytes    int64
	LineCount    int
	ChunkCount   int
	Preview      string
	Deduplicated bool
}

// ListContentRequest pages through a store's contents.
type ListContentRequest struct {
	StoreID string
	Offset  int
	// Limit <= 0 means the configured default page size.
	Limit int
}

// ContentSummary is the listing view of one content.
type ContentSummary struct {
	ContentID  string
	Filename   string
	MimeType   string
	SizeBytes  int64
	LineCount  int
	Preview    string
	ChunkCount int
	UploadedAt time.Time
}

// ListContentResponse is one page plus paging state.
type ListContentResponse struct {
	Items   []ContentSummary
	Total   int
	HasMore bool
}

// ReadContentRequest reads a window of a content's lines.
// ToLine zero means "to the last line".
type ReadContentRequest struct {
	StoreID   string
	ContentID string
	FromLine  int
	ToLine    int
}

// ReadContentResponse carries the window actually read after clamping.
type ReadContentResponse struct {
	ContentID  string
	Text       string
	FromLine   int
	ToLine     int
	TotalLines int
}

// SearchRequest runs a keyword query against one store.
type SearchRequest struct {
	StoreID string
	Query   string
	// TopN <= 0 means the default result cut.
	TopN      int
	Threshold float64
}

// SearchResult is one scored chunk with its line-range address.
type SearchResult struct {
	ContentID     string
	ChunkID       string
	Context       string
	LineRange     [2]int
	Score         float64
	RelevanceType string
}

// SearchResponse is the ordered result list.
type SearchResponse struct {
	Results []SearchResult
}
