package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/attachmcp/attachmcp/internal/contentstore"
	"github.com/attachmcp/attachmcp/pkg/version"
)

// Server is the MCP server for attachmcp. It lets an AI agent attach
// documents to a session store, then list, read, and search them.
type Server struct {
	mcp     *mcp.Server
	service *contentstore.Service
	logger  *slog.Logger
}

// CreateStoreInput defines the input schema for the create_store tool.
type CreateStoreInput struct {
	Name        string `json:"name,omitempty" jsonschema:"display name for the store"`
	Description string `json:"description,omitempty" jsonschema:"what the store holds"`
}

// CreateStoreOutput defines the output schema for the create_store tool.
type CreateStoreOutput struct {
	StoreID   string `json:"storeId" jsonschema:"id of the created store"`
	CreatedAt string `json:"createdAt" jsonschema:"creation time, RFC 3339"`
}

// ContentMetadataInput describes a document supplied inline.
type ContentMetadataInput struct {
	Filename string `json:"filename" jsonschema:"filename of the document"`
	MimeType string `json:"mimeType,omitempty" jsonschema:"MIME type, inferred from the extension when omitted"`
}

// AddContentInput defines the input schema for the add_content tool.
// Exactly one of fileUrl or content must be provided.
type AddContentInput struct {
	StoreID  string                `json:"storeId" jsonschema:"target store id"`
	FileURL  string                `json:"fileUrl,omitempty" jsonschema:"file:// URL of a document to ingest"`
	Content  string                `json:"content,omitempty" jsonschema:"pre-decoded document text"`
	Metadata *ContentMetadataInput `json:"metadata,omitempty" jsonschema:"document metadata, required with content"`
}

// AddContentOutput defines the output schema for the add_content tool.
type AddContentOutput struct {
	ContentID    string `json:"contentId" jsonschema:"id of the content"`
	Filename     string `json:"filename" jsonschema:"filename of the content"`
	Size         int64  `json:"size" jsonschema:"decoded text size in bytes"`
	LineCount    int    `json:"lineCount" jsonschema:"number of lines"`
	ChunkCount   int    `json:"chunkCount" jsonschema:"number of indexed chunks"`
	Preview      string `json:"preview" jsonschema:"first characters of the text"`
	Deduplicated bool   `json:"deduplicated" jsonschema:"true when identical content already existed"`
}

// ListContentInput defines the input schema for the list_content tool.
type ListContentInput struct {
	StoreID string `json:"storeId" jsonschema:"store id to list"`
	Offset  int    `json:"offset,omitempty" jsonschema:"number of items to skip"`
	Limit   int    `json:"limit,omitempty" jsonschema:"page size, default 50, max 100"`
}

// ContentSummaryOutput is one listed content.
type ContentSummaryOutput struct {
	ContentID  string `json:"contentId"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	LineCount  int    `json:"lineCount"`
	Preview    string `json:"preview"`
	ChunkCount int    `json:"chunkCount"`
	UploadedAt string `json:"uploadedAt"`
}

// ListContentOutput defines the output schema for the list_content tool.
type ListContentOutput struct {
	Items   []ContentSummaryOutput `json:"items" jsonschema:"content summaries in upload order"`
	Total   int                    `json:"total" jsonschema:"total contents in the store"`
	HasMore bool                   `json:"hasMore" jsonschema:"true when more pages follow"`
}

// ReadContentInput defines the input schema for the read_content tool.
type ReadContentInput struct {
	StoreID   string `json:"storeId" jsonschema:"store id the content belongs to"`
	ContentID string `json:"contentId" jsonschema:"content id to read"`
	FromLine  int    `json:"fromLine,omitempty" jsonschema:"first line to read, 1-indexed, default 1"`
	ToLine    int    `json:"toLine,omitempty" jsonschema:"last line to read, inclusive, default last line"`
}

// ReadContentOutput defines the output schema for the read_content tool.
type ReadContentOutput struct {
	ContentID  string `json:"contentId"`
	Text       string `json:"text" jsonschema:"the requested lines"`
	FromLine   int    `json:"fromLine" jsonschema:"first line actually read after clamping"`
	ToLine     int    `json:"toLine" jsonschema:"last line actually read after clamping"`
	TotalLines int    `json:"totalLines" jsonschema:"total lines in the content"`
}

// KeywordSearchInput defines the input schema for the keyword_search tool.
type KeywordSearchInput struct {
	StoreID   string  `json:"storeId" jsonschema:"store id to search"`
	Query     string  `json:"query" jsonschema:"keyword query"`
	TopN      int     `json:"topN,omitempty" jsonschema:"maximum results, default 5"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum BM25 score, default 0"`
}

// SearchResultOutput is one scored chunk.
type SearchResultOutput struct {
	ContentID     string  `json:"contentId"`
	ChunkID       string  `json:"chunkId"`
	Context       string  `json:"context" jsonschema:"chunk text"`
	LineRange     [2]int  `json:"lineRange" jsonschema:"start and end line of the chunk, inclusive"`
	Score         float64 `json:"score" jsonschema:"BM25 relevance score"`
	RelevanceType string  `json:"relevanceType" jsonschema:"always keyword"`
}

// KeywordSearchOutput defines the output schema for the keyword_search tool.
type KeywordSearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"results in descending score order"`
}

// DeleteStoreInput defines the input schema for the delete_store tool.
type DeleteStoreInput struct {
	StoreID string `json:"storeId" jsonschema:"store id to delete"`
}

// DeleteStoreOutput defines the output schema for the delete_store tool.
type DeleteStoreOutput struct {
	Deleted bool `json:"deleted"`
}

// NewServer creates the MCP server and registers its tools.
func NewServer(service *contentstore.Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("content store service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service: service,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "attachmcp",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_store",
		Description: "Create a new document store for this session. Returns the store id the other tools operate on.",
	}, s.createStoreHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_content",
		Description: "Attach a document to a store, either as a file:// URL or as inline text with a filename. Identical content is deduplicated, returning the existing document.",
	}, s.addContentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_content",
		Description: "List the documents in a store with size, line count, and a short preview. Paginated in upload order.",
	}, s.listContentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "read_content",
		Description: "Read a line range of a document. Out-of-bounds ranges are clamped to the document's actual lines.",
	}, s.readContentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "keyword_search",
		Description: "Search a store's documents by keyword relevance (BM25). Returns scored chunks with line ranges usable with read_content.",
	}, s.keywordSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_store",
		Description: "Delete a store together with all of its documents and chunks.",
	}, s.deleteStoreHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 6))
}

func (s *Server) createStoreHandler(ctx context.Context, _ *mcp.CallToolRequest, input CreateStoreInput) (
	*mcp.CallToolResult,
	CreateStoreOutput,
	error,
) {
	reqID := requestID()
	s.logger.Debug("create_store", "request_id", reqID, "name", input.Name)

	resp, err := s.service.CreateStore(ctx, contentstore.CreateStoreRequest{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		return nil, CreateStoreOutput{}, MapError(err)
	}

	return nil, CreateStoreOutput{
		StoreID:   resp.StoreID,
		CreatedAt: resp.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) addContentHandler(ctx context.Context, _ *mcp.CallToolRequest, input AddContentInput) (
	*mcp.CallToolResult,
	AddContentOutput,
	error,
) {
	reqID := requestID()
	s.logger.Debug("add_content", "request_id", reqID,
		"store_id", input.StoreID, "file_url", input.FileURL)

	if input.StoreID == "" {
		return nil, AddContentOutput{}, NewInvalidParamsError("storeId parameter is required")
	}

	req := contentstore.AddContentRequest{
		StoreID: input.StoreID,
		FileURL: input.FileURL,
		Content: input.Content,
	}
	if input.Metadata != nil {
		req.Metadata = contentstore.ContentMetadata{
			Filename: input.Metadata.Filename,
			MimeType: input.Metadata.MimeType,
		}
	}

	resp, err := s.service.AddContent(ctx, req)
	if err != nil {
		return nil, AddContentOutput{}, MapError(err)
	}

	return nil, AddContentOutput{
		ContentID:    resp.ContentID,
		Filename:     resp.Filename,
		Size:         resp.SizeBytes,
		LineCount:    resp.LineCount,
		ChunkCount:   resp.ChunkCount,
		Preview:      resp.Preview,
		Deduplicated: resp.Deduplicated,
	}, nil
}

func (s *Server) listContentHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListContentInput) (
	*mcp.CallToolResult,
	ListContentOutput,
	error,
) {
	if input.StoreID == "" {
		return nil, ListContentOutput{}, NewInvalidParamsError("storeId parameter is required")
	}

	resp, err := s.service.ListContent(ctx, contentstore.ListContentRequest{
		StoreID: input.StoreID,
		Offset:  input.Offset,
		Limit:   input.Limit,
	})
	if err != nil {
		return nil, ListContentOutput{}, MapError(err)
	}

	out := ListContentOutput{
		Items:   make([]ContentSummaryOutput, 0, len(resp.Items)),
		Total:   resp.Total,
		HasMore: resp.HasMore,
	}
	for _, item := range resp.Items {
		out.Items = append(out.Items, ContentSummaryOutput{
			ContentID:  item.ContentID,
			Filename:   item.Filename,
			MimeType:   item.MimeType,
			Size:       item.SizeBytes,
			LineCount:  item.LineCount,
			Preview:    item.Preview,
			ChunkCount: item.ChunkCount,
			UploadedAt: item.UploadedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Server) readContentHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReadContentInput) (
	*mcp.CallToolResult,
	ReadContentOutput,
	error,
) {
	if input.StoreID == "" || input.ContentID == "" {
		return nil, ReadContentOutput{}, NewInvalidParamsError("storeId and contentId parameters are required")
	}

	resp, err := s.service.ReadContent(ctx, contentstore.ReadContentRequest{
		StoreID:   input.StoreID,
		ContentID: input.ContentID,
		FromLine:  input.FromLine,
		ToLine:    input.ToLine,
	})
	if err != nil {
		return nil, ReadContentOutput{}, MapError(err)
	}

	return nil, ReadContentOutput{
		ContentID:  resp.ContentID,
		Text:       resp.Text,
		FromLine:   resp.FromLine,
		ToLine:     resp.ToLine,
		TotalLines: resp.TotalLines,
	}, nil
}

func (s *Server) keywordSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input KeywordSearchInput) (
	*mcp.CallToolResult,
	KeywordSearchOutput,
	error,
) {
	reqID := requestID()
	s.logger.Debug("keyword_search", "request_id", reqID,
		"store_id", input.StoreID, "query", input.Query)

	if input.StoreID == "" {
		return nil, KeywordSearchOutput{}, NewInvalidParamsError("storeId parameter is required")
	}
	if input.Query == "" {
		return nil, KeywordSearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	resp, err := s.service.KeywordSimilaritySearch(ctx, contentstore.SearchRequest{
		StoreID:   input.StoreID,
		Query:     input.Query,
		TopN:      input.TopN,
		Threshold: input.Threshold,
	})
	if err != nil {
		return nil, KeywordSearchOutput{}, MapError(err)
	}

	out := KeywordSearchOutput{
		Results: make([]SearchResultOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, SearchResultOutput{
			ContentID:     r.ContentID,
			ChunkID:       r.ChunkID,
			Context:       r.Context,
			LineRange:     r.LineRange,
			Score:         r.Score,
			RelevanceType: r.RelevanceType,
		})
	}
	return nil, out, nil
}

func (s *Server) deleteStoreHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteStoreInput) (
	*mcp.CallToolResult,
	DeleteStoreOutput,
	error,
) {
	if input.StoreID == "" {
		return nil, DeleteStoreOutput{}, NewInvalidParamsError("storeId parameter is required")
	}

	if err := s.service.DeleteStore(ctx, input.StoreID); err != nil {
		return nil, DeleteStoreOutput{}, MapError(err)
	}
	return nil, DeleteStoreOutput{Deleted: true}, nil
}

// Serve runs the server over the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		s.logger.Info("starting MCP server", "transport", "stdio", "version", version.Version)
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport: %q", transport)
	}
}

// requestID returns a short random id for correlating log lines.
func requestID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}
