package contentstore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/attachmcp/attachmcp/internal/chunk"
	apperrors "github.com/attachmcp/attachmcp/internal/errors"
	"github.com/attachmcp/attachmcp/internal/index"
	"github.com/attachmcp/attachmcp/internal/store"
)

// PreviewLength is how many characters of decoded text are kept as the
// listing preview.
const PreviewLength = 200

// Limits bounds payload sizes and pagination for the service.
type Limits struct {
	// MaxContentBytes caps inline text accepted by AddContent.
	MaxContentBytes int64
	// ListDefaultLimit is the page size when the caller omits one.
	ListDefaultLimit int
	// ListMaxLimit is the hard page-size cap.
	ListMaxLimit int
}

// DefaultLimits returns the default service limits.
func DefaultLimits() Limits {
	return Limits{
		MaxContentBytes:  10 * 1024 * 1024,
		ListDefaultLimit: 50,
		ListMaxLimit:     100,
	}
}

// Service implements the content-store operations over a repository, an
// index manager, and the external fetch/decode collaborators.
type Service struct {
	repo    Repository
	indexes *index.Manager
	chunker *chunk.Chunker
	fetcher Fetcher
	decoder Decoder
	limits  Limits
	logger  *slog.Logger
}

// NewService wires a Service. A nil logger falls back to slog.Default.
func NewService(repo Repository, indexes *index.Manager, chunker *chunk.Chunker,
	fetcher Fetcher, decoder Decoder, limits Limits, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.ListDefaultLimit <= 0 || limits.ListMaxLimit <= 0 {
		limits = DefaultLimits()
	}
	return &Service{
		repo:    repo,
		indexes: indexes,
		chunker: chunker,
		fetcher: fetcher,
		decoder: decoder,
		limits:  limits,
		logger:  logger,
	}
}

// CreateStore creates a fresh store and always succeeds with a unique id.
func (s *Service) CreateStore(ctx context.Context, req CreateStoreRequest) (*CreateStoreResponse, error) {
	st := &store.Store{
		ID:          store.NewStoreID(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("store created", "store_id", st.ID, "name", st.Name)
	return &CreateStoreResponse{StoreID: st.ID, CreatedAt: st.CreatedAt}, nil
}

// DeleteStore removes a store with its contents and chunks, and drops the
// cached index.
func (s *Service) DeleteStore(ctx context.Context, storeID string) error {
	if storeID == "" {
		return apperrors.New(apperrors.CodeMissingInput, "storeId is required")
	}
	if err := s.repo.DeleteStore(ctx, storeID); err != nil {
		return err
	}
	s.indexes.Invalidate(storeID)
	s.logger.Info("store deleted", "store_id", storeID)
	return nil
}

// AddContent ingests one document. Byte-identical content already in the
// store is deduplicated: the existing identity returns and nothing changes.
func (s *Service) AddContent(ctx context.Context, req AddContentRequest) (*AddContentResponse, error) {
	if req.StoreID == "" {
		return nil, apperrors.New(apperrors.CodeMissingInput, "storeId is required")
	}
	if _, err := s.repo.GetStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	text, filename, mimeType, err := s.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}

	hash := HashText(text)
	if existing, err := s.repo.GetContentByHash(ctx, req.StoreID, hash); err != nil {
		return nil, err
	} else if existing != nil {
		chunkCount, err := s.repo.CountChunks(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("content deduplicated",
			"store_id", req.StoreID, "content_id", existing.ID, "filename", filename)
		return &AddContentResponse{
			ContentID:    existing.ID,
			Filename:     existing.Filename,
			SizeBytes:    existing.SizeBytes,
			LineCount:    existing.LineCount,
			ChunkCount:   chunkCount,
			Preview:      existing.Preview,
			Deduplicated: true,
		}, nil
	}

	content := &store.Content{
		ID:         store.NewContentID(),
		StoreID:    req.StoreID,
		Filename:   filename,
		MimeType:   mimeType,
		Hash:       hash,
		SizeBytes:  int64(len(text)),
		LineCount:  chunk.CountLines(text),
		Preview:    preview(text),
		Text:       text,
		UploadedAt: time.Now().UTC(),
	}
	chunks := store.ChunksFromText(req.StoreID, content.ID, s.chunker.Chunk(text))

	if err := s.repo.CreateContent(ctx, content, chunks); err != nil {
		return nil, err
	}

	// Index trouble must not lose the persisted content; search recall is
	// restored by a later rebuild.
	if err := s.indexes.AddChunks(ctx, req.StoreID, chunks); err != nil {
		s.logger.Warn("failed to index new chunks",
			"store_id", req.StoreID, "content_id", content.ID, "error", err)
	}

	s.logger.Info("content added",
		"store_id", req.StoreID, "content_id", content.ID,
		"filename", filename, "chunks", len(chunks))
	return &AddContentResponse{
		ContentID:  content.ID,
		Filename:   content.Filename,
		SizeBytes:  content.SizeBytes,
		LineCount:  content.LineCount,
		ChunkCount: len(chunks),
		Preview:    content.Preview,
	}, nil
}

// resolveInput fetches or accepts the document text per the request shape.
func (s *Service) resolveInput(ctx context.Context, req AddContentRequest) (text, filename, mimeType string, err error) {
	hasURL := req.FileURL != ""
	hasContent := req.Content != ""
	switch {
	case hasURL && hasContent:
		return "", "", "", apperrors.New(apperrors.CodeMissingInput,
			"provide either fileUrl or content, not both")
	case !hasURL && !hasContent:
		return "", "", "", apperrors.New(apperrors.CodeMissingInput,
			"one of fileUrl or content is required")
	}

	if hasContent {
		if req.Metadata.Filename == "" {
			return "", "", "", apperrors.New(apperrors.CodeMissingInput,
				"metadata.filename is required with inline content")
		}
		if s.limits.MaxContentBytes > 0 && int64(len(req.Content)) > s.limits.MaxContentBytes {
			return "", "", "", apperrors.Newf(apperrors.CodeContentTooLarge,
				"content is %d bytes, limit is %d", len(req.Content), s.limits.MaxContentBytes).
				WithDetail("size", len(req.Content)).
				WithDetail("limit", s.limits.MaxContentBytes)
		}
		mimeType = req.Metadata.MimeType
		if mimeType == "" {
			mimeType = MimeTypeFromExtension(req.Metadata.Filename)
		}
		return req.Content, req.Metadata.Filename, mimeType, nil
	}

	data, hint, err := s.fetcher.Fetch(ctx, req.FileURL)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return "", "", "", err
		}
		return "", "", "", apperrors.Wrapf(err, apperrors.CodeFetchFailed,
			"failed to fetch %s", req.FileURL)
	}

	mimeType = req.Metadata.MimeType
	if mimeType == "" {
		mimeType = hint
	}
	text, err = s.decoder.Decode(data, mimeType)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return "", "", "", err
		}
		return "", "", "", apperrors.Wrapf(err, apperrors.CodeDecodeFailed,
			"failed to decode %s", req.FileURL)
	}

	filename = req.Metadata.Filename
	if filename == "" {
		filename = filenameFromURL(req.FileURL)
	}
	return text, filename, mimeType, nil
}

// ListContent returns one page of content summaries in insertion order.
func (s *Service) ListContent(ctx context.Context, req ListContentRequest) (*ListContentResponse, error) {
	if req.StoreID == "" {
		return nil, apperrors.New(apperrors.CodeMissingInput, "storeId is required")
	}
	if _, err := s.repo.GetStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.limits.ListDefaultLimit
	}
	if limit > s.limits.ListMaxLimit {
		limit = s.limits.ListMaxLimit
	}

	summaries, total, err := s.repo.ListContent(ctx, req.StoreID, offset, limit)
	if err != nil {
		return nil, err
	}

	items := make([]ContentSummary, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, ContentSummary{
			ContentID:  sum.ID,
			Filename:   sum.Filename,
			MimeType:   sum.MimeType,
			SizeBytes:  sum.SizeBytes,
			LineCount:  sum.LineCount,
			Preview:    sum.Preview,
			ChunkCount: sum.ChunkCount,
			UploadedAt: sum.UploadedAt,
		})
	}
	return &ListContentResponse{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// ReadContent returns a clamped window of a content's lines together with
// the range actually read.
func (s *Service) ReadContent(ctx context.Context, req ReadContentRequest) (*ReadContentResponse, error) {
	if req.StoreID == "" || req.ContentID == "" {
		return nil, apperrors.New(apperrors.CodeMissingInput, "storeId and contentId are required")
	}

	content, err := s.repo.GetContent(ctx, req.ContentID)
	if err != nil {
		return nil, err
	}
	if content.StoreID != req.StoreID {
		return nil, apperrors.Newf(apperrors.CodeStoreMismatch,
			"content %s belongs to store %s, not %s", req.ContentID, content.StoreID, req.StoreID)
	}

	lines := splitLines(content.Text)
	total := len(lines)

	from := req.FromLine
	if from < 1 {
		from = 1
	}
	if from > total {
		return nil, apperrors.Newf(apperrors.CodeInvalidLineRange,
			"fromLine %d exceeds total lines %d", req.FromLine, total).
			WithDetail("fromLine", req.FromLine).
			WithDetail("totalLines", total)
	}

	to := req.ToLine
	if to <= 0 || to > total {
		to = total
	}
	if to < from {
		return nil, apperrors.Newf(apperrors.CodeInvalidLineRange,
			"toLine %d is before fromLine %d", req.ToLine, from)
	}

	return &ReadContentResponse{
		ContentID:  content.ID,
		Text:       strings.Join(lines[from-1:to], "\n"),
		FromLine:   from,
		ToLine:     to,
		TotalLines: total,
	}, nil
}

// KeywordSimilaritySearch runs a BM25 query over a store. An empty store
// yields an empty result set.
func (s *Service) KeywordSimilaritySearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.StoreID == "" {
		return nil, apperrors.New(apperrors.CodeMissingInput, "storeId is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.New(apperrors.CodeMissingInput, "query is required")
	}
	if _, err := s.repo.GetStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	hits, err := s.indexes.Search(ctx, req.StoreID, req.Query, index.SearchOptions{
		TopN:      req.TopN,
		Threshold: req.Threshold,
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ContentID:     h.ContentID,
			ChunkID:       h.ChunkID,
			Context:       h.Context,
			LineRange:     [2]int{h.StartLine, h.EndLine},
			Score:         h.Score,
			RelevanceType: h.RelevanceType,
		})
	}
	return &SearchResponse{Results: results}, nil
}

// preview returns the first PreviewLength characters of text.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength])
}

// splitLines splits text into lines without a phantom trailing line for a
// final newline, matching CountLines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" && strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// filenameFromURL falls back to the last URL path segment.
func filenameFromURL(rawURL string) string {
	trimmed := strings.TrimSuffix(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "untitled"
	}
	return trimmed
}
