package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attachmcp/attachmcp/internal/chunk"
	"github.com/attachmcp/attachmcp/internal/contentstore"
	apperrors "github.com/attachmcp/attachmcp/internal/errors"
	"github.com/attachmcp/attachmcp/internal/index"
	"github.com/attachmcp/attachmcp/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	indexes, err := index.NewManager(repo, index.DefaultConfig(), 10, nil)
	require.NoError(t, err)

	service := contentstore.NewService(repo, indexes, chunk.New(chunk.DefaultOptions()),
		contentstore.FileFetcher{}, contentstore.PlainTextDecoder{},
		contentstore.DefaultLimits(), nil)

	srv, err := NewServer(service, nil)
	require.NoError(t, err)
	return srv
}

func createStore(t *testing.T, srv *Server) string {
	t.Helper()
	_, out, err := srv.createStoreHandler(context.Background(), nil, CreateStoreInput{Name: "docs"})
	require.NoError(t, err)
	require.NotEmpty(t, out.StoreID)
	return out.StoreID
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestCreateStoreTool(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.createStoreHandler(context.Background(), nil, CreateStoreInput{Name: "session"})
	require.NoError(t, err)
	assert.Contains(t, out.StoreID, "store_")
	assert.NotEmpty(t, out.CreatedAt)
}

func TestAddAndSearchRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv)

	_, added, err := srv.addContentHandler(context.Background(), nil, AddContentInput{
		StoreID:  storeID,
		Content:  "The cat sat. The dog ran fast today.",
		Metadata: &ContentMetadataInput{Filename: "a.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added.ChunkCount)
	assert.Equal(t, 1, added.LineCount)

	_, found, err := srv.keywordSearchHandler(context.Background(), nil, KeywordSearchInput{
		StoreID: storeID,
		Query:   "dog",
	})
	require.NoError(t, err)
	require.Len(t, found.Results, 1)
	assert.Equal(t, added.ContentID, found.Results[0].ContentID)
	assert.Equal(t, [2]int{1, 1}, found.Results[0].LineRange)
	assert.Equal(t, "keyword", found.Results[0].RelevanceType)
}

func TestReadContentTool(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv)

	_, added, err := srv.addContentHandler(context.Background(), nil, AddContentInput{
		StoreID:  storeID,
		Content:  "l1\nl2\nl3",
		Metadata: &ContentMetadataInput{Filename: "a.txt"},
	})
	require.NoError(t, err)

	_, read, err := srv.readContentHandler(context.Background(), nil, ReadContentInput{
		StoreID:   storeID,
		ContentID: added.ContentID,
		FromLine:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "l2\nl3", read.Text)
	assert.Equal(t, 2, read.FromLine)
	assert.Equal(t, 3, read.ToLine)
	assert.Equal(t, 3, read.TotalLines)
}

func TestListContentTool(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv)

	_, _, err := srv.addContentHandler(context.Background(), nil, AddContentInput{
		StoreID:  storeID,
		Content:  "some document text",
		Metadata: &ContentMetadataInput{Filename: "a.txt"},
	})
	require.NoError(t, err)

	_, listed, err := srv.listContentHandler(context.Background(), nil, ListContentInput{
		StoreID: storeID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, listed.Total)
	assert.False(t, listed.HasMore)
	require.Len(t, listed.Items, 1)
	assert.Equal(t, "a.txt", listed.Items[0].Filename)
	assert.NotEmpty(t, listed.Items[0].UploadedAt)
}

func TestDeleteStoreTool(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv)

	_, deleted, err := srv.deleteStoreHandler(context.Background(), nil, DeleteStoreInput{
		StoreID: storeID,
	})
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	_, _, err = srv.listContentHandler(context.Background(), nil, ListContentInput{
		StoreID: storeID,
	})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeStoreNotFound, mcpErr.Code)
}

func TestHandlersValidateParams(t *testing.T) {
	srv := newTestServer(t)

	_, _, err := srv.addContentHandler(context.Background(), nil, AddContentInput{})
	assertMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.listContentHandler(context.Background(), nil, ListContentInput{})
	assertMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.readContentHandler(context.Background(), nil, ReadContentInput{StoreID: "store_x"})
	assertMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.keywordSearchHandler(context.Background(), nil, KeywordSearchInput{StoreID: "store_x"})
	assertMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.deleteStoreHandler(context.Background(), nil, DeleteStoreInput{})
	assertMCPCode(t, err, ErrCodeInvalidParams)
}

func assertMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"store not found", apperrors.New(apperrors.CodeStoreNotFound, "missing"), ErrCodeStoreNotFound},
		{"content not found", apperrors.New(apperrors.CodeContentNotFound, "missing"), ErrCodeContentNotFound},
		{"store mismatch", apperrors.New(apperrors.CodeStoreMismatch, "wrong store"), ErrCodeInvalidParams},
		{"invalid range", apperrors.New(apperrors.CodeInvalidLineRange, "bad range"), ErrCodeInvalidParams},
		{"missing input", apperrors.New(apperrors.CodeMissingInput, "no input"), ErrCodeInvalidParams},
		{"file too large", apperrors.New(apperrors.CodeFileTooLarge, "too big"), ErrCodeTooLarge},
		{"content too large", apperrors.New(apperrors.CodeContentTooLarge, "too big"), ErrCodeTooLarge},
		{"fetch failed", apperrors.New(apperrors.CodeFetchFailed, "io"), ErrCodeTransient},
		{"deadline", context.DeadlineExceeded, ErrCodeTransient},
		{"canceled", context.Canceled, ErrCodeTransient},
		{"plain error", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			if tt.err == nil {
				assert.Nil(t, mapped)
				return
			}
			require.NotNil(t, mapped)
			assert.Equal(t, tt.code, mapped.Code)
		})
	}
}

func TestMapErrorKeepsStableCodeInMessage(t *testing.T) {
	mapped := MapError(apperrors.New(apperrors.CodeStoreNotFound, "store store_x not found"))
	assert.Contains(t, mapped.Message, "STORE_NOT_FOUND")
}
