package contentstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/attachmcp/attachmcp/internal/errors"
)

func TestPlainTextDecoder(t *testing.T) {
	d := PlainTextDecoder{}

	text, err := d.Decode([]byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = d.Decode(nil, "text/plain")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDecodeFailed))

	_, err = d.Decode([]byte{0xff, 0xfe, 0xfd}, "application/octet-stream")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDecodeFailed))
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0o644))

	f := FileFetcher{MaxBytes: 1024}

	data, mime, err := f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))
	assert.Equal(t, "text/plain", mime)

	// Bare paths work too
	data, _, err = f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))
}

func TestFileFetcherErrors(t *testing.T) {
	f := FileFetcher{MaxBytes: 4}

	_, _, err := f.Fetch(context.Background(), "file:///no/such/file.txt")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFetchFailed))

	_, _, err = f.Fetch(context.Background(), "https://example.com/doc.txt")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFetchFailed))

	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("over the cap"), 0o644))
	_, _, err = f.Fetch(context.Background(), "file://"+path)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFileTooLarge))
}

func TestMimeTypeFromExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.txt", "text/plain"},
		{"README.MD", "text/markdown"},
		{"data.csv", "text/csv"},
		{"paper.pdf", "application/pdf"},
		{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"mystery.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MimeTypeFromExtension(tt.filename), tt.filename)
	}
}
