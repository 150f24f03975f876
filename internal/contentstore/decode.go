package contentstore

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "github.com/attachmcp/attachmcp/internal/errors"
)

// PlainTextDecoder decodes UTF-8 text. Binary formats (PDF, DOCX) need a
// richer decoder behind the same interface.
type PlainTextDecoder struct{}

// Decode validates and returns the bytes as text.
func (PlainTextDecoder) Decode(data []byte, mimeHint string) (string, error) {
	if len(data) == 0 {
		return "", apperrors.New(apperrors.CodeDecodeFailed, "cannot decode empty input")
	}
	if !utf8.Valid(data) {
		return "", apperrors.Newf(apperrors.CodeDecodeFailed,
			"input is not valid UTF-8 text (mime hint %q)", mimeHint)
	}
	return string(data), nil
}

// FileFetcher reads file:// URLs from the local filesystem, enforcing a
// size cap before reading.
type FileFetcher struct {
	// MaxBytes caps the file size. Zero or negative disables the cap.
	MaxBytes int64
}

// Fetch resolves a file:// URL and returns its bytes plus a MIME hint
// derived from the filename extension.
func (f FileFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	path, err := filePathFromURL(rawURL)
	if err != nil {
		return nil, "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", apperrors.Wrapf(err, apperrors.CodeFetchFailed, "failed to stat %s", path)
	}
	if f.MaxBytes > 0 && info.Size() > f.MaxBytes {
		return nil, "", apperrors.Newf(apperrors.CodeFileTooLarge,
			"file %s is %d bytes, limit is %d", filepath.Base(path), info.Size(), f.MaxBytes).
			WithDetail("size", info.Size()).
			WithDetail("limit", f.MaxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", apperrors.Wrapf(err, apperrors.CodeFetchFailed, "failed to read %s", path)
	}
	return data, MimeTypeFromExtension(path), nil
}

// filePathFromURL converts a file:// URL (or a bare path) to a local path.
func filePathFromURL(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		// Bare paths are accepted as a convenience
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeFetchFailed, "invalid URL %q", rawURL)
	}
	if u.Scheme != "file" {
		return "", apperrors.Newf(apperrors.CodeFetchFailed,
			"unsupported URL scheme %q, only file:// is supported", u.Scheme)
	}
	if u.Path == "" {
		return "", apperrors.Newf(apperrors.CodeFetchFailed, "URL %q has no path", rawURL)
	}
	return u.Path, nil
}

// MimeTypeFromExtension infers a MIME type from a filename extension.
func MimeTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
