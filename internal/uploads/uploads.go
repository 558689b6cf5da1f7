// Package uploads stores report photos on local disk or an FTP server.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotImage = errors.New("only image files are allowed")
	ErrTooLarge = errors.New("file too large")
)

// Store saves a photo and returns the URL clients use to fetch it.
type Store interface {
	Save(ctx context.Context, originalName, contentType string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// NewName returns report-<unixmilli>-<8 hex><ext>, keeping the original extension.
func NewName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return fmt.Sprintf("report-%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}

// Check rejects files over max bytes and anything that is not an image, by
// declared type or by content. f is rewound before returning.
func Check(fh *multipart.FileHeader, f multipart.File, max int64) error {
	if max > 0 && fh.Size > max {
		return ErrTooLarge
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return ErrNotImage
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read upload: %w", err)
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return ErrNotImage
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	return nil
}
