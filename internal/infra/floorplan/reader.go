package floorplan

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"home-setup/internal/application"
	"home-setup/internal/domain"
)

// Upload is a floorplan candidate with its declared size and MIME type.
type Upload struct {
	name        string
	size        int64
	contentType string
	open        func() (io.ReadCloser, error)
}

func NewUpload(name string, size int64, contentType string, open func() (io.ReadCloser, error)) *Upload {
	return &Upload{name: name, size: size, contentType: contentType, open: open}
}

// FromPath describes a file on disk. The MIME type comes from the extension,
// or from sniffing the first bytes when the extension is unknown.
func FromPath(path string) (*Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType, err = sniff(path)
		if err != nil {
			return nil, err
		}
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	return NewUpload(filepath.Base(path), info.Size(), contentType, func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return http.DetectContentType(head[:n]), nil
}

func (u *Upload) Name() string        { return u.name }
func (u *Upload) Size() int64         { return u.size }
func (u *Upload) ContentType() string { return u.contentType }

func (u *Upload) Open() (io.ReadCloser, error) {
	if u.open == nil {
		return nil, fmt.Errorf("upload %s has no content", u.name)
	}
	return u.open()
}

// Reader encodes uploads as data URIs.
type Reader struct {
	maxBytes int64
}

func NewReader(maxBytes int64) *Reader {
	return &Reader{maxBytes: maxBytes}
}

func (r *Reader) ReadFloorplan(ctx context.Context, file application.FloorplanFile) (*domain.Floorplan, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReadFailed, err)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", domain.ErrReadFailed, file.Name(), err)
	}
	defer rc.Close()

	// The declared size is only a claim; stop one byte past the limit.
	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrReadFailed, file.Name(), err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFileTooLarge, file.Name(), r.maxBytes)
	}

	return &domain.Floorplan{
		Name:     file.Name(),
		MIMEType: file.ContentType(),
		Size:     int64(len(data)),
		DataURI:  "data:" + file.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
