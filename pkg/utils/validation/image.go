package validation

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrFileSize     = errors.New("file size exceeds limit")
	ErrFileType     = errors.New("invalid file type. Allowed types: JPG, PNG, WEBP")
	ErrFileRequired = errors.New("no file provided")
)

// ImageRule bounds one kind of upload.
type ImageRule struct {
	MaxSize    int64
	Extensions []string
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

var (
	ProductImage = ImageRule{MaxSize: 10 << 20, Extensions: imageExtensions}
	Avatar       = ImageRule{MaxSize: 2 << 20, Extensions: imageExtensions}
)

// Check rejects missing, oversized or non-image uploads. The extension and
// the sniffed content must both look like an image.
func (r ImageRule) Check(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileRequired
	}
	if file.Size > r.MaxSize {
		return fmt.Errorf("%w of %dMB", ErrFileSize, r.MaxSize>>20)
	}
	if !slices.Contains(r.Extensions, strings.ToLower(filepath.Ext(file.Filename))) {
		return ErrFileType
	}

	f, err := file.Open()
	if err != nil {
		return ErrFileRequired
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrFileType
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return ErrFileType
	}
	return nil
}
