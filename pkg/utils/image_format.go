package utils

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/RCXD/Bros-back/domain/models"
)

// allowedImageExt maps every accepted extension to its canonical form.
var allowedImageExt = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"jpe":  "jpg",
	"jfif": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

var allowedImageContentTypes = map[string]string{
	"image/jpeg":  "jpg",
	"image/jpg":   "jpg",
	"image/pjpeg": "jpg",
	"image/png":   "png",
	"image/gif":   "gif",
	"image/webp":  "webp",
}

var contentTypeByExt = map[string]string{
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// NormalizeExtension lower-cases ext, drops a leading dot and folds aliases.
// The second result is false when ext is not on the allow-list.
func NormalizeExtension(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	canonical, ok := allowedImageExt[ext]
	return canonical, ok
}

// ValidateImageFilename checks the extension of a client supplied filename
// and returns its canonical form. Nothing is read from the file.
func ValidateImageFilename(filename string) (string, error) {
	raw := strings.TrimPrefix(filepath.Ext(filename), ".")
	ext, ok := NormalizeExtension(raw)
	if !ok {
		return "", &models.UnsupportedFormatError{Ext: strings.ToLower(raw)}
	}
	return ext, nil
}

// ValidateImageContentType accepts a declared MIME type, parameters ignored.
func ValidateImageContentType(contentType string) (string, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &models.UnsupportedFormatError{Ext: contentType}
	}
	ext, ok := allowedImageContentTypes[strings.ToLower(mt)]
	if !ok {
		return "", &models.UnsupportedFormatError{Ext: mt}
	}
	return ext, nil
}

// ImageContentType returns the MIME type for a canonical extension.
func ImageContentType(ext string) string {
	if ct, ok := contentTypeByExt[ext]; ok {
		return ct
	}
	if canonical, ok := NormalizeExtension(ext); ok {
		return contentTypeByExt[canonical]
	}
	return "application/octet-stream"
}
