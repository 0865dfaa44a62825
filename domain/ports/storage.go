package ports

import (
	"errors"
	"io"
	"time"
)

// ErrFileNotFound is returned by reads of a path that holds no file.
var ErrFileNotFound = errors.New("file not found")

// TempFileSuffix marks in-flight atomic replacements. Leftovers are swept by cleanup.
const TempFileSuffix = ".tmp"

// StoragePort is the blob backend. Paths are relative to the storage root
// and always use forward slashes.
type StoragePort interface {
	// UploadFile writes a whole file, creating parent directories as needed,
	// and returns its public URL.
	UploadFile(file io.Reader, path string, contentType string) (string, error)

	// ReplaceFile overwrites path so that readers see either the old or the
	// new content, never a partial write. It returns ErrFileNotFound when
	// path is missing and never recreates it.
	ReplaceFile(file io.Reader, path string, contentType string) error

	// GetFileContent returns ErrFileNotFound when path is missing.
	GetFileContent(path string) (io.ReadCloser, string, error)

	// DeleteFile treats a missing file as already deleted.
	DeleteFile(path string) error

	// MoveFile renames src to dst, creating dst's parent directories.
	MoveFile(src, dst string) error

	FileExists(path string) (bool, error)

	GetFileURL(path string) string

	// ListFiles walks everything under prefix ("" for the whole root).
	ListFiles(prefix string) ([]FileInfo, error)

	GetProviderName() string
}

type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}
