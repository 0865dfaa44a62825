package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/pkg/utils"
)

// ErrFileExists guards the one-writer-per-path assumption of UploadFile.
var ErrFileExists = errors.New("file already exists")

// LocalStorage keeps files under basePath and serves them below baseURL.
type LocalStorage struct {
	basePath string
	baseURL  string
}

type LocalStorageConfig struct {
	BasePath string // ./uploads
	BaseURL  string // http://localhost:8080/files
}

func NewLocalStorage(config LocalStorageConfig) (ports.StoragePort, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: config.BasePath,
		baseURL:  strings.TrimSuffix(config.BaseURL, "/"),
	}, nil
}

// resolve maps a relative storage path to a filesystem path under basePath.
func (l *LocalStorage) resolve(p string) (string, string, error) {
	clean, err := utils.ValidateAndSanitizePath(p)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(l.basePath, filepath.FromSlash(clean)), nil
}

// UploadFile refuses to overwrite an existing file.
func (l *LocalStorage) UploadFile(file io.Reader, p string, contentType string) (string, error) {
	clean, fullPath, err := l.resolve(p)
	if err != nil {
		return "", err
	}

	dst, err := createExclusive(fullPath)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return l.GetFileURL(clean), nil
}

// createExclusive retries once when a concurrent empty-dir cleanup removes
// the freshly created directory.
func createExclusive(fullPath string) (*os.File, error) {
	dir := filepath.Dir(fullPath)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, filepath.Base(fullPath))
		}
		lastErr = err
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	return nil, fmt.Errorf("failed to create file: %w", lastErr)
}

// ReplaceFile writes into a temp file beside the target and renames it over.
// The target must already exist; a file deleted in the meantime is never
// brought back.
func (l *LocalStorage) ReplaceFile(file io.Reader, p string, contentType string) error {
	_, fullPath, err := l.resolve(p)
	if err != nil {
		return err
	}

	if err := targetExists(fullPath); err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*"+ports.TempFileSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return ports.ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := io.Copy(tmp, file); err != nil {
		return fail(fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync temp file: %w", err))
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(fmt.Errorf("failed to chmod temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// the target can go away while the temp file is written
	if err := targetExists(fullPath); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func targetExists(fullPath string) error {
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ports.ErrFileNotFound
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetFileContent(p string) (io.ReadCloser, string, error) {
	clean, fullPath, err := l.resolve(p)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ports.ErrFileNotFound
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	return file, utils.ImageContentType(strings.TrimPrefix(path.Ext(clean), ".")), nil
}

// DeleteFile treats a missing file as success.
func (l *LocalStorage) DeleteFile(p string) error {
	_, fullPath, err := l.resolve(p)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	l.cleanupEmptyDirs(filepath.Dir(fullPath))
	return nil
}

func (l *LocalStorage) MoveFile(src, dst string) error {
	_, srcPath, err := l.resolve(src)
	if err != nil {
		return err
	}
	_, dstPath, err := l.resolve(dst)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ports.ErrFileNotFound
		}
		return fmt.Errorf("failed to move file: %w", err)
	}

	l.cleanupEmptyDirs(filepath.Dir(srcPath))
	return nil
}

func (l *LocalStorage) FileExists(p string) (bool, error) {
	_, fullPath, err := l.resolve(p)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (l *LocalStorage) GetFileURL(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return l.baseURL + p
}

func (l *LocalStorage) ListFiles(prefix string) ([]ports.FileInfo, error) {
	root := l.basePath
	if prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"); prefix != "" {
		clean, full, err := l.resolve(prefix)
		if err != nil {
			return nil, err
		}
		prefix, root = clean, full
	}

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return []ports.FileInfo{}, nil
	}

	var files []ports.FileInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// a file deleted mid-walk is not an error
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		files = append(files, ports.FileInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (l *LocalStorage) GetProviderName() string {
	return "local"
}

// cleanupEmptyDirs removes empty parents up to, but never including, basePath.
func (l *LocalStorage) cleanupEmptyDirs(dir string) {
	absBase, _ := filepath.Abs(l.basePath)
	absDir, _ := filepath.Abs(dir)

	for absDir != absBase && strings.HasPrefix(absDir, absBase+string(filepath.Separator)) {
		entries, err := os.ReadDir(absDir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(absDir); err != nil {
			return
		}
		absDir = filepath.Dir(absDir)
	}
}
