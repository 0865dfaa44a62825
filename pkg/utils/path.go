package utils

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrInvalidPath      = errors.New("invalid path format")
	ErrUnsafePath       = errors.New("unsafe path detected")
	ErrPathTooLong      = errors.New("path is too long")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrInvalidCharacter = errors.New("path contains invalid characters")
)

const (
	MaxPathLength = 500

	// DateShardLayout names the per-day directory under each category folder.
	DateShardLayout = "2006-01-02"
	// BackupStampLayout prefixes archived profile images.
	BackupStampLayout = "20060102_150405"

	ProfileBackupDir = "profile_images/backup"
)

var (
	dangerousChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f\x7f]`)
	duplicateSlash = regexp.MustCompile(`/+`)
)

// ValidateAndSanitizePath rejects traversal and absolute paths and returns
// the path in forward-slash relative form.
func ValidateAndSanitizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return "", ErrPathTooLong
	}

	p = strings.ReplaceAll(p, "\\", "/")

	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return "", ErrUnsafePath
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", ErrUnsafePath
		}
	}
	if dangerousChars.MatchString(p) {
		return "", ErrInvalidCharacter
	}

	p = duplicateSlash.ReplaceAllString(p, "/")
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return "", ErrEmptyPath
	}
	return p, nil
}

// CategoryDir is the top-level folder for a category, e.g. "post_images".
func CategoryDir(category string) string {
	return category + "_images"
}

// GenerateImagePath builds "{category}_images/{YYYY-MM-DD}/{externalID}.{ext}".
// The date shard comes from t, which callers take at write time.
func GenerateImagePath(category string, externalID uuid.UUID, ext string, t time.Time) string {
	return path.Join(
		CategoryDir(category),
		t.UTC().Format(DateShardLayout),
		externalID.String()+"."+ext,
	)
}

// GenerateBackupPath builds "profile_images/backup/{YYYYmmdd_HHMMSS}_{hex}.{ext}".
func GenerateBackupPath(ext string, t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	name := fmt.Sprintf("%s_%s", t.UTC().Format(BackupStampLayout), id)
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return path.Join(ProfileBackupDir, name)
}

// IsBackupPath reports whether p lives under the profile backup folder.
func IsBackupPath(p string) bool {
	return strings.HasPrefix(p, ProfileBackupDir+"/")
}

// ExternalIDFromPath recovers the identifier from an addressed path's basename.
func ExternalIDFromPath(p string) (uuid.UUID, error) {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	name := strings.TrimSuffix(base, path.Ext(base))
	id, err := uuid.Parse(name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidPath, base)
	}
	return id, nil
}

// SanitizeFileName strips path components and control characters from a
// client supplied name. The result is for display only.
func SanitizeFileName(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)
	filename = strings.ToValidUTF8(filename, "_")
	filename = dangerousChars.ReplaceAllString(filename, "_")
	filename = strings.TrimSpace(filename)

	if filename == "" || filename == "." || filename == ".." || filename == "/" {
		filename = "file"
	}
	if len(filename) > 255 {
		ext := path.Ext(filename)
		if len(ext) > 16 {
			ext = ""
		}
		cut := 255 - len(ext)
		// never split a multi-byte rune
		for cut > 0 && !utf8.RuneStart(filename[cut]) {
			cut--
		}
		filename = filename[:cut] + ext
	}
	return filename
}
