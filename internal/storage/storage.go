package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrEmptyFilename    = errors.New("empty filename")
	ErrDisallowedFormat = errors.New("file type not allowed")
)

// ImageStore persists uploaded auction images and returns the reference
// stored on the auction.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, ref string) error
}

var allowedExt = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces an uploaded name to a single safe path element.
// Separators become word breaks, so "../../etc/passwd" yields "etc_passwd".
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

func AllowedImage(name string) bool {
	_, ok := allowedExt[ext(name)]
	return ok
}

func ContentType(name string) string {
	if ct, ok := allowedExt[ext(name)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// CleanImageName sanitizes name and checks it against the allow-list.
func CleanImageName(name string) (string, error) {
	clean := SanitizeFilename(name)
	if clean == "" {
		return "", ErrEmptyFilename
	}
	if !AllowedImage(clean) {
		return "", ErrDisallowedFormat
	}
	return clean, nil
}
