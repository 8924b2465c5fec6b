package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir}, nil
}

func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader, size int64) (ref string, err error) {
	clean, err := CleanImageName(filename)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref = uuid.NewString()[:8] + "_" + clean
	path := filepath.Join(s.Dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create %s: %w", ref, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("storage: close %s: %w", ref, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
			ref = ""
		}
	}()

	src := r
	if size > 0 {
		src = io.LimitReader(r, size)
	}
	if _, err = io.Copy(f, src); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", ref, err)
	}
	if err = f.Sync(); err != nil {
		return "", fmt.Errorf("storage: sync %s: %w", ref, err)
	}
	return ref, nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return fmt.Errorf("storage: invalid reference %q", ref)
	}
	err := os.Remove(filepath.Join(s.Dir, ref))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", ref, err)
	}
	return nil
}
