package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbonduro/foodbot/internal/photostore"
)

var errTraversal = errors.New("storage key escapes photo directory")

// LocalPhotoStore keeps photos on disk under basePath. Key segments map to
// subdirectories.
type LocalPhotoStore struct {
	root   string
	logger *slog.Logger
}

func NewLocalPhotoStore(basePath string, logger *slog.Logger) (*LocalPhotoStore, error) {
	root, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid photo path %q: %w", basePath, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &LocalPhotoStore{root: root, logger: logger}, nil
}

// Save writes to a temporary file next to the destination and renames it into
// place, so a reader never observes a partial photo.
func (s *LocalPhotoStore) Save(_ context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	key := photostore.NewKey(prefix, mimeType)
	dest, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			s.logger.Error("failed to remove temp file", "path", tmp.Name(), "error", rerr)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		if cerr := tmp.Close(); cerr != nil {
			s.logger.Error("failed to close temp file after write error", "error", cerr)
		}
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to flush photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to move photo into place: %w", err)
	}
	committed = true

	s.logger.Debug("photo saved", "key", key)
	return key, nil
}

func (s *LocalPhotoStore) Get(_ context.Context, storageKey string) (io.ReadCloser, string, error) {
	path, err := s.resolve(storageKey)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", photostore.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	return f, photostore.MIMEForKey(storageKey), nil
}

func (s *LocalPhotoStore) Delete(_ context.Context, storageKey string) error {
	path, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return photostore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// resolve maps a slash-separated key to an absolute path inside root.
func (s *LocalPhotoStore) resolve(storageKey string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(storageKey))
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errTraversal, storageKey)
	}
	return path, nil
}
