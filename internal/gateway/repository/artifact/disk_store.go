package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"deckshot/internal/gateway/entity"
)

// DiskStore keeps artifacts under a local directory for development runs.
// References are file:// URLs.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, content []byte, _ string) (entity.ArtifactReference, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	// Readers never see a partial image.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit artifact: %w", err)
	}
	return entity.ArtifactReference((&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()), nil
}

func (s *DiskStore) Get(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *DiskStore) path(key string) (string, error) {
	key = normalizeKey(key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes store root", key)
	}
	return path, nil
}
