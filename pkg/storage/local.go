package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps artifacts on the local filesystem and hands out signed
// URLs served by the HTTP file route.
type LocalStorage struct {
	basePath      string
	publicBaseURL string
	signer        *Signer
}

func NewLocalStorage(basePath, publicBaseURL string, signer *Signer) *LocalStorage {
	return &LocalStorage{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		signer:        signer,
	}
}

// Save writes data under the relative path and returns its storage key.
func (s *LocalStorage) Save(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// SignedURL returns a download URL for path valid for ttl.
func (s *LocalStorage) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", fmt.Errorf("storage: signer not configured")
	}
	token := s.signer.Sign(path, time.Now().Add(ttl))
	return s.publicBaseURL + "/files/" + token, nil
}

// Open reads a stored artifact and its content type.
func (s *LocalStorage) Open(_ context.Context, path string) ([]byte, string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, "", err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("open file: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(full))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return b, contentType, nil
}

// resolve maps a relative key to a path inside basePath.
func (s *LocalStorage) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.basePath, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.basePath)+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: path %q escapes base dir", path)
	}
	return full, nil
}
