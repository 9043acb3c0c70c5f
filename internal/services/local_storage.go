package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorageService provides filesystem storage for development setups
// without object storage credentials
type LocalStorageService struct {
	basePath string
	baseURL  string
}

// NewLocalStorageService creates a new local storage service
func NewLocalStorageService(basePath, baseURL string) *LocalStorageService {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		fmt.Printf("Warning: Failed to create storage directory %s: %v\n", basePath, err)
	}

	return &LocalStorageService{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

// Upload saves a file to local storage
func (l *LocalStorageService) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error) {
	key = strings.TrimPrefix(key, "/")

	fullPath := filepath.Join(l.basePath, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	return l.GetURL(key), nil
}

// Delete removes a file from local storage
func (l *LocalStorageService) Delete(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")

	fullPath := filepath.Join(l.basePath, key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	return nil
}

// GetURL returns the public URL for a file
func (l *LocalStorageService) GetURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return fmt.Sprintf("%s/%s", l.baseURL, key)
}
