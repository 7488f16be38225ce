// Package blobstore persists raw uploaded report bytes on the local
// filesystem, keyed by doc id and filename.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"medreport/internal/domain"
)

var ErrMissingFilename = errors.New("filename is required")

// FileStore writes each upload under root/docID/filename.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "./uploaded_reports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Save streams the upload to disk and returns the stored path. A partially
// written file is removed on failure so a retry starts clean.
func (s *FileStore) Save(ctx context.Context, docID, filename string, r io.Reader) (string, error) {
	if filename == "" {
		return "", ErrMissingFilename
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Strip any path component the client sent.
	filename = filepath.Base(filename)
	dir := filepath.Join(s.root, docID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create doc dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

var _ domain.FileStore = (*FileStore)(nil)
