package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"kukan/src/s3"
)

// Operator abstracts where index files live (local directory or bucket)
type Operator interface {
	Delete(ctx context.Context, path string) error
	Reader(ctx context.Context, path string) (io.ReadCloser, error)
	Writer(ctx context.Context, path string) (io.WriteCloser, error)
	List(ctx context.Context, path string) ([]string, error)
}

// FileSystemOperator implements Operator for a local directory
type FileSystemOperator struct {
	rootPath string
}

// NewFileSystemOperator creates a new filesystem operator
func NewFileSystemOperator(rootPath string) *FileSystemOperator {
	return &FileSystemOperator{rootPath: rootPath}
}

func (fs *FileSystemOperator) Delete(_ context.Context, path string) error {
	return os.Remove(filepath.Join(fs.rootPath, path))
}

func (fs *FileSystemOperator) Reader(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(fs.rootPath, path))
}

func (fs *FileSystemOperator) Writer(_ context.Context, path string) (io.WriteCloser, error) {
	fullPath := filepath.Join(fs.rootPath, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", fullPath, err)
	}
	return os.Create(fullPath)
}

func (fs *FileSystemOperator) List(_ context.Context, path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.rootPath, path))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// GetOperator picks the operator for an index path: "s3://bucket/prefix"
// goes to object storage, anything else is a local directory
func GetOperator(ctx context.Context, path string) (Operator, error) {
	if strings.HasPrefix(path, s3.Prefix) {
		op, err := s3.NewOperator(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 operator: %w", err)
		}
		return op, nil
	}
	return NewFileSystemOperator(path), nil
}
