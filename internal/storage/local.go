package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements the Storage interface using local disk only.
// Generated videos are session-scoped, so a plain directory of files is
// all the persistence the service needs.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage instance. If dir is empty,
// a "logomotion" directory under os.TempDir() is used. The directory is
// created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "logomotion")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the storage directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// SaveVideo writes video bytes to a file in the storage directory.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveVideo(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.CreateTemp(s.dir, name+"_*.mp4")
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write video file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close video file: %w", err)
	}

	return fileName, nil
}

// OpenVideo opens a previously saved video for reading.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) OpenVideo(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}

	return f, nil
}

// RemoveVideos deletes the given video files, continuing past
// individual failures and returning the first error encountered.
func (s *LocalStorage) RemoveVideos(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove video file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadVideo is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadVideo(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
