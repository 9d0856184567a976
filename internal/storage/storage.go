// Package storage materializes downloaded video artifacts. It defines
// the Storage port and implementations for local disk and S3 delivery.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for materializing video artifacts.
// Videos live on local disk for the duration of the session; S3 upload
// is an optional delivery path for final videos.
type Storage interface {
	// SaveVideo writes video bytes to a session-scoped file and returns
	// its path. The name parameter is used as a hint for the filename.
	SaveVideo(ctx context.Context, name string, data io.Reader) (path string, err error)

	// OpenVideo opens a previously saved video for reading.
	// The caller is responsible for closing the returned ReadCloser.
	OpenVideo(ctx context.Context, path string) (io.ReadCloser, error)

	// RemoveVideos deletes the given video files. It continues even if
	// some files fail to delete, returning the first error encountered.
	RemoveVideos(ctx context.Context, paths []string) error

	// UploadVideo uploads video bytes to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadVideo(ctx context.Context, key string, data io.Reader) (url string, err error)
}
