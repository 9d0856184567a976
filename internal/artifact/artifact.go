// Package artifact defines the image and video artifacts the session
// holds: a generated or uploaded logo image and its animated video.
package artifact

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Static errors for artifact construction.
var (
	// ErrEmptyUpload is returned when an uploaded file has no content.
	ErrEmptyUpload = errors.New("artifact: uploaded file is empty")
	// ErrNotAnImage is returned when an uploaded file is not an image.
	ErrNotAnImage = errors.New("artifact: uploaded file is not an image")
)

// Image is a logo image payload. It is immutable once created; a new
// generation or upload replaces it wholesale.
type Image struct {
	// Base64 is the base64-encoded image bytes.
	Base64 string
	// MIMEType is the image media type (e.g. "image/png").
	MIMEType string
}

// IsZero reports whether the artifact holds no image.
func (i Image) IsZero() bool {
	return i.Base64 == ""
}

// Video is a materialized animation result. Path points at the
// downloaded bytes on local disk; URL is set when the video was also
// uploaded to S3.
type Video struct {
	// Path is the local file path of the downloaded video.
	Path string
	// URL is the S3 URL, when S3 upload is configured.
	URL string
	// MIMEType is the video media type.
	MIMEType string
}

// IsZero reports whether the artifact holds no video.
func (v Video) IsZero() bool {
	return v.Path == "" && v.URL == ""
}

// ImageFromUpload builds an Image from user-supplied file bytes. The
// content is sniffed and must be an image type; the conversion is
// entirely local, no network call.
func ImageFromUpload(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyUpload
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, ErrNotAnImage
	}

	return Image{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: mt.String(),
	}, nil
}
