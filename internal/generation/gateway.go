// Package generation provides the gateway translating the two user
// intents — generate a logo image from text, animate an image into a
// video — into calls against the remote generative-media service,
// including the poll loop for the long-running video job.
package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/logomotion/logomotion-api/internal/artifact"
	"github.com/logomotion/logomotion-api/internal/gemini"
	"github.com/logomotion/logomotion-api/internal/storage"
)

// Static errors for gateway operations.
var (
	// ErrNoImageReturned is returned when the remote service produced zero images.
	ErrNoImageReturned = errors.New("generation: no image returned")
	// ErrMissingResult is returned when a completed video job carries no result URI.
	ErrMissingResult = errors.New("generation: completed job has no result URI")
	// ErrPollTimeout is returned when the video job did not complete within the poll bound.
	ErrPollTimeout = errors.New("generation: video generation timed out")
)

// Fixed prompt templates and request parameters. The logo prompt embeds
// the user description; everything else is constant per request kind.
const (
	logoPromptTemplate = "A professional, modern, minimalist logo for: %s. Clean flat vector style, simple geometric shapes, plain background."
	animationPrompt    = "Animate this logo with smooth, subtle, professional motion. Gentle dynamic movement, clean background."

	logoAspectRatio = "1:1"
	logoOutputMIME  = "image/png"
	videoResolution = "720p"
	videoMIMEType   = "video/mp4"
)

// AspectRatio is the user-selected output shape for an animation.
type AspectRatio string

// Supported aspect ratios, passed through unchanged to the remote service.
const (
	// AspectLandscape is the 16:9 landscape ratio.
	AspectLandscape AspectRatio = "16:9"
	// AspectPortrait is the 9:16 portrait ratio.
	AspectPortrait AspectRatio = "9:16"
)

// IsValid returns true if the aspect ratio is one of the supported values.
func (a AspectRatio) IsValid() bool {
	return a == AspectLandscape || a == AspectPortrait
}

// ClientFactory builds a Gemini client bound to the currently selected
// credential. The gateway calls it once per operation, so a credential
// updated between calls takes effect on the next call without a restart.
type ClientFactory func() (gemini.Client, error)

// Gateway is the stateless facade over the remote generative-media
// service. It owns no artifacts; results flow back to the caller.
type Gateway struct {
	newClient    ClientFactory
	store        storage.Storage
	logger       *slog.Logger
	imageModel   string
	videoModel   string
	pollInterval time.Duration
	pollTimeout  time.Duration
	uploadToS3   bool
}

// Option is a function that configures a Gateway.
type Option func(*Gateway)

// WithModels sets the image and video model identifiers.
func WithModels(imageModel, videoModel string) Option {
	return func(g *Gateway) {
		if imageModel != "" {
			g.imageModel = imageModel
		}
		if videoModel != "" {
			g.videoModel = videoModel
		}
	}
}

// WithPollInterval sets the fixed wait between job status queries.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithPollTimeout bounds the poll loop. Zero disables the bound.
func WithPollTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.pollTimeout = d
	}
}

// WithS3Upload enables uploading finished videos to S3.
func WithS3Upload(enabled bool) Option {
	return func(g *Gateway) {
		g.uploadToS3 = enabled
	}
}

// NewGateway creates a Gateway.
func NewGateway(newClient ClientFactory, store storage.Storage, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		newClient:    newClient,
		store:        store,
		logger:       logger,
		imageModel:   "imagen-3.0-generate-002",
		videoModel:   "veo-2.0-generate-001",
		pollInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateLogo requests exactly one square PNG logo for the given
// description. It either returns one image artifact or fails; no retry.
func (g *Gateway) GenerateLogo(ctx context.Context, description string) (artifact.Image, error) {
	client, err := g.newClient()
	if err != nil {
		return artifact.Image{}, fmt.Errorf("generation: build client: %w", err)
	}

	prompt := fmt.Sprintf(logoPromptTemplate, description)

	images, err := client.GenerateImages(ctx, g.imageModel, prompt, gemini.ImageOptions{
		SampleCount:    1,
		AspectRatio:    logoAspectRatio,
		OutputMIMEType: logoOutputMIME,
	})
	if err != nil {
		return artifact.Image{}, fmt.Errorf("generation: generate logo: %w", err)
	}
	if len(images) == 0 {
		return artifact.Image{}, ErrNoImageReturned
	}

	img := images[0]
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = logoOutputMIME
	}

	g.logger.Info("logo generated",
		slog.String("model", g.imageModel),
		slog.String("mime_type", mimeType),
	)

	return artifact.Image{
		Base64:   img.Base64,
		MIMEType: mimeType,
	}, nil
}

// Animate turns an image artifact into a video: submit the job, poll at
// a fixed interval until the operation reports done, extract the result
// URI, download the bytes, and materialize them through storage. Each
// step's failure is terminal for this invocation; no internal retry.
func (g *Gateway) Animate(ctx context.Context, img artifact.Image, aspect AspectRatio) (artifact.Video, error) {
	client, err := g.newClient()
	if err != nil {
		return artifact.Video{}, fmt.Errorf("generation: build client: %w", err)
	}

	op, err := client.GenerateVideos(ctx, g.videoModel, animationPrompt, gemini.ImagePayload{
		Base64:   img.Base64,
		MIMEType: img.MIMEType,
	}, gemini.VideoOptions{
		SampleCount: 1,
		AspectRatio: string(aspect),
		Resolution:  videoResolution,
	})
	if err != nil {
		return artifact.Video{}, fmt.Errorf("generation: submit video job: %w", err)
	}

	g.logger.Info("video job submitted",
		slog.String("model", g.videoModel),
		slog.String("operation", op.Name),
		slog.String("aspect_ratio", string(aspect)),
	)

	op, err = g.awaitOperation(ctx, client, op)
	if err != nil {
		return artifact.Video{}, err
	}

	if op.Error != "" {
		return artifact.Video{}, fmt.Errorf("generation: video job failed: %s", op.Error)
	}
	if op.VideoURI == "" {
		return artifact.Video{}, ErrMissingResult
	}

	data, err := client.DownloadFile(ctx, op.VideoURI)
	if err != nil {
		return artifact.Video{}, fmt.Errorf("generation: download video: %w", err)
	}

	return g.materialize(ctx, data)
}

// awaitOperation polls the operation at the configured interval until
// done, replacing the handle with the refreshed one on each query.
// Polls are strictly sequential. When a poll timeout is configured the
// loop fails with ErrPollTimeout once the bound elapses.
func (g *Gateway) awaitOperation(ctx context.Context, client gemini.Client, op gemini.Operation) (gemini.Operation, error) {
	var deadline <-chan time.Time
	if g.pollTimeout > 0 {
		timer := time.NewTimer(g.pollTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return gemini.Operation{}, fmt.Errorf("generation: poll cancelled: %w", ctx.Err())
		case <-deadline:
			return gemini.Operation{}, fmt.Errorf("%w after %s", ErrPollTimeout, g.pollTimeout)
		case <-time.After(g.pollInterval):
		}

		refreshed, err := client.GetOperation(ctx, op.Name)
		if err != nil {
			return gemini.Operation{}, fmt.Errorf("generation: poll video job: %w", err)
		}
		op = refreshed

		g.logger.Debug("video job polled",
			slog.String("operation", op.Name),
			slog.Bool("done", op.Done),
		)
	}

	return op, nil
}

// materialize writes the downloaded bytes to storage and optionally
// uploads them to S3. An upload failure keeps the local copy and logs a
// warning rather than failing the whole animation.
func (g *Gateway) materialize(ctx context.Context, data []byte) (artifact.Video, error) {
	path, err := g.store.SaveVideo(ctx, "animation", bytes.NewReader(data))
	if err != nil {
		return artifact.Video{}, fmt.Errorf("generation: save video: %w", err)
	}

	video := artifact.Video{
		Path:     path,
		MIMEType: videoMIMEType,
	}

	if g.uploadToS3 {
		url, err := g.store.UploadVideo(ctx, filepath.Base(path), bytes.NewReader(data))
		if err != nil {
			g.logger.Warn("S3 upload failed, keeping local copy",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		} else {
			video.URL = url
		}
	}

	g.logger.Info("video materialized",
		slog.String("path", video.Path),
		slog.String("url", video.URL),
	)

	return video, nil
}
