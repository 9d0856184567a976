// Package session owns the lifecycle of the current logo image and its
// animated video. It sequences the gateway calls, manages credential
// recovery, and exposes progress state for the HTTP surface.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/logomotion/logomotion-api/internal/artifact"
	"github.com/logomotion/logomotion-api/internal/credential"
	"github.com/logomotion/logomotion-api/internal/gemini"
	"github.com/logomotion/logomotion-api/internal/generation"
	"github.com/logomotion/logomotion-api/internal/storage"
)

// ImagePhase is the state of the logo sub-machine.
type ImagePhase string

// Logo sub-machine states.
const (
	ImageIdle       ImagePhase = "idle"
	ImageRequesting ImagePhase = "requesting"
	ImageReady      ImagePhase = "ready"
	ImageFailed     ImagePhase = "failed"
)

// VideoPhase is the state of the animation sub-machine.
type VideoPhase string

// Animation sub-machine states.
const (
	VideoIdle               VideoPhase = "idle"
	VideoAwaitingCredential VideoPhase = "awaiting_credential"
	VideoGenerating         VideoPhase = "generating"
	VideoReady              VideoPhase = "ready"
	VideoFailed             VideoPhase = "failed"
)

// validImageTransitions defines which logo phase changes are allowed.
// Terminal phases are re-entrant: a new request restarts the machine.
var validImageTransitions = map[ImagePhase][]ImagePhase{
	ImageIdle:       {ImageRequesting, ImageReady},
	ImageRequesting: {ImageReady, ImageFailed},
	ImageReady:      {ImageRequesting, ImageReady},
	ImageFailed:     {ImageRequesting, ImageReady},
}

// validVideoTransitions defines which animation phase changes are allowed.
var validVideoTransitions = map[VideoPhase][]VideoPhase{
	VideoIdle:               {VideoAwaitingCredential, VideoGenerating},
	VideoAwaitingCredential: {VideoGenerating, VideoFailed},
	VideoGenerating:         {VideoReady, VideoFailed},
	VideoReady:              {VideoAwaitingCredential, VideoGenerating, VideoIdle},
	VideoFailed:             {VideoAwaitingCredential, VideoGenerating, VideoIdle},
}

// ErrInvalidTransition is returned when a phase change is not allowed.
var ErrInvalidTransition = errors.New("session: invalid phase transition")

// Static errors for session operations. Validation failures leave the
// relevant sub-machine untouched.
var (
	// ErrEmptyDescription is returned when a logo request has no description.
	ErrEmptyDescription = errors.New("session: description must not be empty")
	// ErrNoImage is returned when animation is requested without a logo present.
	ErrNoImage = errors.New("session: no logo image to animate")
	// ErrInvalidAspectRatio is returned for an unsupported aspect ratio.
	ErrInvalidAspectRatio = errors.New("session: invalid aspect ratio")
	// ErrGenerationInFlight is returned when a logo request is already running.
	ErrGenerationInFlight = errors.New("session: logo generation already in progress")
	// ErrAnimationInFlight is returned when an animation is already running.
	ErrAnimationInFlight = errors.New("session: animation already in progress")
)

// Gateway is the port the session drives. generation.Gateway satisfies it.
type Gateway interface {
	GenerateLogo(ctx context.Context, description string) (artifact.Image, error)
	Animate(ctx context.Context, img artifact.Image, aspect generation.AspectRatio) (artifact.Video, error)
}

// Session holds the single-slot current image and video artifacts and
// the two sub-machines driving them. All mutation happens here; the
// gateway never touches session state.
type Session struct {
	mu sync.Mutex

	gateway  Gateway
	creds    *credential.Store
	selector credential.Selector
	store    storage.Storage
	logger   *slog.Logger

	rotateInterval time.Duration

	image      artifact.Image
	video      artifact.Video
	imagePhase ImagePhase
	videoPhase VideoPhase
	imageError string
	videoError string

	statusIndex int
	statusStop  chan struct{}
}

// Option is a function that configures a Session.
type Option func(*Session)

// WithStatusRotateInterval sets the progress message rotation period.
func WithStatusRotateInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.rotateInterval = d
		}
	}
}

// New creates a Session. The storage is used only to delete superseded
// video files; it may be nil in tests.
func New(gateway Gateway, creds *credential.Store, selector credential.Selector, store storage.Storage, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		gateway:        gateway,
		creds:          creds,
		selector:       selector,
		store:          store,
		logger:         logger,
		rotateInterval: 4 * time.Second,
		imagePhase:     ImageIdle,
		videoPhase:     VideoIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// canTransitionImage checks if a logo phase change is allowed.
func canTransitionImage(from, to ImagePhase) bool {
	for _, p := range validImageTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// canTransitionVideo checks if an animation phase change is allowed.
func canTransitionVideo(from, to VideoPhase) bool {
	for _, p := range validVideoTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// setImagePhase applies a logo phase change, enforcing the machine.
func (s *Session) setImagePhase(to ImagePhase) error {
	if !canTransitionImage(s.imagePhase, to) {
		return ErrInvalidTransition
	}
	s.imagePhase = to
	return nil
}

// setVideoPhase applies an animation phase change, enforcing the machine.
func (s *Session) setVideoPhase(to VideoPhase) error {
	if !canTransitionVideo(s.videoPhase, to) {
		return ErrInvalidTransition
	}
	s.videoPhase = to
	return nil
}

// animationInFlightLocked reports whether the animation sub-machine is
// busy. The caller must hold s.mu.
func (s *Session) animationInFlightLocked() bool {
	return s.videoPhase == VideoAwaitingCredential || s.videoPhase == VideoGenerating
}

// GenerateLogo runs the logo generation workflow. The prior image and
// video are discarded before the remote call is made, so a failed
// request still leaves the session without stale artifacts. The request
// is rejected while an animation is running: a replaced image would
// otherwise end up paired with the running job's video.
func (s *Session) GenerateLogo(ctx context.Context, description string) (artifact.Image, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return artifact.Image{}, ErrEmptyDescription
	}

	s.mu.Lock()
	if s.imagePhase == ImageRequesting {
		s.mu.Unlock()
		return artifact.Image{}, ErrGenerationInFlight
	}
	if s.animationInFlightLocked() {
		s.mu.Unlock()
		return artifact.Image{}, ErrAnimationInFlight
	}
	if err := s.setImagePhase(ImageRequesting); err != nil {
		s.mu.Unlock()
		return artifact.Image{}, err
	}
	s.image = artifact.Image{}
	s.imageError = ""
	s.clearVideoLocked(ctx)
	s.mu.Unlock()

	img, err := s.gateway.GenerateLogo(ctx, description)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		_ = s.setImagePhase(ImageFailed)
		s.imageError = logoFailurePrefix + err.Error()
		s.logger.Error("logo generation failed",
			slog.String("error", err.Error()),
		)
		return artifact.Image{}, err
	}

	s.image = img
	_ = s.setImagePhase(ImageReady)

	s.logger.Info("logo ready",
		slog.String("mime_type", img.MIMEType),
	)

	return img, nil
}

// UploadLogo replaces the current logo with a user-supplied image. The
// file is validated and converted locally; a non-image leaves the
// current artifact unchanged and contacts no remote endpoint. Like
// GenerateLogo, the replacement is rejected while an animation is
// running.
func (s *Session) UploadLogo(ctx context.Context, data []byte) (artifact.Image, error) {
	img, err := artifact.ImageFromUpload(data)
	if err != nil {
		return artifact.Image{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.imagePhase == ImageRequesting {
		return artifact.Image{}, ErrGenerationInFlight
	}
	if s.animationInFlightLocked() {
		return artifact.Image{}, ErrAnimationInFlight
	}

	s.image = img
	s.imageError = ""
	_ = s.setImagePhase(ImageReady)
	s.clearVideoLocked(ctx)

	s.logger.Info("logo uploaded",
		slog.String("mime_type", img.MIMEType),
	)

	return img, nil
}

// Animate runs the animation workflow against the current logo. When no
// credential is selected it triggers the selector first and optimistically
// marks the selection usable once the interaction returns. A submit
// failure carrying the entity-not-found signature resets the selection
// and surfaces the recoverable message; any other failure surfaces the
// generic one.
func (s *Session) Animate(ctx context.Context, aspect generation.AspectRatio) (artifact.Video, error) {
	if !aspect.IsValid() {
		return artifact.Video{}, ErrInvalidAspectRatio
	}

	s.mu.Lock()
	if s.image.IsZero() {
		s.mu.Unlock()
		return artifact.Video{}, ErrNoImage
	}
	if s.animationInFlightLocked() {
		s.mu.Unlock()
		return artifact.Video{}, ErrAnimationInFlight
	}

	img := s.image
	s.videoError = ""
	s.clearVideoLocked(ctx)

	needsCredential := !s.creds.Selected()
	if needsCredential {
		if err := s.setVideoPhase(VideoAwaitingCredential); err != nil {
			s.mu.Unlock()
			return artifact.Video{}, err
		}
	}
	s.mu.Unlock()

	if needsCredential {
		// Mark the selection usable as soon as the interaction returns,
		// without re-verifying. A rejected key is caught by the submit
		// call and resets the selection again.
		key, err := s.selector.Select(ctx)
		if err == nil && key != "" {
			s.creds.SetKey(key)
		} else {
			s.creds.MarkSelected()
		}
	}

	s.mu.Lock()
	if err := s.setVideoPhase(VideoGenerating); err != nil {
		s.mu.Unlock()
		return artifact.Video{}, err
	}
	s.startStatusRotationLocked()
	s.mu.Unlock()

	video, err := s.gateway.Animate(ctx, img, aspect)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopStatusRotationLocked()

	if err != nil {
		_ = s.setVideoPhase(VideoFailed)
		if gemini.IsEntityNotFound(err) {
			s.creds.Invalidate()
			s.videoError = credentialRejectedMessage
		} else {
			s.videoError = genericVideoFailure
		}
		s.logger.Error("animation failed",
			slog.String("error", err.Error()),
			slog.Bool("credential_rejected", gemini.IsEntityNotFound(err)),
		)
		return artifact.Video{}, err
	}

	s.video = video
	_ = s.setVideoPhase(VideoReady)

	s.logger.Info("animation ready",
		slog.String("path", video.Path),
		slog.String("url", video.URL),
	)

	return video, nil
}

// clearVideoLocked invalidates the current video artifact. A video is
// never valid once its owning image changes or a new animation starts.
// The caller must hold s.mu.
func (s *Session) clearVideoLocked(ctx context.Context) {
	if s.video.IsZero() {
		return
	}
	if s.store != nil && s.video.Path != "" {
		if err := s.store.RemoveVideos(ctx, []string{s.video.Path}); err != nil {
			s.logger.Warn("failed to remove superseded video",
				slog.String("path", s.video.Path),
				slog.String("error", err.Error()),
			)
		}
	}
	s.video = artifact.Video{}
	if s.videoPhase == VideoReady || s.videoPhase == VideoFailed {
		_ = s.setVideoPhase(VideoIdle)
	}
	s.videoError = ""
}

// startStatusRotationLocked begins cycling progress messages on a fixed
// timer. The rotation is purely cosmetic and independent of the actual
// polling cadence. The caller must hold s.mu.
func (s *Session) startStatusRotationLocked() {
	s.statusIndex = 0
	stop := make(chan struct{})
	s.statusStop = stop

	go func() {
		ticker := time.NewTicker(s.rotateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				s.statusIndex = (s.statusIndex + 1) % len(progressMessages)
				s.mu.Unlock()
			}
		}
	}()
}

// stopStatusRotationLocked halts the progress message rotation. It is
// called on every exit path of the animate workflow. The caller must
// hold s.mu.
func (s *Session) stopStatusRotationLocked() {
	if s.statusStop != nil {
		close(s.statusStop)
		s.statusStop = nil
	}
}

// Close releases session resources. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopStatusRotationLocked()
}

// View is a read-only snapshot of the session for the HTTP surface.
type View struct {
	ImagePhase ImagePhase
	VideoPhase VideoPhase

	Image artifact.Image
	Video artifact.Video

	ImageError string
	VideoError string

	// StatusMessage is the current rotating progress message; empty
	// unless an animation is in flight.
	StatusMessage string

	CredentialSelected bool
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		ImagePhase:         s.imagePhase,
		VideoPhase:         s.videoPhase,
		Image:              s.image,
		Video:              s.video,
		ImageError:         s.imageError,
		VideoError:         s.videoError,
		CredentialSelected: s.creds.Selected(),
	}
	if s.videoPhase == VideoGenerating {
		view.StatusMessage = progressMessages[s.statusIndex]
	}
	return view
}
