package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/logomotion/logomotion-api/internal/artifact"
	"github.com/logomotion/logomotion-api/internal/generation"
	"github.com/logomotion/logomotion-api/internal/session"
	"github.com/logomotion/logomotion-api/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	session            *session.Session
	store              storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncAnimate bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncAnimation enables or disables background animation. When
// disabled, StartAnimation runs the whole workflow before responding,
// which tests use to avoid goroutine timing.
func WithAsyncAnimation(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncAnimate = enabled
	}
}

// NewHandlers creates a new Handlers instance. The storage is used to
// serve finished video content from GET /session.
func NewHandlers(sess *session.Session, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		session:            sess,
		store:              store,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncAnimate: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GenerateLogo handles POST /logo requests. The generation is a single
// remote round trip, so the handler waits for it and returns the artifact.
func (h *Handlers) GenerateLogo(w http.ResponseWriter, r *http.Request) {
	var req GenerateLogoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	img, err := h.session.GenerateLogo(r.Context(), req.Description)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyDescription):
			writeError(w, http.StatusBadRequest, "description must not be empty", "VALIDATION_ERROR")
		case errors.Is(err, session.ErrGenerationInFlight):
			writeError(w, http.StatusConflict, "logo generation already in progress", "GENERATION_IN_FLIGHT")
		case errors.Is(err, session.ErrAnimationInFlight):
			writeError(w, http.StatusConflict, "animation already in progress", "ANIMATION_IN_FLIGHT")
		default:
			h.logger.Error("logo generation failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "logo generation failed", "GENERATION_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusOK, LogoResponse{
		ImageBase64: img.Base64,
		MIMEType:    img.MIMEType,
	})
}

// UploadLogo handles POST /logo/upload requests. Validation and
// conversion are entirely local; no remote endpoint is contacted.
func (h *Handlers) UploadLogo(w http.ResponseWriter, r *http.Request) {
	var req UploadLogoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.DataBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 content", "VALIDATION_ERROR")
		return
	}

	img, err := h.session.UploadLogo(r.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNotAnImage), errors.Is(err, artifact.ErrEmptyUpload):
			writeError(w, http.StatusBadRequest, "uploaded file must be an image", "VALIDATION_ERROR")
		case errors.Is(err, session.ErrGenerationInFlight):
			writeError(w, http.StatusConflict, "logo generation already in progress", "GENERATION_IN_FLIGHT")
		case errors.Is(err, session.ErrAnimationInFlight):
			writeError(w, http.StatusConflict, "animation already in progress", "ANIMATION_IN_FLIGHT")
		default:
			h.logger.Error("logo upload failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to store uploaded logo", "UPLOAD_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusOK, LogoResponse{
		ImageBase64: img.Base64,
		MIMEType:    img.MIMEType,
	})
}

// StartAnimation handles POST /animation requests. The animate workflow
// is long-running, so it is started in the background with a detached
// context and its progress is observed through GET /session.
func (h *Handlers) StartAnimation(w http.ResponseWriter, r *http.Request) {
	var req StartAnimationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	aspect := generation.AspectRatio(req.AspectRatio)

	// Reject obviously invalid requests before detaching. The session
	// re-checks under its own lock.
	view := h.session.Snapshot()
	if view.Image.IsZero() {
		writeError(w, http.StatusBadRequest, "no logo image to animate", "VALIDATION_ERROR")
		return
	}
	if view.VideoPhase == session.VideoAwaitingCredential || view.VideoPhase == session.VideoGenerating {
		writeError(w, http.StatusConflict, "animation already in progress", "ANIMATION_IN_FLIGHT")
		return
	}

	if h.enableAsyncAnimate {
		// Use context.WithoutCancel so the workflow survives the request.
		go func(ctx context.Context) {
			if _, err := h.session.Animate(ctx, aspect); err != nil {
				h.logger.Error("background animation failed",
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()))
	} else {
		if _, err := h.session.Animate(r.Context(), aspect); err != nil {
			switch {
			case errors.Is(err, session.ErrNoImage):
				writeError(w, http.StatusBadRequest, "no logo image to animate", "VALIDATION_ERROR")
				return
			case errors.Is(err, session.ErrAnimationInFlight):
				writeError(w, http.StatusConflict, "animation already in progress", "ANIMATION_IN_FLIGHT")
				return
			default:
				writeError(w, http.StatusBadGateway, "animation failed", "ANIMATION_FAILED")
				return
			}
		}
	}

	h.logger.Info("animation started",
		slog.String("aspect_ratio", req.AspectRatio),
	)

	writeJSON(w, http.StatusAccepted, StartAnimationResponse{
		Status: string(session.VideoGenerating),
	})
}

// GetSession handles GET /session requests. It returns the orchestrator
// snapshot the UI renders: phases, artifacts, errors, progress message.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	view := h.session.Snapshot()

	resp := SessionResponse{
		ImagePhase:         string(view.ImagePhase),
		VideoPhase:         string(view.VideoPhase),
		ImageError:         view.ImageError,
		VideoError:         view.VideoError,
		StatusMessage:      view.StatusMessage,
		CredentialSelected: view.CredentialSelected,
	}

	if !view.Image.IsZero() {
		resp.ImageBase64 = view.Image.Base64
		resp.ImageMIMEType = view.Image.MIMEType
	}

	// Include video content when ready
	if view.VideoPhase == session.VideoReady && !view.Video.IsZero() {
		resp.VideoMIMEType = view.Video.MIMEType
		if view.Video.URL != "" {
			resp.VideoURL = view.Video.URL
		} else if view.Video.Path != "" && h.store != nil {
			if data, err := h.readVideo(r.Context(), view.Video.Path); err != nil {
				h.logger.Error("failed to read video file",
					slog.String("path", view.Video.Path),
					slog.String("error", err.Error()),
				)
				// Don't fail the request, just log and omit video
			} else {
				resp.VideoBase64 = base64.StdEncoding.EncodeToString(data)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// readVideo loads a finished video's bytes through the storage port.
func (h *Handlers) readVideo(ctx context.Context, path string) ([]byte, error) {
	rc, err := h.store.OpenVideo(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
