package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logomotion/logomotion-api/internal/artifact"
	"github.com/logomotion/logomotion-api/internal/credential"
	"github.com/logomotion/logomotion-api/internal/gemini"
	"github.com/logomotion/logomotion-api/internal/generation"
	"github.com/logomotion/logomotion-api/internal/session"
	"github.com/logomotion/logomotion-api/internal/storage"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// pngBytes is a minimal payload with a valid PNG signature.
var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

// stubGateway implements session.Gateway with pluggable behavior.
type stubGateway struct {
	generate func(ctx context.Context, description string) (artifact.Image, error)
	animate  func(ctx context.Context, img artifact.Image, aspect generation.AspectRatio) (artifact.Video, error)
}

func (s *stubGateway) GenerateLogo(ctx context.Context, description string) (artifact.Image, error) {
	if s.generate == nil {
		return artifact.Image{Base64: "aW1n", MIMEType: "image/png"}, nil
	}
	return s.generate(ctx, description)
}

func (s *stubGateway) Animate(ctx context.Context, img artifact.Image, aspect generation.AspectRatio) (artifact.Video, error) {
	if s.animate == nil {
		return artifact.Video{Path: "/tmp/v.mp4", MIMEType: "video/mp4"}, nil
	}
	return s.animate(ctx, img, aspect)
}

func newTestServer(t *testing.T, gw session.Gateway, opts ...HandlerOption) http.Handler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	sess := session.New(gw, credential.NewStore("key-1"), credential.NewStaticSelector("key-1"), store, testLogger)
	t.Cleanup(sess.Close)
	h := NewHandlers(sess, store, testLogger, opts...)
	return NewRouter(h, testLogger, DefaultConfig())
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)
}

func TestGenerateLogo_InvalidJSON(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGenerateLogo_MissingDescription(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGenerateLogo_BlankDescription(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGenerateLogo_Success(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[LogoResponse](t, rec)
	assert.Equal(t, "aW1n", resp.ImageBase64)
	assert.Equal(t, "image/png", resp.MIMEType)
}

func TestGenerateLogo_GatewayFailure(t *testing.T) {
	gw := &stubGateway{
		generate: func(_ context.Context, _ string) (artifact.Image, error) {
			return artifact.Image{}, errors.New("backend down")
		},
	}
	handler := newTestServer(t, gw)

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "GENERATION_FAILED", decodeBody[ErrorResponse](t, rec).Code)
}

func TestUploadLogo_InvalidBase64(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo/upload", UploadLogoRequest{DataBase64: "!!not-base64!!"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestUploadLogo_NotAnImage(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo/upload", UploadLogoRequest{
		DataBase64: base64.StdEncoding.EncodeToString([]byte("plain text")),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestUploadLogo_Success(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodPost, "/logo/upload", UploadLogoRequest{
		Filename:   "logo.png",
		DataBase64: base64.StdEncoding.EncodeToString(pngBytes),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", decodeBody[LogoResponse](t, rec).MIMEType)
}

func TestStartAnimation_NoImage(t *testing.T) {
	handler := newTestServer(t, &stubGateway{}, WithAsyncAnimation(false))

	rec := doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "16:9"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestStartAnimation_InvalidAspectRatio(t *testing.T) {
	handler := newTestServer(t, &stubGateway{}, WithAsyncAnimation(false))

	rec := doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "4:3"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestStartAnimation_Success(t *testing.T) {
	handler := newTestServer(t, &stubGateway{}, WithAsyncAnimation(false))

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "9:16"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "generating", decodeBody[StartAnimationResponse](t, rec).Status)
}

func TestStartAnimation_Conflict(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &stubGateway{
		animate: func(_ context.Context, _ artifact.Image, _ generation.AspectRatio) (artifact.Video, error) {
			close(started)
			<-release
			return artifact.Video{Path: "/tmp/v.mp4"}, nil
		},
	}
	handler := newTestServer(t, gw)

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "16:9"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("background animation never started")
	}

	rec = doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "16:9"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ANIMATION_IN_FLIGHT", decodeBody[ErrorResponse](t, rec).Code)

	// Image replacement is also blocked while the animation runs, so a
	// finished video cannot end up paired with a newer image.
	rec = doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "a fox icon"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ANIMATION_IN_FLIGHT", decodeBody[ErrorResponse](t, rec).Code)

	rec = doRequest(t, handler, http.MethodPost, "/logo/upload", UploadLogoRequest{
		DataBase64: base64.StdEncoding.EncodeToString(pngBytes),
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ANIMATION_IN_FLIGHT", decodeBody[ErrorResponse](t, rec).Code)

	close(release)
}

func TestStartAnimation_FailureSurfacesInSession(t *testing.T) {
	gw := &stubGateway{
		animate: func(_ context.Context, _ artifact.Image, _ generation.AspectRatio) (artifact.Video, error) {
			return artifact.Video{}, errors.New("backend down")
		},
	}
	handler := newTestServer(t, gw, WithAsyncAnimation(false))

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "16:9"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[SessionResponse](t, rec)
	assert.Equal(t, string(session.VideoFailed), resp.VideoPhase)
	assert.Equal(t, "Video animation failed. Please try again.", resp.VideoError)
}

func TestGetSession_Empty(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	rec := doRequest(t, handler, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[SessionResponse](t, rec)
	assert.Equal(t, string(session.ImageIdle), resp.ImagePhase)
	assert.Equal(t, string(session.VideoIdle), resp.VideoPhase)
	assert.Empty(t, resp.ImageBase64)
	assert.Empty(t, resp.VideoBase64)
}

// TestFullWorkflow exercises the complete generate, animate, poll, download
// and materialize path against a fake remote endpoint, with the real client,
// gateway, storage, and session wired together.
func TestFullWorkflow(t *testing.T) {
	videoBytes := []byte("fake-mp4-bytes")
	imageBase64 := base64.StdEncoding.EncodeToString(pngBytes)

	var pollCount atomic.Int64
	var fakeAPI *httptest.Server
	fakeAPI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":predict"):
			fmt.Fprintf(w, `{"predictions":[{"bytesBase64Encoded":%q,"mimeType":"image/png"}]}`, imageBase64)
		case strings.HasSuffix(r.URL.Path, ":predictLongRunning"):
			fmt.Fprint(w, `{"name":"operations/op-e2e"}`)
		case strings.HasSuffix(r.URL.Path, "/operations/op-e2e"):
			if pollCount.Add(1) < 3 {
				fmt.Fprint(w, `{"name":"operations/op-e2e","done":false}`)
				return
			}
			fmt.Fprintf(w, `{"name":"operations/op-e2e","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":%q}}]}}}`,
				fakeAPI.URL+"/files/video.mp4")
		case strings.HasSuffix(r.URL.Path, "/files/video.mp4"):
			_, _ = w.Write(videoBytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer fakeAPI.Close()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	newClient := func() (gemini.Client, error) {
		return gemini.NewClient("key-1", gemini.WithBaseURL(fakeAPI.URL))
	}
	gateway := generation.NewGateway(newClient, store, testLogger,
		generation.WithPollInterval(time.Millisecond),
	)
	sess := session.New(gateway, credential.NewStore("key-1"), credential.NewStaticSelector("key-1"), store, testLogger)
	defer sess.Close()

	handler := NewRouter(NewHandlers(sess, store, testLogger, WithAsyncAnimation(false)), testLogger, DefaultConfig())

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, imageBase64, decodeBody[LogoResponse](t, rec).ImageBase64)

	rec = doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "16:9"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, int64(3), pollCount.Load(), "two pending polls and one terminal poll")

	rec = doRequest(t, handler, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[SessionResponse](t, rec)
	assert.Equal(t, string(session.ImageReady), resp.ImagePhase)
	assert.Equal(t, string(session.VideoReady), resp.VideoPhase)
	assert.Equal(t, imageBase64, resp.ImageBase64)
	assert.Equal(t, base64.StdEncoding.EncodeToString(videoBytes), resp.VideoBase64)
	assert.Equal(t, "video/mp4", resp.VideoMIMEType)
	assert.Empty(t, resp.VideoError)
	assert.True(t, resp.CredentialSelected)
}

// TestFullWorkflow_CredentialRejected verifies the recovery path when the
// remote endpoint rejects the key on submit.
func TestFullWorkflow_CredentialRejected(t *testing.T) {
	imageBase64 := base64.StdEncoding.EncodeToString(pngBytes)

	fakeAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ":predict"):
			fmt.Fprintf(w, `{"predictions":[{"bytesBase64Encoded":%q,"mimeType":"image/png"}]}`, imageBase64)
		case strings.HasSuffix(r.URL.Path, ":predictLongRunning"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer fakeAPI.Close()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	newClient := func() (gemini.Client, error) {
		return gemini.NewClient("bad-key", gemini.WithBaseURL(fakeAPI.URL))
	}
	gateway := generation.NewGateway(newClient, store, testLogger,
		generation.WithPollInterval(time.Millisecond),
	)
	creds := credential.NewStore("bad-key")
	sess := session.New(gateway, creds, credential.NewStaticSelector("bad-key"), store, testLogger)
	defer sess.Close()

	handler := NewRouter(NewHandlers(sess, store, testLogger, WithAsyncAnimation(false)), testLogger, DefaultConfig())

	rec := doRequest(t, handler, http.MethodPost, "/logo", GenerateLogoRequest{Description: "an owl icon"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/animation", StartAnimationRequest{AspectRatio: "16:9"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/session", nil)
	resp := decodeBody[SessionResponse](t, rec)
	assert.Equal(t, string(session.VideoFailed), resp.VideoPhase)
	assert.Contains(t, resp.VideoError, "credential was not accepted")
	assert.False(t, resp.CredentialSelected)
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(t, &stubGateway{})

	req := httptest.NewRequest(http.MethodOptions, "/logo", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}
