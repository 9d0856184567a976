package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// entityNotFoundSignature is the message the API returns when the
// supplied credential cannot access the requested model. Callers match
// on it to distinguish a rejected credential from other failures.
const entityNotFoundSignature = "Requested entity was not found"

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("gemini: API key is required")
	// ErrOperationNameRequired is returned when the operation name is not provided.
	ErrOperationNameRequired = errors.New("gemini: operation name is required")
	// ErrNoOperationName is returned when the submit response contains no operation name.
	ErrNoOperationName = errors.New("gemini: submit failed: no operation name returned")
	// ErrRequestFailed is returned when a request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("gemini: request failed")
	// ErrDownloadFailed is returned when a file download does not succeed.
	ErrDownloadFailed = errors.New("gemini: download failed")
)

// Client defines the interface for interacting with the generative-media API.
type Client interface {
	// GenerateImages requests images for a prompt and returns them inline.
	GenerateImages(ctx context.Context, model, prompt string, opts ImageOptions) ([]GeneratedImage, error)

	// GenerateVideos submits a long-running video generation job and
	// returns its initial operation handle.
	GenerateVideos(ctx context.Context, model, prompt string, image ImagePayload, opts VideoOptions) (Operation, error)

	// GetOperation queries a job's status and returns the refreshed handle.
	GetOperation(ctx context.Context, name string) (Operation, error)

	// DownloadFile fetches the bytes at a result URI, authenticating with
	// the client's API key as a query parameter.
	DownloadFile(ctx context.Context, uri string) ([]byte, error)
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// NewClient creates a new Gemini HTTP client bound to the given API key.
// The binding is cheap to construct; callers that need a credential
// refreshed between calls build a fresh client per call.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		apiKey:     apiKey,
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateImages requests images for a prompt via the :predict endpoint.
func (c *HTTPClient) GenerateImages(ctx context.Context, model, prompt string, opts ImageOptions) ([]GeneratedImage, error) {
	if opts.SampleCount <= 0 {
		opts.SampleCount = 1
	}

	reqBody := predictRequest{
		Instances: []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{
			SampleCount:    opts.SampleCount,
			AspectRatio:    opts.AspectRatio,
			OutputMIMEType: opts.OutputMIMEType,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:predict", c.baseURL, url.PathEscape(model))

	var resp predictResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, reqBody, &resp); err != nil {
		return nil, err
	}

	images := make([]GeneratedImage, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		mimeType := p.MIMEType
		if mimeType == "" {
			mimeType = opts.OutputMIMEType
		}
		images = append(images, GeneratedImage{
			Base64:   p.BytesBase64Encoded,
			MIMEType: mimeType,
		})
	}

	return images, nil
}

// GenerateVideos submits a video generation job via :predictLongRunning.
func (c *HTTPClient) GenerateVideos(ctx context.Context, model, prompt string, image ImagePayload, opts VideoOptions) (Operation, error) {
	if opts.SampleCount <= 0 {
		opts.SampleCount = 1
	}

	reqBody := predictRequest{
		Instances: []predictInstance{{
			Prompt: prompt,
			Image: &inlineImage{
				BytesBase64Encoded: image.Base64,
				MIMEType:           image.MIMEType,
			},
		}},
		Parameters: predictParameters{
			SampleCount: opts.SampleCount,
			AspectRatio: opts.AspectRatio,
			Resolution:  opts.Resolution,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, url.PathEscape(model))

	var resp operationResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, reqBody, &resp); err != nil {
		return Operation{}, err
	}

	if resp.Name == "" {
		return Operation{}, ErrNoOperationName
	}

	return resp.toOperation(), nil
}

// GetOperation queries the status of a long-running operation by name.
func (c *HTTPClient) GetOperation(ctx context.Context, name string) (Operation, error) {
	if name == "" {
		return Operation{}, ErrOperationNameRequired
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(name, "/"))

	var resp operationResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return Operation{}, err
	}

	return resp.toOperation(), nil
}

// DownloadFile fetches the bytes at a result URI. The API key is appended
// as a query parameter; a non-2xx status fails with ErrDownloadFailed.
func (c *HTTPClient) DownloadFile(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: create download request: %w", err)
	}

	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrDownloadFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}

	return data, nil
}

// doJSON performs a single JSON request against the API. The API key is
// sent as the "key" query parameter. No retries: failures surface to the
// caller directly.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gemini: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("gemini: unmarshal response: %w", err)
		}
	}

	return nil
}

// IsEntityNotFound reports whether err carries the API's
// entity-not-found message, the signature of a rejected credential.
func IsEntityNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), entityNotFoundSignature)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
