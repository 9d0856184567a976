// Package gemini provides an HTTP client for the Google generative-media
// REST API: image prediction, long-running video generation, operation
// polling, and result download.
package gemini

// GeneratedImage is a single image returned by the predict endpoint.
type GeneratedImage struct {
	// Base64 is the base64-encoded image bytes.
	Base64 string
	// MIMEType is the image media type (e.g. "image/png").
	MIMEType string
}

// ImagePayload is a source image attached to a video generation request.
type ImagePayload struct {
	// Base64 is the base64-encoded image bytes.
	Base64 string
	// MIMEType is the image media type.
	MIMEType string
}

// ImageOptions contains parameters for an image generation request.
type ImageOptions struct {
	// SampleCount is the number of images to generate.
	SampleCount int
	// AspectRatio is the output aspect ratio (e.g. "1:1").
	AspectRatio string
	// OutputMIMEType is the requested output encoding.
	OutputMIMEType string
}

// VideoOptions contains parameters for a video generation request.
type VideoOptions struct {
	// SampleCount is the number of videos to generate.
	SampleCount int
	// AspectRatio is the output aspect ratio (e.g. "16:9").
	AspectRatio string
	// Resolution is the output resolution (e.g. "720p").
	Resolution string
}

// Operation is a refreshed handle for a long-running video generation job.
// Done, once true, never reverts; VideoURI and Error are only meaningful
// when Done is true.
type Operation struct {
	// Name is the opaque operation identifier assigned by the service.
	Name string
	// Done reports whether the remote job reached a terminal state.
	Done bool
	// VideoURI is the download location of the generated video, when present.
	VideoURI string
	// Error is the remote failure message, when the job failed.
	Error string
}

// predictRequest is the request body for the :predict endpoint.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

// predictInstance carries the prompt and optional source image.
type predictInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

// inlineImage is an inline base64 image payload.
type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

// predictParameters carries generation options for both image and video
// prediction; zero-valued fields are omitted from the wire.
type predictParameters struct {
	SampleCount    int    `json:"sampleCount,omitempty"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
	OutputMIMEType string `json:"outputMimeType,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
}

// predictResponse is the response from the :predict endpoint.
type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

// prediction is a single generated image.
type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

// operationResponse is the wire form of a long-running operation, returned
// by :predictLongRunning and by operation status queries.
type operationResponse struct {
	Name     string           `json:"name"`
	Done     bool             `json:"done"`
	Response *operationResult `json:"response,omitempty"`
	Error    *operationError  `json:"error,omitempty"`
}

// operationResult nests the generated video samples.
type operationResult struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
}

// generateVideoResponse holds the generated samples.
type generateVideoResponse struct {
	GeneratedSamples []generatedSample `json:"generatedSamples,omitempty"`
}

// generatedSample is one generated video.
type generatedSample struct {
	Video *videoRef `json:"video,omitempty"`
}

// videoRef points at the downloadable video bytes.
type videoRef struct {
	URI string `json:"uri,omitempty"`
}

// operationError is the failure detail of a finished operation.
type operationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// apiErrorResponse is the standard error envelope of the API.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// toOperation maps the wire operation to the public Operation handle.
func (r *operationResponse) toOperation() Operation {
	op := Operation{
		Name: r.Name,
		Done: r.Done,
	}
	if r.Error != nil {
		op.Error = r.Error.Message
	}
	if r.Response != nil && r.Response.GenerateVideoResponse != nil {
		for _, sample := range r.Response.GenerateVideoResponse.GeneratedSamples {
			if sample.Video != nil && sample.Video.URI != "" {
				op.VideoURI = sample.Video.URI
				break
			}
		}
	}
	return op
}
