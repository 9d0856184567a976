// Package server provides the HTTP surface for the LogoMotion API.
// It includes handlers, middleware, routes, and DTOs separated from
// domain types.
package server

// GenerateLogoRequest is the HTTP request body for generating a logo.
type GenerateLogoRequest struct {
	// Description is the natural-language description of the logo.
	Description string `json:"description" validate:"required"`
}

// UploadLogoRequest is the HTTP request body for uploading a logo image.
type UploadLogoRequest struct {
	// Filename is an optional name hint for the uploaded file.
	Filename string `json:"filename"`
	// DataBase64 is the base64-encoded file content.
	DataBase64 string `json:"data_base64" validate:"required,base64"`
}

// LogoResponse is the HTTP response carrying the current logo artifact.
type LogoResponse struct {
	// ImageBase64 is the base64-encoded logo image.
	ImageBase64 string `json:"image_base64"`
	// MIMEType is the logo media type.
	MIMEType string `json:"mime_type"`
}

// StartAnimationRequest is the HTTP request body for starting an animation.
type StartAnimationRequest struct {
	// AspectRatio is the requested output shape.
	AspectRatio string `json:"aspect_ratio" validate:"required,oneof=16:9 9:16"`
}

// StartAnimationResponse is the HTTP response after starting an animation.
type StartAnimationResponse struct {
	// Status is the animation sub-machine phase after accepting the request.
	Status string `json:"status"`
}

// SessionResponse is the HTTP response for the session snapshot.
type SessionResponse struct {
	// ImagePhase is the logo sub-machine phase.
	ImagePhase string `json:"image_phase"`
	// VideoPhase is the animation sub-machine phase.
	VideoPhase string `json:"video_phase"`
	// ImageBase64 is the current logo, when one exists.
	ImageBase64 string `json:"image_base64,omitempty"`
	// ImageMIMEType is the logo media type.
	ImageMIMEType string `json:"image_mime_type,omitempty"`
	// VideoBase64 is the finished video content, when ready and local.
	VideoBase64 string `json:"video_base64,omitempty"`
	// VideoURL is the S3 URL of the finished video, when uploaded.
	VideoURL string `json:"video_url,omitempty"`
	// VideoMIMEType is the video media type.
	VideoMIMEType string `json:"video_mime_type,omitempty"`
	// ImageError is the display text of the last logo failure.
	ImageError string `json:"image_error,omitempty"`
	// VideoError is the display text of the last animation failure.
	VideoError string `json:"video_error,omitempty"`
	// StatusMessage is the rotating progress message while animating.
	StatusMessage string `json:"status_message,omitempty"`
	// CredentialSelected reports whether a usable credential is selected.
	CredentialSelected bool `json:"credential_selected"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
