// Package tts converts job text into WAV audio through a speech server.
//
// Two clients are provided: OpenAISynthesizer speaks the OpenAI-compatible
// /v1/audio/speech API exposed by Kokoro servers, and HTTPClient speaks the
// plain JSON /v1/generate/speech API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tts-worker/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Default values.
const (
	defaultLanguage = "en"
	defaultSpeed    = 1.0
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "%w (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "%w: %s, body: %s"
)

var (
	// ErrTextEmpty indicates a synthesis request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrUnexpectedContentType indicates a response that is not WAV audio.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrEmptyAudio indicates a successful response with no audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrServiceStatus indicates a non-OK response from the speech server.
	ErrServiceStatus = errors.New("TTS service error")
)

// HTTPClient is a client for a standalone TTS HTTP service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	language   string
}

// TTSRequest is the JSON payload of a generation request.
type TTSRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language"`
}

// TTSErrorResponse is the structured error body returned by the service.
type TTSErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for baseURL (e.g. "http://localhost:8000").
// The timeout applies to every request; language defaults to "en".
func NewHTTPClient(baseURL, language string, timeout time.Duration) *HTTPClient {
	if language == "" {
		language = defaultLanguage
	}

	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize implements core.Synthesizer.
func (c *HTTPClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	return c.GenerateSpeech(ctx, TTSRequest{
		Text:     req.Text,
		Voice:    req.Voice,
		Speed:    req.Speed,
		Language: c.language,
	})
}

// GenerateSpeech sends a generation request and returns the WAV bytes.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req TTSRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextEmpty
	}

	if req.Speed <= 0 {
		req.Speed = defaultSpeed
	}

	if req.Language == "" {
		req.Language = c.language
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to TTS service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get(headerContentType))
	if mediaType != contentTypeWAV {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrUnexpectedContentType, contentTypeWAV, mediaType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// HealthCheck returns an error unless the service answers its health
// endpoint with 200.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %s", ErrServiceStatus, resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the
// raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp TTSErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			ErrServiceStatus, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(
		errFmtServiceNonOKStatus,
		ErrServiceStatus,
		resp.Status,
		string(body),
	)
}
