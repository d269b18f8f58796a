package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
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
	defaultTemperature = 0.75
	defaultLanguage    = "ru"
	maxErrorBodyBytes  = 4096
)

// ErrUnexpectedContentType indicates that the service answered with something other than WAV.
var ErrUnexpectedContentType = errors.New("unexpected content type")

// HTTPConfig configures an HTTPSynthesizer.
type HTTPConfig struct {
	BaseURL       string
	Language      string
	Timeout       time.Duration
	MinAudioBytes int
}

// HTTPSynthesizer calls a standalone TTS HTTP service.
type HTTPSynthesizer struct {
	httpClient    *http.Client
	baseURL       string
	language      string
	minAudioBytes int
}

// TTSRequest is the JSON body of a speech generation request.
type TTSRequest struct {
	Text           string  `json:"text"`
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	Temperature    float64 `json:"temperature"`
}

// TTSErrorResponse is the structured error body returned by the service.
type TTSErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPSynthesizer creates an HTTPSynthesizer. The base URL should include
// the scheme and port (e.g. "http://localhost:8000").
func NewHTTPSynthesizer(cfg HTTPConfig) *HTTPSynthesizer {
	language := cfg.Language
	if language == "" {
		language = defaultLanguage
	}

	return &HTTPSynthesizer{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		language:      language,
		minAudioBytes: cfg.MinAudioBytes,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Synthesize requests speech for text and returns the WAV bytes.
func (c *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(TTSRequest{
		Text:        text,
		Language:    c.language,
		Temperature: defaultTemperature,
	})
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
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrSynthesisTimeout, c.baseURL)
		}

		return nil, fmt.Errorf("%w: failed to send request to TTS service at %s: %w",
			core.ErrSynthesisFailed, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesisFailed, parseErrorResponse(resp))
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, contentTypeWAV) {
		return nil, fmt.Errorf("%w: %w: expected %s, got %s",
			core.ErrSynthesisFailed, ErrUnexpectedContentType, contentTypeWAV, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio data: %w", core.ErrSynthesisFailed, err)
	}

	if len(audioData) == 0 || len(audioData) < c.minAudioBytes {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", core.ErrAudioTooSmall, len(audioData), c.minAudioBytes)
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is up.
func (c *HTTPSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured error, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var errorResp TTSErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf("TTS service error (%s): %s (code: %s)",
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf("TTS service returned non-OK status: %s, body: %s", resp.Status, string(body))
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }

	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
