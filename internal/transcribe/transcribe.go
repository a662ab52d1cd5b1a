// ABOUTME: Speech-to-text collaborator behind a narrow interface.
// ABOUTME: Default implementation posts audio to a whisper-style HTTP endpoint.

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// ErrPayloadTooLarge indicates the audio exceeds the configured cap.
var ErrPayloadTooLarge = errors.New("audio payload too large")

// Transcriber converts audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// HTTP posts audio as multipart form data to an OpenAI-compatible
// transcriptions endpoint.
type HTTP struct {
	baseURL  string
	apiKey   string
	model    string
	maxBytes int64
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTP creates a client. maxBytes <= 0 disables the size cap.
func NewHTTP(baseURL, apiKey, model string, maxBytes int64, logger *slog.Logger) *HTTP {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    model,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 120 * time.Second},
		logger:   logger.With("component", "transcribe"),
	}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe sends the audio and returns the transcript.
func (h *HTTP) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if h.maxBytes > 0 && int64(len(audio)) > h.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(audio))
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := form.WriteField("model", h.model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("transcription error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription endpoint returned status %d", resp.StatusCode)
	}
	return parsed.Text, nil
}
