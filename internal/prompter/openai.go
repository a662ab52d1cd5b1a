// ABOUTME: OpenAI-compatible chat-completions client implementing Prompter.
// ABOUTME: Plain HTTP client; any endpoint speaking the completions shape works.

package prompter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Docs supplies the live command documentation injected into each prompt.
type Docs interface {
	Docs() string
}

// OpenAI calls a chat-completions endpoint. BaseURL defaults to the public
// OpenAI API; any compatible server can be pointed at instead.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	docs    Docs
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAI creates a client. An empty baseURL targets api.openai.com.
func NewOpenAI(baseURL, apiKey, model string, docs Docs, logger *slog.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		docs:    docs,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("component", "prompter"),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Query builds the monitoring prompt, sends it, and parses the structured
// result.
func (o *OpenAI) Query(ctx context.Context, query string) (*Result, error) {
	prompt := BuildPrompt(query, o.docs.Docs())
	if leftover := UnfilledPlaceholders(prompt); len(leftover) > 0 {
		o.logger.Warn("unknown prompt placeholders", "placeholders", leftover)
	}

	body, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrNoResponse
	}

	return ParseResult(parsed.Choices[0].Message.Content)
}
