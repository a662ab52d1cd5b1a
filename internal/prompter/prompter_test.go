// ABOUTME: Tests for prompt templating and model output parsing.
// ABOUTME: Includes a stub chat-completions server for the HTTP client.

package prompter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("how are the bots?", "!overviewOfBots: summary")

	assert.Contains(t, prompt, "## User Query:\nhow are the bots?")
	assert.Contains(t, prompt, "## Available Commands:\n!overviewOfBots: summary")
	assert.Empty(t, UnfilledPlaceholders(prompt))
}

func TestParseResultFenced(t *testing.T) {
	generation := "```\n{\"text_response\": \"on it\", \"actions\": [{\"name\": \"!overviewOfBots\", \"params\": {}}]}\n```"

	res, err := ParseResult(generation)
	require.NoError(t, err)
	assert.Equal(t, "on it", res.TextResponse)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "!overviewOfBots", res.Actions[0].Name)
}

func TestParseResultLabeledFence(t *testing.T) {
	generation := "```json\n{\"text_response\": \"ok\", \"actions\": []}\n```"

	res, err := ParseResult(generation)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.TextResponse)
	assert.Empty(t, res.Actions)
}

func TestParseResultPlainText(t *testing.T) {
	res, err := ParseResult("Creepers explode when close.")
	require.NoError(t, err)
	assert.Equal(t, "Creepers explode when close.", res.TextResponse)
	assert.Empty(t, res.Actions)
}

func TestParseResultEmpty(t *testing.T) {
	_, err := ParseResult("   ")
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestParseResultBadJSON(t *testing.T) {
	_, err := ParseResult("```\nnot json\n```")
	assert.Error(t, err)
}

type staticDocs string

func (d staticDocs) Docs() string { return string(d) }

func TestOpenAIQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "## User Query:\nstatus?")
		assert.Contains(t, req.Messages[0].Content, "!overviewOfBots")

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{
			Role:    "assistant",
			Content: "```\n{\"text_response\": \"all good\", \"actions\": []}\n```",
		}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "test-key", "gpt-4o-mini", staticDocs("!overviewOfBots: summary"), nil)
	res, err := p.Query(t.Context(), "status?")
	require.NoError(t, err)
	assert.Equal(t, "all good", res.TextResponse)
}

func TestOpenAIQueryModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "nope", "gpt-4o-mini", staticDocs(""), nil)
	_, err := p.Query(t.Context(), "status?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
