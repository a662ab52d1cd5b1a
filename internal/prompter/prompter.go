// ABOUTME: Monitor prompter collaborator: turns an operator query into a chat
// ABOUTME: reply plus structured actions via an OpenAI-compatible endpoint.

package prompter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/minefleet/fleet-hub/internal/command"
)

// ErrNoResponse indicates the model returned no usable completion.
var ErrNoResponse = errors.New("no response from model")

// Result is the parsed model output: a chat reply and zero or more actions
// for the dispatch pipeline.
type Result struct {
	TextResponse string           `json:"text_response"`
	Actions      []command.Action `json:"actions"`
}

// Prompter answers operator monitor queries.
type Prompter interface {
	Query(ctx context.Context, query string) (*Result, error)
}

// monitoringPrompt is the system prompt template. $QUERY and $COMMAND_DOCS
// are filled per request.
const monitoringPrompt = `You are a smart AI assistant which is good at managing the bots in Minecraft, via calling the commands listed below. You can also answer general questions about Minecraft.

$QUERY

$COMMAND_DOCS

## Output Format

The result should be formatted in **JSON** dictionary and enclosed in **triple backticks** without labels like "json", "css", or "data".
- **Do not** generate redundant content other than the result in JSON format.
- **Do not** use triple backticks anywhere else in your answer.
- The JSON must include keys:
    - "text_response": a JSON string for the response to the user in chat.
    - "actions": whose value is a list of command dictionaries, and each command dictionary must include:
        - "name": the command name, one of the supported commands
        - "params": a dictionary of parameters for the command, with parameter names as keys and parameter values as values. If no parameters, use an empty dictionary {}.
`

var placeholderPattern = regexp.MustCompile(`\$[A-Z_]+`)

// BuildPrompt fills the monitoring template with the query and the
// catalog's command docs.
func BuildPrompt(query, commandDocs string) string {
	prompt := monitoringPrompt
	prompt = strings.ReplaceAll(prompt, "$QUERY", "## User Query:\n"+query+"\n")
	prompt = strings.ReplaceAll(prompt, "$COMMAND_DOCS", "## Available Commands:\n"+commandDocs)
	return strings.TrimSpace(prompt)
}

// UnfilledPlaceholders returns any $WORD placeholders left in a prompt.
func UnfilledPlaceholders(prompt string) []string {
	return placeholderPattern.FindAllString(prompt, -1)
}

// ParseResult extracts the triple-backtick JSON block from a model
// generation and decodes it. A generation with no code fence is treated as
// a plain text reply with no actions.
func ParseResult(generation string) (*Result, error) {
	block := extractFenced(generation)
	if block == "" {
		text := strings.TrimSpace(generation)
		if text == "" {
			return nil, ErrNoResponse
		}
		return &Result{TextResponse: text}, nil
	}

	var res Result
	if err := json.Unmarshal([]byte(block), &res); err != nil {
		return nil, fmt.Errorf("decoding model output: %w", err)
	}
	return &res, nil
}

// extractFenced returns the content of the first triple-backtick block,
// tolerating a leading language label.
func extractFenced(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	rest := s[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	block := rest[:end]
	if nl := strings.IndexByte(block, '\n'); nl >= 0 {
		label := strings.TrimSpace(block[:nl])
		if label == "json" || label == "css" || label == "data" {
			block = block[nl+1:]
		}
	}
	return strings.TrimSpace(block)
}
