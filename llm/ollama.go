package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Client is a single-prompt text completer backed by langchaingo's Ollama driver
type Client struct {
	llm   llms.Model
	model string
}

// NewClient creates a new Ollama completer. serverURL is the Ollama base URL
// (e.g. http://localhost:11434); empty uses the driver default.
func NewClient(model, serverURL string) (*Client, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &Client{llm: llm, model: model}, nil
}

// Model returns the model name
func (c *Client) Model() string {
	return c.model
}

// Complete sends a single prompt and returns the text answer
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("llm generate failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ParseInlineToolCall extracts a tool call that a model wrote into its text
// answer instead of the tool_calls field, e.g.
// {"name": "add", "parameters": {"a": 1, "b": 2}}.
// Small models do this frequently.
func ParseInlineToolCall(content string) (ToolCall, bool) {
	content = strings.TrimSpace(content)
	idx := strings.Index(content, "{")
	if idx == -1 {
		return ToolCall{}, false
	}
	jsonPart := content[idx:]
	endIdx := findMatchingBrace(jsonPart)
	if endIdx == -1 {
		return ToolCall{}, false
	}

	var call struct {
		Name       string         `json:"name"`
		Tool       string         `json:"tool"`
		Parameters map[string]any `json:"parameters"`
		Params     map[string]any `json:"params"`
		Arguments  map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(jsonPart[:endIdx+1]), &call); err != nil {
		return ToolCall{}, false
	}
	name := call.Name
	if name == "" {
		name = call.Tool
	}
	if name == "" {
		return ToolCall{}, false
	}
	args := call.Parameters
	if args == nil {
		args = call.Params
	}
	if args == nil {
		args = call.Arguments
	}
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{Function: FunctionCall{Name: name, Arguments: args}}, true
}

// findMatchingBrace finds the index of the matching closing brace
func findMatchingBrace(s string) int {
	if len(s) == 0 || s[0] != '{' {
		return -1
	}
	depth := 0
	inString := false
	escape := false
	for i, ch := range s {
		if escape {
			escape = false
			continue
		}
		if ch == '\\' && inString {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if ch == '{' {
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
