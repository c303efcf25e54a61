package llm

import (
	"testing"
)

func TestParseInlineToolCall_Valid(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantTool string
		wantArgs map[string]any
	}{
		{
			name:     "simple tool call",
			content:  `{"name": "list_metrics", "parameters": {"company": "JPM"}}`,
			wantTool: "list_metrics",
			wantArgs: map[string]any{"company": "JPM"},
		},
		{
			name:     "tool call with tool key",
			content:  `{"tool": "metric_trend", "parameters": {"company": "WFC", "metric": "Assets"}}`,
			wantTool: "metric_trend",
			wantArgs: map[string]any{"company": "WFC", "metric": "Assets"},
		},
		{
			name:     "tool call with params key",
			content:  `{"name": "add", "params": {"a": 2, "b": 3}}`,
			wantTool: "add",
			wantArgs: map[string]any{"a": float64(2), "b": float64(3)},
		},
		{
			name:     "tool call with arguments key",
			content:  `{"name": "add", "arguments": {"a": 1, "b": 1}}`,
			wantTool: "add",
			wantArgs: map[string]any{"a": float64(1), "b": float64(1)},
		},
		{
			name:     "tool call with surrounding text",
			content:  `Let me check. {"name": "list_metrics", "parameters": {"company": "C"}} Done.`,
			wantTool: "list_metrics",
			wantArgs: map[string]any{"company": "C"},
		},
		{
			name:     "tool call without parameters",
			content:  "Calling:\n{\"name\": \"list_metrics\"}",
			wantTool: "list_metrics",
			wantArgs: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, ok := ParseInlineToolCall(tt.content)
			if !ok {
				t.Fatal("expected tool call, got none")
			}
			if tc.Function.Name != tt.wantTool {
				t.Errorf("tool name = %q, want %q", tc.Function.Name, tt.wantTool)
			}
			if len(tc.Function.Arguments) != len(tt.wantArgs) {
				t.Errorf("got %d arguments, want %d", len(tc.Function.Arguments), len(tt.wantArgs))
			}
			for key, want := range tt.wantArgs {
				got, ok := tc.Function.Arguments[key]
				if !ok {
					t.Errorf("missing argument %q", key)
					continue
				}
				if got != want {
					t.Errorf("argument %q = %v, want %v", key, got, want)
				}
			}
		})
	}
}

func TestParseInlineToolCall_NotACall(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain answer", "JPMorgan reported net income of $14.0 billion."},
		{"unterminated json", `{"name": "add", "parameters": {"a": 1`},
		{"invalid json", `{name: add}`},
		{"json without name", `{"revenue": 42}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tc, ok := ParseInlineToolCall(tt.content); ok {
				t.Errorf("expected no tool call, got %+v", tc)
			}
		})
	}
}

func TestFindMatchingBrace(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"{}", 1},
		{`{"a": 1}`, 7},
		{`{"a": {"b": 2}}`, 14},
		{`{"a": "}"}`, 9},
		{`{"a": "\"}"}`, 11},
		{`{"a": 1`, -1},
		{"", -1},
		{"abc", -1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := findMatchingBrace(tt.input); got != tt.want {
				t.Errorf("findMatchingBrace(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("llama3.2", "http://localhost:11434")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Model() != "llama3.2" {
		t.Errorf("Model() = %q", c.Model())
	}
}
