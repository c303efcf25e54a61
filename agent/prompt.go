package agent

import (
	"encoding/json"
	"strings"

	"github.com/rathore/earnings-agent/tools"
)

// BuildSystemPrompt creates the system prompt for Run. With inline tool calls
// the tool schemas are spelled out, since the model may not see them as
// native tools.
func BuildSystemPrompt(specs []tools.Spec, inline bool) string {
	var sb strings.Builder
	sb.WriteString(`You are a financial analyst assistant answering questions about bank earnings.

WHEN TO USE TOOLS:
- Reported figures (net income, revenue, assets, deposits, EPS) → use the metric tools
- Unsure which metric names exist → use "list_metrics" first
- Questions about an earnings report file → use "load_document" or "extract_metric"
- Arithmetic on reported figures → use "add" / "multiply"

CRITICAL RULES:
- NEVER fabricate figures - if a tool returns no data, say so
- If a tool returns an error, report it or try a different metric name
- Quote values with their period end date
`)

	if inline && len(specs) > 0 {
		sb.WriteString(`
RESPONSE FORMAT:
- To call a tool: respond with ONLY a JSON object: {"name": "tool_name", "parameters": {...}}
- To give final answer: respond with plain text (no JSON)

Available tools:
`)
		for _, spec := range specs {
			toolJSON, _ := json.MarshalIndent(map[string]any{
				"name":        spec.Name,
				"description": spec.Summary(),
				"parameters":  spec.Parameters(),
			}, "", "  ")
			sb.WriteString("\n")
			sb.Write(toolJSON)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
