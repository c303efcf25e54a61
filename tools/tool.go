package tools

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Tool defines the interface for agent tools
type Tool interface {
	Spec() Spec
	Call(ctx context.Context, args Args) (any, error)
}

// ParamType is the JSON schema type advertised for a parameter
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
)

// Param describes one named tool parameter.
// A parameter without a default is required; set Optional when the tool
// supplies its own default.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Optional    bool
}

// Spec is the hand-authored description of a tool
type Spec struct {
	Name        string
	Description string
	Params      []Param
}

// Summary returns the first line of the description, or "Function <name>"
func (s Spec) Summary() string {
	line, _, _ := strings.Cut(strings.TrimSpace(s.Description), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "Function " + s.Name
	}
	return line
}

// Required lists the names of parameters lacking a default, in declaration order
func (s Spec) Required() []string {
	required := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return required
}

// Parameters builds the JSON schema object for the tool arguments
func (s Spec) Parameters() map[string]any {
	properties := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		desc := p.Description
		if desc == "" {
			desc = "Parameter " + p.Name
		}
		properties[p.Name] = map[string]any{
			"type":        string(normalizeType(p.Type)),
			"description": desc,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   s.Required(),
	}
}

// Definition returns the function-calling schema sent to the model
func (s Spec) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        s.Name,
			Description: s.Summary(),
			Parameters:  s.Parameters(),
		},
	}
}

func normalizeType(t ParamType) ParamType {
	switch t {
	case TypeInteger, TypeNumber, TypeBoolean, TypeArray:
		return t
	default:
		return TypeString
	}
}

// Func adapts a plain function to the Tool interface
type Func struct {
	spec Spec
	fn   func(ctx context.Context, args Args) (any, error)
}

var _ Tool = (*Func)(nil)

// New creates a tool from a spec and an implementation
func New(spec Spec, fn func(ctx context.Context, args Args) (any, error)) *Func {
	return &Func{spec: spec, fn: fn}
}

func (f *Func) Spec() Spec { return f.spec }

func (f *Func) Call(ctx context.Context, args Args) (any, error) {
	return f.fn(ctx, args)
}

// Definitions returns the model-facing schema of each tool, in order
func Definitions(specs []Spec) []llms.Tool {
	defs := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, s.Definition())
	}
	return defs
}
