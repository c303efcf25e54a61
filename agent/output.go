package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// OutputContract describes the JSON document the model must answer with.
// The schema is sent as the request's format constraint and the answer is
// validated against it.
type OutputContract struct {
	Name   string
	Schema json.RawMessage
	// Repair fixes common LLM JSON mistakes (trailing commas, single quotes,
	// markdown fences) before validation.
	Repair bool

	schema *gojsonschema.Schema
}

// NewOutputContract compiles a JSON schema
func NewOutputContract(name string, schema json.RawMessage) (*OutputContract, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", name, err)
	}
	return &OutputContract{Name: name, Schema: schema, schema: compiled}, nil
}

// ContractFor reflects an output contract from a Go struct. Field names follow
// the json tags; `jsonschema:"..."` tags add descriptions and constraints.
func ContractFor[T any]() (*OutputContract, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(new(T))
	s.Version = ""
	s.ID = ""

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	var zero T
	return NewOutputContract(fmt.Sprintf("%T", zero), data)
}

// Parse decodes and validates a model answer against the contract
func (c *OutputContract) Parse(text string) (any, error) {
	text = strings.TrimSpace(text)
	if c.Repair {
		repaired, err := jsonrepair.RepairJSON(text)
		if err == nil {
			text = repaired
		}
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	schema := c.schema
	if schema == nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(c.Schema))
		if err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
		schema = compiled
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.New(strings.Join(msgs, "; "))
	}
	return value, nil
}

// StructuredOutput holds either the validated value or the reason parsing failed
type StructuredOutput struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func (c *OutputContract) structured(text string) *StructuredOutput {
	value, err := c.Parse(text)
	if err != nil {
		return &StructuredOutput{Error: fmt.Sprintf("Failed to parse structured output: %v", err)}
	}
	return &StructuredOutput{Value: value}
}
