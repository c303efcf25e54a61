package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrorKind classifies a failed dispatch
type ErrorKind string

const (
	ErrNotFound        ErrorKind = "not_found"
	ErrFaulted         ErrorKind = "faulted"
	ErrInvalidArgument ErrorKind = "invalid_argument"
)

// CallError is a dispatch failure converted to data
type CallError struct {
	Kind    ErrorKind
	Tool    string
	Message string
}

func (e *CallError) Error() string {
	if e.Kind == ErrNotFound {
		return fmt.Sprintf("Tool %s not found", e.Tool)
	}
	return fmt.Sprintf("Error executing %s: %s", e.Tool, e.Message)
}

// Result is the outcome of one dispatch: either a value or an error
type Result struct {
	Value any
	Err   *CallError
}

func (r Result) OK() bool { return r.Err == nil }

// String renders the result the way it is fed back to the model
func (r Result) String() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	switch v := r.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprint(r.Value)
	}
	return string(b)
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err.Error())
	}
	return json.Marshal(r.Value)
}

// Registry maps tool names to tools and remembers registration order.
// Registering a name twice replaces the earlier tool: the last registration wins
// on lookup while keeping the first registration's position in Specs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding the given tools in order
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool and reports whether it replaced an existing one
func (r *Registry) Register(t Tool) (replaced bool) {
	name := t.Spec().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		replaced = true
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	return replaced
}

// Lookup finds a tool by exact name
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns one spec per registered name, in registration order
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Dispatch runs the named tool. It never returns an error or panics:
// every failure is folded into the Result.
func (r *Registry) Dispatch(ctx context.Context, name string, args Args) (res Result) {
	t, ok := r.Lookup(name)
	if !ok {
		return Result{Err: &CallError{Kind: ErrNotFound, Tool: name}}
	}
	if args == nil {
		args = Args{}
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: &CallError{Kind: ErrFaulted, Tool: name, Message: fmt.Sprint(p)}}
		}
	}()

	value, err := t.Call(ctx, args)
	if err != nil {
		kind := ErrFaulted
		var argErr *ArgError
		if errors.As(err, &argErr) {
			kind = ErrInvalidArgument
		}
		return Result{Err: &CallError{Kind: kind, Tool: name, Message: err.Error()}}
	}
	return Result{Value: value}
}
