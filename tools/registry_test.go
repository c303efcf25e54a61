package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTool is a simple tool for testing
type MockTool struct {
	name       string
	result     any
	err        error
	panicWith  any
	callCount  int
	lastParams Args
}

func (m *MockTool) Spec() Spec {
	return Spec{Name: m.name, Params: []Param{{Name: "input"}}}
}

func (m *MockTool) Call(ctx context.Context, args Args) (any, error) {
	m.callCount++
	m.lastParams = args
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	return m.result, m.err
}

func TestRegistry_Dispatch(t *testing.T) {
	reg := NewRegistry(NewAdd())

	res := reg.Dispatch(context.Background(), "add", Args{"a": float64(2), "b": float64(3)})
	require.True(t, res.OK())
	assert.EqualValues(t, 5, res.Value)
	assert.Equal(t, "5", res.String())
}

func TestRegistry_NotFound(t *testing.T) {
	reg := NewRegistry()

	res := reg.Dispatch(context.Background(), "missing_tool", Args{})
	require.False(t, res.OK())
	assert.Equal(t, ErrNotFound, res.Err.Kind)
	assert.Equal(t, "Tool missing_tool not found", res.String())
}

func TestRegistry_Faulted(t *testing.T) {
	failing := &MockTool{name: "failing", err: errors.New("tool exploded")}
	reg := NewRegistry(failing)

	res := reg.Dispatch(context.Background(), "failing", nil)
	require.False(t, res.OK())
	assert.Equal(t, ErrFaulted, res.Err.Kind)
	assert.Equal(t, "Error executing failing: tool exploded", res.String())
	assert.Equal(t, 1, failing.callCount)
	assert.NotNil(t, failing.lastParams, "nil args are replaced by an empty map")
}

func TestRegistry_Panic(t *testing.T) {
	reg := NewRegistry(&MockTool{name: "boom", panicWith: "index out of range"})

	var res Result
	require.NotPanics(t, func() {
		res = reg.Dispatch(context.Background(), "boom", Args{})
	})
	assert.Equal(t, ErrFaulted, res.Err.Kind)
	assert.Equal(t, "Error executing boom: index out of range", res.String())
}

func TestRegistry_InvalidArgument(t *testing.T) {
	reg := NewRegistry(NewAdd())

	res := reg.Dispatch(context.Background(), "add", Args{"a": "two", "b": 3})
	require.False(t, res.OK())
	assert.Equal(t, ErrInvalidArgument, res.Err.Kind)
	assert.Contains(t, res.String(), "Error executing add: invalid argument \"a\"")
}

func TestRegistry_DuplicateLastWins(t *testing.T) {
	first := &MockTool{name: "lookup", result: "first"}
	other := &MockTool{name: "other", result: "other"}
	second := &MockTool{name: "lookup", result: "second"}

	reg := NewRegistry(first, other)
	assert.True(t, reg.Register(second))

	res := reg.Dispatch(context.Background(), "lookup", Args{})
	assert.Equal(t, "second", res.Value)
	assert.Equal(t, 0, first.callCount)
	assert.Equal(t, 1, second.callCount)

	specs := reg.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "lookup", specs[0].Name)
	assert.Equal(t, "other", specs[1].Name)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_ConcurrentDispatch(t *testing.T) {
	reg := NewRegistry(NewAdd(), NewMultiply())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := reg.Dispatch(context.Background(), "add", Args{"a": i, "b": 1})
			assert.EqualValues(t, i+1, res.Value)
		}(i)
	}
	wg.Wait()
}

func TestResult_JSON(t *testing.T) {
	ok, err := json.Marshal(Result{Value: map[string]int{"x": 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(ok))

	failed, err := json.Marshal(Result{Err: &CallError{Kind: ErrNotFound, Tool: "nope"}})
	require.NoError(t, err)
	assert.Equal(t, `"Tool nope not found"`, string(failed))

	assert.Equal(t, `{"x":1}`, Result{Value: map[string]int{"x": 1}}.String())
	assert.Equal(t, "", Result{}.String())
}
