// Package agent sends prompts with tool schemas to an Ollama model and
// dispatches the tool calls it answers with.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/rathore/earnings-agent/llm"
	"github.com/rathore/earnings-agent/tools"
)

const DefaultMaxIter = 5

// Agent is immutable after New and safe for concurrent use
type Agent struct {
	client          llm.ChatClient
	registry        *tools.Registry
	defs            []llms.Tool
	model           string
	output          *OutputContract
	maxIter         int
	systemPrompt    string
	inlineToolCalls bool
	log             zerolog.Logger
}

// Config holds agent configuration
type Config struct {
	Model  string
	Tools  []tools.Tool
	Output *OutputContract // Optional: structured output contract

	Endpoint   string
	Proxies    map[string]string
	Timeout    time.Duration
	MaxRetries int

	// MaxIter bounds the number of model round trips in Run
	MaxIter int
	// SystemPrompt is sent first by Run. Empty builds one from the tools.
	SystemPrompt string
	// InlineToolCalls makes Run accept tool calls written as JSON in the
	// message text when the model leaves tool_calls empty.
	InlineToolCalls bool

	Client llm.ChatClient // Optional: inject custom client (for testing)
	Logger zerolog.Logger // zero value discards
}

// ToolCallResult records one dispatched tool call
type ToolCallResult struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    tools.Result   `json:"result"`
}

// InvocationResult bundles everything produced by one invocation.
// ID is always set, including when the model call fails.
type InvocationResult struct {
	ID               string            `json:"id"`
	Message          string            `json:"message,omitempty"`
	ToolCalls        []ToolCallResult  `json:"tool_calls"`
	StructuredOutput *StructuredOutput `json:"structured_output,omitempty"`
	Error            string            `json:"error,omitempty"`
}

func newResult() *InvocationResult {
	return &InvocationResult{ID: uuid.NewString(), ToolCalls: []ToolCallResult{}}
}

// New creates a new agent
func New(cfg Config) (*Agent, error) {
	log := cfg.Logger
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	client := cfg.Client
	if client == nil {
		c, err := llm.NewHTTPClient(llm.HTTPConfig{
			Endpoint:   cfg.Endpoint,
			Proxies:    cfg.Proxies,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		client = c
	}

	registry := tools.NewRegistry()
	for _, t := range cfg.Tools {
		if registry.Register(t) {
			log.Warn().Str("tool", t.Spec().Name).Msg("duplicate tool name, last registration wins")
		}
	}
	specs := registry.Specs()

	a := &Agent{
		client:          client,
		registry:        registry,
		defs:            tools.Definitions(specs),
		model:           cfg.Model,
		output:          cfg.Output,
		maxIter:         cfg.MaxIter,
		systemPrompt:    cfg.SystemPrompt,
		inlineToolCalls: cfg.InlineToolCalls,
		log:             log,
	}
	if a.maxIter <= 0 {
		a.maxIter = DefaultMaxIter
	}
	if a.systemPrompt == "" {
		a.systemPrompt = BuildSystemPrompt(specs, cfg.InlineToolCalls)
	}
	return a, nil
}

// Registry returns the agent's tool registry
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Definitions returns the tool schemas sent with every request
func (a *Agent) Definitions() []llms.Tool {
	return a.defs
}

// Invoke makes exactly one model round trip: the prompt is sent as a single
// user message and every tool call in the answer is dispatched in order.
// Failures are reported inside the result, never returned.
func (a *Agent) Invoke(ctx context.Context, prompt string) *InvocationResult {
	res := newResult()
	log := a.log.With().Str("invocation", res.ID).Logger()

	msg, err := a.chat(ctx, a.request([]llm.Message{{Role: "user", Content: prompt}}))
	if err != nil {
		log.Error().Err(err).Msg("model call failed")
		res.Error = fmt.Sprintf("Failed to invoke model: %v", err)
		return res
	}

	res.Message = msg.Content
	for _, tc := range msg.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, a.dispatch(ctx, log, tc))
	}
	a.parseOutput(res)
	return res
}

// Run loops until the model answers without calling a tool. Tool results are
// fed back as tool messages. ToolCalls accumulates every call of every step.
func (a *Agent) Run(ctx context.Context, prompt string) *InvocationResult {
	res, _ := a.run(ctx, nil, prompt)
	return res
}

func (a *Agent) run(ctx context.Context, history []llm.Message, prompt string) (*InvocationResult, bool) {
	res := newResult()
	log := a.log.With().Str("invocation", res.ID).Logger()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: a.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	for i := 0; i < a.maxIter; i++ {
		msg, err := a.chat(ctx, a.request(messages))
		if err != nil {
			log.Error().Err(err).Int("step", i).Msg("model call failed")
			res.Error = fmt.Sprintf("Failed to invoke model: %v", err)
			return res, false
		}

		calls := msg.ToolCalls
		if len(calls) == 0 && a.inlineToolCalls {
			if tc, ok := llm.ParseInlineToolCall(msg.Content); ok {
				calls = []llm.ToolCall{tc}
			}
		}
		if len(calls) == 0 {
			res.Message = msg.Content
			a.parseOutput(res)
			return res, true
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: msg.Content, ToolCalls: calls})
		for _, tc := range calls {
			call := a.dispatch(ctx, log, tc)
			res.ToolCalls = append(res.ToolCalls, call)
			messages = append(messages, llm.Message{
				Role:     "tool",
				Content:  call.Result.String(),
				ToolName: call.Tool,
			})
		}
	}

	log.Warn().Int("max_iter", a.maxIter).Msg("iteration limit reached")
	res.Error = fmt.Sprintf("max iterations (%d) reached", a.maxIter)
	return res, false
}

// chat calls the client and requires a message in the answer. Injected
// clients are not trusted to uphold that, and a panicking client is
// reported as an error.
func (a *Agent) chat(ctx context.Context, req *llm.ChatRequest) (msg *llm.Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			msg, err = nil, fmt.Errorf("client panicked: %v", p)
		}
	}()
	resp, err := a.client.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Message == nil {
		return nil, errors.New("response has no message")
	}
	return resp.Message, nil
}

func (a *Agent) request(messages []llm.Message) *llm.ChatRequest {
	req := &llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
		Stream:   false,
		Tools:    a.defs,
	}
	if a.output != nil {
		req.Format = json.RawMessage(a.output.Schema)
	}
	return req
}

func (a *Agent) dispatch(ctx context.Context, log zerolog.Logger, tc llm.ToolCall) ToolCallResult {
	name := tc.Function.Name
	args := map[string]any(tc.Function.Arguments)
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	result := a.registry.Dispatch(ctx, name, tools.Args(args))
	ev := log.Debug()
	if !result.OK() {
		ev = log.Warn().Str("kind", string(result.Err.Kind))
	}
	ev.Str("tool", name).Dur("took", time.Since(start)).Msg(truncate(result.String(), 200))

	return ToolCallResult{Tool: name, Arguments: args, Result: result}
}

func (a *Agent) parseOutput(res *InvocationResult) {
	if a.output == nil || res.Message == "" {
		return
	}
	res.StructuredOutput = a.output.structured(res.Message)
}

// Conversation keeps chat history across Run calls. Concurrent Sends are
// serialized.
type Conversation struct {
	agent   *Agent
	mu      sync.Mutex
	history []llm.Message
}

// NewConversation starts an empty conversation
func (a *Agent) NewConversation() *Conversation {
	return &Conversation{agent: a}
}

// Send runs the prompt with the conversation history. Completed exchanges
// are appended to the history; failed ones are dropped.
func (c *Conversation) Send(ctx context.Context, prompt string) *InvocationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.agent.run(ctx, c.history, prompt)
	if ok {
		c.history = append(c.history,
			llm.Message{Role: "user", Content: prompt},
			llm.Message{Role: "assistant", Content: res.Message},
		)
	}
	return res
}

// Clear clears the conversation history
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// Len returns the number of messages in the history
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// truncate cuts s to at most maxLen bytes on a rune boundary
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
