package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
)

const (
	DefaultEndpoint = "http://localhost:11434/api/chat"
	DefaultTimeout  = 120 * time.Second
)

// ChatClient interface for LLM interactions (allows mocking in tests)
type ChatClient interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Message represents a chat message
type Message struct {
	Role      string     `json:"role"` // system, user, assistant, tool
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

// ToolCall is a model-originated instruction to run a tool
type ToolCall struct {
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments"`
}

// Arguments are the decoded tool call arguments. Ollama sends an object;
// OpenAI-compatible servers send a JSON-encoded string. Both are accepted.
type Arguments map[string]any

func (a *Arguments) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*a = Arguments{}
			return nil
		}
		data = []byte(s)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("tool call arguments: %w", err)
	}
	*a = m
	return nil
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []llms.Tool     `json:"tools,omitempty"`
	Format   json.RawMessage `json:"format,omitempty"`
}

// ChatResponse is the non-streaming reply of /api/chat
type ChatResponse struct {
	Model      string   `json:"model"`
	Message    *Message `json:"message"`
	Done       bool     `json:"done"`
	DoneReason string   `json:"done_reason,omitempty"`
}

// StatusError reports a non-2xx reply
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPConfig configures HTTPClient
type HTTPConfig struct {
	Endpoint string
	// Proxies maps a URL scheme to a proxy URL. Schemes that are missing or
	// map to "" connect directly; proxy environment variables are ignored.
	Proxies    map[string]string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
	Logger     zerolog.Logger
}

// HTTPClient talks to an Ollama-compatible /api/chat endpoint
type HTTPClient struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryBase  time.Duration
	log        zerolog.Logger
}

var _ ChatClient = (*HTTPClient)(nil)

// NewHTTPClient creates a chat client
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	proxy, err := proxyFunc(cfg.Proxies)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retryBase := cfg.RetryBase
	if retryBase == 0 {
		retryBase = 500 * time.Millisecond
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy

	return &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Transport: transport, Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		retryBase:  retryBase,
		log:        cfg.Logger,
	}, nil
}

func proxyFunc(proxies map[string]string) (func(*http.Request) (*url.URL, error), error) {
	parsed := make(map[string]*url.URL, len(proxies))
	for scheme, raw := range proxies {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s proxy %q: %w", scheme, raw, err)
		}
		parsed[scheme] = u
	}
	return func(req *http.Request) (*url.URL, error) {
		return parsed[req.URL.Scheme], nil
	}, nil
}

// Chat sends one request. Transient failures (network errors, 429, 5xx) are
// retried with exponential backoff up to MaxRetries times.
func (c *HTTPClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp *ChatResponse
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := c.post(ctx, body)
		if err != nil {
			if isTransient(err) {
				c.log.Debug().Err(err).Int("attempt", attempt).Msg("chat request failed")
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (*ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", c.endpoint, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	var resp ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Message == nil {
		return nil, errors.New("response has no message")
	}
	return &resp, nil
}

func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
