package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestArguments_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Arguments
		wantErr bool
	}{
		{name: "object", input: `{"a": 2, "b": 3}`, want: Arguments{"a": float64(2), "b": float64(3)}},
		{name: "encoded string", input: `"{\"a\": 2}"`, want: Arguments{"a": float64(2)}},
		{name: "empty string", input: `""`, want: Arguments{}},
		{name: "not an object", input: `[1, 2]`, wantErr: true},
		{name: "bad string", input: `"{not json"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Arguments
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatRequest_WireFormat(t *testing.T) {
	req := ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"llama3.2","messages":[{"role":"user","content":"hi"}],"stream":false}`, string(data))

	req.Tools = []llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "add"}}}
	req.Format = json.RawMessage(`{"type":"object"}`)
	data, err = json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "tools")
	assert.Equal(t, map[string]any{"type": "object"}, decoded["format"])
}

func newChatServer(t *testing.T, handler func(w http.ResponseWriter, req ChatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req ChatRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Chat(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, req ChatRequest) {
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "add 2 and 3", req.Messages[0].Content)
		}
		_, _ = io.WriteString(w, `{
			"model": "llama3.2",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"function": {"name": "add", "arguments": {"a": 2, "b": 3}}}]
			},
			"done": true
		}`)
	})

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{{Role: "user", Content: "add 2 and 3"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Message)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "add", resp.Message.ToolCalls[0].Function.Name)
	assert.Equal(t, Arguments{"a": float64(2), "b": float64(3)}, resp.Message.ToolCalls[0].Function.Arguments)
	assert.True(t, resp.Done)
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		substr string
	}{
		{name: "bad status", status: http.StatusBadRequest, body: `{"error":"model not found"}`, substr: "unexpected status 400"},
		{name: "malformed json", status: http.StatusOK, body: `not json`, substr: "failed to decode response"},
		{name: "missing message", status: http.StatusOK, body: `{"done": true}`, substr: "no message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(t, func(w http.ResponseWriter, _ ChatRequest) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL, MaxRetries: 2, RetryBase: time.Millisecond})
			require.NoError(t, err)

			_, err = client.Chat(context.Background(), &ChatRequest{Model: "m"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client, err := NewHTTPClient(HTTPConfig{Endpoint: endpoint})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call")
}

func TestHTTPClient_Retry(t *testing.T) {
	var calls atomic.Int32
	srv := newChatServer(t, func(w http.ResponseWriter, _ ChatRequest) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"message": {"role": "assistant", "content": "ok"}}`)
	})

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL, MaxRetries: 3, RetryBase: time.Millisecond})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), &ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := newChatServer(t, func(w http.ResponseWriter, _ ChatRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &ChatRequest{Model: "m"})
	assert.Error(t, err)
}

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{Endpoint: "not a url"})
	assert.Error(t, err)

	_, err = NewHTTPClient(HTTPConfig{Proxies: map[string]string{"http": "://bad"}})
	assert.Error(t, err)

	c, err := NewHTTPClient(HTTPConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
}

func TestProxyFunc(t *testing.T) {
	proxy, err := proxyFunc(map[string]string{
		"http":  "http://proxy.internal:3128",
		"https": "",
	})
	require.NoError(t, err)

	req := &http.Request{URL: &url.URL{Scheme: "http", Host: "ollama:11434"}}
	u, err := proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "proxy.internal:3128", u.Host)

	req = &http.Request{URL: &url.URL{Scheme: "https", Host: "ollama:11434"}}
	u, err = proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)

	t.Setenv("HTTP_PROXY", "http://env-proxy:8080")
	none, err := proxyFunc(nil)
	require.NoError(t, err)
	u, err = none(&http.Request{URL: &url.URL{Scheme: "http", Host: "ollama:11434"}})
	require.NoError(t, err)
	assert.Nil(t, u)
}
