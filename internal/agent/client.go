package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ModelClient is the chat-completion service boundary. The request and
// response shapes follow the OpenAI wire protocol; streaming responses are
// returned as the raw SSE body for the relay to decode.
type ModelClient interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	Stream(ctx context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error)
}

// ChatClient calls an OpenAI-compatible chat-completions endpoint.
type ChatClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewChatClient creates a model client for the given endpoint. The base URL
// is the API root (e.g. https://api.openai.com/v1). No client-side timeout is
// set; streamed completions are bounded by the transport only.
func NewChatClient(baseURL, apiKey string) *ChatClient {
	return &ChatClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

// Complete performs a single-shot (non-streaming) completion.
func (c *ChatClient) Complete(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return &out, nil
}

// Stream starts a streaming completion and returns the raw SSE body. The
// caller owns closing it.
func (c *ChatClient) Stream(ctx context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

func (c *ChatClient) post(ctx context.Context, req openai.ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call chat-completion service: %w", err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("chat-completion service returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
}
