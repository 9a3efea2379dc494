// Package llm provides a client for an OpenAI-compatible chat-completion provider (OpenRouter by default).
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkwell-go/internal/config"

	"github.com/sashabaranov/go-openai"
)

const (
	// MinTemperature and MaxTemperature bound what OpenAI-compatible providers accept.
	MinTemperature = 0.0
	MaxTemperature = 2.0

	maxErrorBodyBytes = 4 << 10
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting returned by the provider, normally only on the final chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// normalize keeps total = prompt + completion.
func (u *Usage) normalize() {
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

// Options controls one completion call. Zero values fall back to the configured defaults.
type Options struct {
	Model       string
	Temperature *float64
}

// Completion is the result of a non-streaming call.
type Completion struct {
	Message Message
	Model   string
	Usage   *Usage
}

// ChunkStream is a finite, non-restartable sequence of text fragments.
// Recv returns io.EOF once the sequence is exhausted; Usage is meaningful only after that.
type ChunkStream interface {
	Recv() (string, error)
	Usage() *Usage
	Close() error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete issues one non-streaming completion.
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
	// Stream opens a streaming completion; the caller must Close the returned stream.
	Stream(ctx context.Context, messages []Message, opts Options) (ChunkStream, error)
	// ResolveModel returns the model that will be used for opts.
	ResolveModel(opts Options) string
}

type openRouterClient struct {
	cfg     config.LLMConfig
	http    *http.Client
	openai  *openai.Client
	timeout time.Duration
}

// NewClient creates a client for the provider described by cfg.
func NewClient(cfg config.LLMConfig) Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewClientWithHTTP is NewClient with a caller-supplied http.Client (tests, custom transports).
// The http.Client must not set a Timeout, since streaming responses stay open for the whole reply.
func NewClientWithHTTP(cfg config.LLMConfig, httpClient *http.Client) Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &attributionDoer{base: httpClient, referer: cfg.Referer, title: cfg.Title}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openRouterClient{
		cfg:     cfg,
		http:    httpClient,
		openai:  openai.NewClientWithConfig(oc),
		timeout: timeout,
	}
}

// attributionDoer adds the OpenRouter attribution headers to every outgoing request.
type attributionDoer struct {
	base    *http.Client
	referer string
	title   string
}

func (d *attributionDoer) Do(req *http.Request) (*http.Response, error) {
	if d.referer != "" {
		req.Header.Set("HTTP-Referer", d.referer)
	}
	if d.title != "" {
		req.Header.Set("X-Title", d.title)
	}
	return d.base.Do(req)
}

func (c *openRouterClient) ResolveModel(opts Options) string {
	if m := strings.TrimSpace(opts.Model); m != "" {
		return m
	}
	return c.cfg.Model
}

func (c *openRouterClient) resolveTemperature(opts Options) float64 {
	t := c.cfg.Temperature
	if opts.Temperature != nil {
		t = *opts.Temperature
	}
	return ClampTemperature(t)
}

// ClampTemperature bounds t to [MinTemperature, MaxTemperature].
func ClampTemperature(t float64) float64 {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// Complete calls the chat completions endpoint without streaming.
func (c *openRouterClient) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}
	model := c.ResolveModel(opts)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(c.resolveTemperature(opts)),
	})
	if err != nil {
		return nil, toUpstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Body: "provider returned no choices"}
	}

	choice := resp.Choices[0].Message
	// A response without a usage object decodes to all zeros; report that as unknown.
	var usage *Usage
	if resp.Usage.PromptTokens != 0 || resp.Usage.CompletionTokens != 0 || resp.Usage.TotalTokens != 0 {
		usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
		usage.normalize()
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &Completion{
		Message: Message{Role: choice.Role, Content: choice.Content},
		Model:   model,
		Usage:   usage,
	}, nil
}

// toUpstreamError maps go-openai's error types onto UpstreamError.
func toUpstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			StatusCode: apiErr.HTTPStatusCode,
			Status:     statusText(apiErr.HTTPStatusCode),
			Body:       apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{
			StatusCode: reqErr.HTTPStatusCode,
			Status:     statusText(reqErr.HTTPStatusCode),
			Body:       reqErr.Error(),
			Err:        err,
		}
	}
	return &UpstreamError{Err: err}
}

func statusText(code int) string {
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}

// Stream opens a streaming completion. It returns once the provider has answered with a 2xx
// status and at least one byte of body, so transport and status failures surface here.
func (c *openRouterClient) Stream(ctx context.Context, messages []Message, opts Options) (ChunkStream, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	reqBody := openai.ChatCompletionRequest{
		Model:         c.ResolveModel(opts),
		Messages:      toOpenAIMessages(messages),
		Stream:        true,
		Temperature:   float32(c.resolveTemperature(opts)),
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("failed to call chat api: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(bodyBytes)}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &UpstreamError{Err: ErrNoResponseBody}
	}
	reader := bufio.NewReader(resp.Body)
	if _, err := reader.Peek(1); err != nil {
		resp.Body.Close()
		if errors.Is(err, io.EOF) {
			return nil, &UpstreamError{Err: ErrNoResponseBody}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UpstreamError{Err: fmt.Errorf("failed to read from stream: %w", err)}
	}

	return newStream(ctx, resp.Body, reader), nil
}
