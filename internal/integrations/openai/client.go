package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"shop-assistant/internal/domain"
)

// TokenSource resolves the API token by parameter name.
type TokenSource interface {
	Token(ctx context.Context, name string) (string, error)
}

// chatAPI is the subset of *goopenai.Client used here.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a chat-completions provider backed by go-openai. The API token is
// fetched from the parameter store on the first call.
type Client struct {
	tokens     TokenSource
	tokenName  string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client

	mu  sync.Mutex
	api chatAPI
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// NewClient creates a Client that reads its token from paramPrefix+"/openai-token".
func NewClient(tokens TokenSource, paramPrefix, model string, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("openai: token source must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	c := &Client{
		tokens:     tokens,
		tokenName:  paramPrefix + "/openai-token",
		model:      model,
		maxTokens:  400,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "openai" }

func (c *Client) resolveAPI(ctx context.Context) (chatAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	token, err := c.tokens.Token(ctx, c.tokenName)
	if err != nil {
		return nil, fmt.Errorf("openai: resolve token: %w", err)
	}
	cfg := goopenai.DefaultConfig(token)
	if c.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.api = goopenai.NewClientWithConfig(cfg)
	return c.api, nil
}

// Complete sends messages to the chat completions endpoint and returns the
// first choice's content.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	req := goopenai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  make([]goopenai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: c.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", statusError(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// statusError normalizes go-openai failures that carry an HTTP status.
func statusError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return err
}
