package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"shop-assistant/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// TokenSource resolves the API key by parameter name.
type TokenSource interface {
	Token(ctx context.Context, name string) (string, error)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the generateContent endpoint of the Gemini API.
type Client struct {
	http      *resty.Client
	tokens    TokenSource
	tokenName string
	model     string
	maxTokens int

	keyMu sync.Mutex
	key   string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if b := strings.TrimRight(strings.TrimSpace(baseURL), "/"); b != "" {
			c.http.SetBaseURL(b)
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// NewClient creates a Client that reads its key from paramPrefix+"/gemini-token".
func NewClient(tokens TokenSource, paramPrefix, model string, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("gemini: token source must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("gemini: parameter prefix must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini: model must not be empty")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(30*time.Second).
			SetHeader("Content-Type", "application/json"),
		tokens:    tokens,
		tokenName: paramPrefix + "/gemini-token",
		model:     model,
		maxTokens: 400,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) apiKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.key != "" {
		return c.key, nil
	}
	key, err := c.tokens.Token(ctx, c.tokenName)
	if err != nil {
		return "", fmt.Errorf("gemini: resolve key: %w", err)
	}
	c.key = key
	return key, nil
}

// Complete maps chat messages onto Gemini contents: system messages become the
// system instruction and assistant turns use the "model" role.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return "", err
	}

	body := buildRequest(messages, c.maxTokens)
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", key).
		SetBody(body).
		SetResult(&out).
		Post("/models/" + c.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	if resp.IsError() {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 4096)}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func buildRequest(messages []domain.ChatMessage, maxTokens int) generateRequest {
	req := generateRequest{GenerationConfig: generationConfig{MaxOutputTokens: maxTokens}}
	var system []string
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}
	return req
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
