// Package llm talks to OpenAI-compatible chat completion endpoints such as OpenRouter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ragchat/internal/domain"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config configures a chat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// SiteURL and AppName are sent as OpenRouter attribution headers when set.
	SiteURL string
	AppName string
	Timeout time.Duration
}

// Client implements domain.ChatModel on top of go-openai.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient returns a chat client. A missing key or model is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError("chat client", domain.ErrConfiguration, "", "missing API key")
	}
	if cfg.Model == "" {
		return nil, domain.NewError("chat client", domain.ErrConfiguration, "", "missing model")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			siteURL: cfg.SiteURL,
			appName: cfg.AppName,
		},
	}
	return &Client{api: openai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

// Model returns the model the client sends requests to.
func (c *Client) Model() string { return c.model }

// Chat sends one completion request and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage, params domain.ChatParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: temperature(params.Temperature),
		MaxTokens:   params.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// The request field is omitted when zero, so an explicit zero is sent as the
// smallest positive value.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

type headerTransport struct {
	base    http.RoundTripper
	siteURL string
	appName string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.siteURL == "" && t.appName == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	if t.siteURL != "" {
		r.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.appName != "" {
		r.Header.Set("X-Title", t.appName)
	}
	return t.base.RoundTrip(r)
}
