// Package websearch is a minimal REST client for the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragchat/internal/domain"
)

// DefaultBaseURL is the Tavily API root.
const DefaultBaseURL = "https://api.tavily.com"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements domain.WebSearcher against Tavily's /search endpoint.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

// NewClient returns a search client. A missing key is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError("web search", domain.ErrConfiguration, "", "missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		url:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type searchRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns at most maxResults hits with a short extracted snippet each.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	req := searchRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	}
	var resp searchResponse
	if err := c.postJSON(ctx, c.url+"/search", req, &resp); err != nil {
		return nil, err
	}
	n := min(len(resp.Results), maxResults)
	out := make([]domain.WebResult, 0, n)
	for _, r := range resp.Results[:n] {
		out = append(out, domain.WebResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tavily POST %s failed: %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
