// Package remote is a drafting backend that delegates to a JSON drafting
// service: POST /analyze {description, language} and POST /describe
// {title, category_id, language}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xumezzan/marketplace-project/internal/drafting"
)

const maxReplyBytes = 1 << 20

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New returns ErrConfiguration when no base URL is set.
func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: drafting service endpoint is empty", drafting.ErrConfiguration)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, Timeout: timeout, HTTPClient: &http.Client{Timeout: timeout}}, nil
}

type analyzeBody struct {
	Description string `json:"description"`
	Language    string `json:"language"`
}

type describeBody struct {
	Title      string `json:"title"`
	CategoryID string `json:"category_id"`
	Language   string `json:"language"`
}

func (c *Client) Analyze(ctx context.Context, req drafting.AnalyzeRequest) ([]byte, error) {
	return c.post(ctx, "analyze", analyzeBody{Description: req.Description, Language: string(req.Locale)})
}

func (c *Client) Describe(ctx context.Context, req drafting.DescribeRequest) (string, error) {
	raw, err := c.post(ctx, "describe", describeBody{Title: req.Title, CategoryID: req.Category, Language: string(req.Locale)})
	if err != nil {
		return "", err
	}
	var out struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: malformed describe reply: %v", drafting.ErrUpstream, err)
	}
	if out.Description == nil {
		return "", fmt.Errorf("%w: describe reply has no description", drafting.ErrSchema)
	}
	return *out.Description, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", drafting.ErrConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", drafting.ErrUpstream, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read reply: %w", drafting.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", drafting.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
