// Package completion calls an OpenAI-compatible chat completion API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"tag-gateway/internal/models"
)

// Sampling parameters sent with every tag request.
const (
	MaxTokens   = 400
	Temperature = 0.35
	Choices     = 1
)

// DefaultTimeout applies when ClientConfig.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Completer issues a single chat completion call.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message) (*Result, error)
}

// Result is what the upstream answered: any HTTP status, with the raw body.
type Result struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Content returns choices[0].message.content. A response without that
// path, or whose content is null, false, 0 or "", yields "". It fails
// when the body is not JSON, is JSON null, or carries content that is
// some other non-string value.
func (r *Result) Content() (string, error) {
	var resp any
	if err := json.Unmarshal(r.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if resp == nil {
		return "", errors.New("completion response is null")
	}

	content := lookupPath(resp, "choices", 0, "message", "content")
	switch val := content.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if !val {
			return "", nil
		}
	case float64:
		if val == 0 {
			return "", nil
		}
	}
	return "", fmt.Errorf("completion content is %T, not a string", content)
}

// lookupPath walks object keys and array indexes, returning nil as soon
// as a step is missing or has the wrong shape.
func lookupPath(v any, path ...any) any {
	for _, step := range path {
		switch key := step.(type) {
		case string:
			obj, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = obj[key]
		case int:
			arr, ok := v.([]any)
			if !ok || key >= len(arr) {
				return nil
			}
			v = arr[key]
		}
	}
	return v
}

// ClientConfig holds configuration for the completion client.
// UpstreamURL is the API base; "/chat/completions" is appended unless
// already present.
type ClientConfig struct {
	UpstreamURL string
	APIKey      string
	Model       string
	Timeout     time.Duration
}

// Client sends chat completion requests over HTTP. It is safe for
// concurrent use.
type Client struct {
	config   ClientConfig
	client   *http.Client
	endpoint string
}

// New creates a completion client with the given configuration.
func New(config ClientConfig) (*Client, error) {
	if config.UpstreamURL == "" {
		return nil, fmt.Errorf("upstream URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	parsedURL, err := url.Parse(config.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		config:   config,
		endpoint: buildEndpoint(parsedURL),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Complete sends the messages upstream once and returns whatever came
// back. A non-2xx status is not an error; transport failures are.
func (c *Client) Complete(ctx context.Context, messages []models.Message) (*Result, error) {
	body, err := json.Marshal(c.buildRequest(messages))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Endpoint returns the full chat completions URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) buildRequest(messages []models.Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    msgs,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		N:           Choices,
	}
}

func buildEndpoint(base *url.URL) string {
	u := *base
	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, "/chat/completions") {
		path += "/chat/completions"
	}
	u.Path = path
	return u.String()
}
