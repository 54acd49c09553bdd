package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
)

const (
	// DefaultEndpointPath is appended to the service URL unless overridden.
	DefaultEndpointPath = "/chat/completions"

	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes = 1 << 20

	errorBodyLimit = 512
)

// ClassifierConfig configures the chat-completion classifier.
type ClassifierConfig struct {
	// ServiceURL is the API base, e.g. https://api.openai.com/v1.
	ServiceURL string

	// EndpointPath overrides DefaultEndpointPath. A full http(s) URL replaces
	// ServiceURL entirely.
	EndpointPath string

	APIKey      string
	Model       string
	Temperature *float64

	// RequestsPerMinute throttles outgoing calls; 0 disables throttling.
	RequestsPerMinute int

	MaxResponseBytes int64
}

// Classifier implements ports.Classifier against an OpenAI-compatible chat
// completion endpoint.
type Classifier struct {
	client  ports.HTTPClient
	logger  ports.Logger
	url     string
	apiKey  string
	model   string
	temp    *float64
	limit   int64
	limiter *rate.Limiter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// NewClassifier creates an HTTP classifier.
func NewClassifier(cfg ClassifierConfig, client ports.HTTPClient, logger ports.Logger) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required: %w", domain.ErrInvalidConfig)
	}
	url, err := endpointURL(cfg.ServiceURL, cfg.EndpointPath)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		client: client,
		logger: logger,
		url:    url,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		temp:   cfg.Temperature,
		limit:  cfg.MaxResponseBytes,
	}
	if c.limit <= 0 {
		c.limit = DefaultMaxResponseBytes
	}
	if cfg.RequestsPerMinute > 0 {
		every := time.Minute / time.Duration(cfg.RequestsPerMinute)
		c.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
	return c, nil
}

func endpointURL(base, path string) (string, error) {
	if path == "" {
		path = DefaultEndpointPath
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if base == "" {
		return "", fmt.Errorf("service URL is required: %w", domain.ErrInvalidConfig)
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// URL returns the resolved endpoint.
func (c *Classifier) URL() string {
	return c.url
}

// Classify sends one batch prompt and returns the raw response body.
func (c *Classifier) Classify(ctx context.Context, creq ports.ClassifyRequest) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: creq.Prompt}},
		Temperature: c.temp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if creq.BatchID != "" {
		req.Header.Set("X-Request-Id", creq.BatchID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		sentinel := domain.ErrClassifierStatus
		if resp.StatusCode == http.StatusTooManyRequests {
			sentinel = domain.ErrRateLimited
		}
		return nil, fmt.Errorf("server returned %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(snippet)), sentinel)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.limit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("classifier responded",
			ports.String("batch", creq.BatchID),
			ports.Int("status", resp.StatusCode),
			ports.Int("bytes", len(body)),
		)
	}
	return body, nil
}
