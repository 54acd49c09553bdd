package dmfilter

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/dmfilter/internal/adapters/title"
	"github.com/bft-labs/dmfilter/internal/domain"
)

// ResponseFormat selects how classifier response bodies are decoded.
type ResponseFormat string

const (
	// ResponseChat reads choices[0].message.content of a chat completion.
	ResponseChat ResponseFormat = "chat"
	// ResponseText treats the whole body as the answer.
	ResponseText ResponseFormat = "text"
)

// Default values applied by SetDefaults.
const (
	DefaultBatchSize       = 20
	DefaultBatchTimeout    = 500 * time.Millisecond
	DefaultMaxConcurrent   = 4
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultFallbackLabel   = "unclassified"
	DefaultTitleSuffix     = title.DefaultSuffixPattern
)

// Config configures a Filter.
type Config struct {
	// ServiceURL is the OpenAI-compatible API base. Required unless a
	// classifier is injected with WithClassifier.
	ServiceURL   string
	EndpointPath string
	APIKey       string
	Model        string

	// HTTPTimeout bounds each classification call.
	HTTPTimeout       time.Duration
	RequestsPerMinute int
	ResponseFormat    ResponseFormat

	// BatchSize flushes the open batch once it holds this many items.
	BatchSize int
	// BatchTimeout flushes a partial batch this long after its first item.
	BatchTimeout time.Duration
	// MaxConcurrent caps the number of outstanding classification calls.
	MaxConcurrent int
	// MaxQueueLength bounds the batches waiting for a slot. Zero means
	// unbounded; beyond the bound the oldest batches get the fallback label.
	MaxQueueLength int
	DedupCapacity  int

	Labels        []string
	KeepLabels    []string
	FallbackLabel string
	Hide          bool

	// Title is the fixed subject; TitleFile is re-read on every dispatch.
	Title       string
	TitleFile   string
	TitleSuffix string

	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config matching the filter's stock behavior.
func DefaultConfig() Config {
	cfg := Config{
		Labels:      []string{"normal", "vulgar", "spam", "personal-attack", "mockery", "flamebait", "profanity", "homophone-profanity", DefaultFallbackLabel},
		KeepLabels:  []string{"normal", DefaultFallbackLabel},
		TitleSuffix: DefaultTitleSuffix,
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ResponseFormat == "" {
		c.ResponseFormat = ResponseChat
	}
	if c.FallbackLabel == "" {
		c.FallbackLabel = DefaultFallbackLabel
	}
	if len(c.Labels) == 0 {
		c.Labels = []string{c.FallbackLabel}
	}
	if c.KeepLabels == nil {
		c.KeepLabels = []string{c.FallbackLabel}
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidConfig)
	}

	switch {
	case c.BatchSize <= 0:
		return invalid("batch size must be positive, got %d", c.BatchSize)
	case c.BatchTimeout <= 0:
		return invalid("batch timeout must be positive, got %s", c.BatchTimeout)
	case c.MaxConcurrent <= 0:
		return invalid("max concurrent must be positive, got %d", c.MaxConcurrent)
	case c.MaxQueueLength < 0:
		return invalid("max queue length must not be negative, got %d", c.MaxQueueLength)
	case c.HTTPTimeout <= 0:
		return invalid("http timeout must be positive, got %s", c.HTTPTimeout)
	case c.RequestsPerMinute < 0:
		return invalid("requests per minute must not be negative, got %d", c.RequestsPerMinute)
	case strings.TrimSpace(c.FallbackLabel) == "":
		return invalid("fallback label is required")
	case c.Title != "" && c.TitleFile != "":
		return invalid("title and title file are mutually exclusive")
	}
	switch c.ResponseFormat {
	case ResponseChat, ResponseText:
	default:
		return invalid("unknown response format %q", c.ResponseFormat)
	}
	return nil
}

func (c *Config) policy() domain.LabelPolicy {
	return domain.NewLabelPolicy(c.KeepLabels, strings.TrimSpace(c.FallbackLabel), c.Hide)
}
