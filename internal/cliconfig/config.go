package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/dmfilter/internal/adapters/title"
)

// DefaultServiceURL is the default OpenAI-compatible API base.
const DefaultServiceURL = "https://api.openai.com/v1"

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// DefaultLabels is the classification vocabulary announced to the model.
var DefaultLabels = []string{
	"normal",
	"vulgar",
	"spam",
	"personal-attack",
	"mockery",
	"flamebait",
	"profanity",
	"homophone-profanity",
	"unclassified",
}

// DefaultKeepLabels lists the labels whose items stay visible in hide mode.
var DefaultKeepLabels = []string{"normal", "unclassified"}

// Config holds CLI configuration for dmfilter.
type Config struct {
	ServiceURL        string
	APIKey            string
	Model             string
	HTTPTimeout       time.Duration
	RequestsPerMinute int
	ResponseFormat    string

	BatchSize      int
	BatchTimeout   time.Duration
	MaxConcurrent  int
	MaxQueueLength int
	DedupCapacity  int

	Labels        []string
	KeepLabels    []string
	FallbackLabel string
	Hide          bool

	Title       string
	TitleFile   string
	TitleSuffix string

	Input        string
	Follow       bool
	OutputFormat string

	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL:     DefaultServiceURL,
		APIKey:         os.Getenv("DMFILTER_API_KEY"),
		Model:          DefaultModel,
		HTTPTimeout:    60 * time.Second,
		ResponseFormat: "chat",
		BatchSize:      20,
		BatchTimeout:   500 * time.Millisecond,
		MaxConcurrent:  4,
		MaxQueueLength: 0, // unbounded
		DedupCapacity:  4096,
		Labels:         append([]string(nil), DefaultLabels...),
		KeepLabels:     append([]string(nil), DefaultKeepLabels...),
		FallbackLabel:  "unclassified",
		TitleSuffix:    title.DefaultSuffixPattern,
		OutputFormat:   "text",
		LogLevel:       "info",
	}
}

// Validate checks the configuration for errors and normalizes derived values.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch timeout must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent requests must be positive")
	}
	if c.MaxQueueLength < 0 {
		return fmt.Errorf("max queue length must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute must not be negative")
	}

	c.FallbackLabel = strings.TrimSpace(c.FallbackLabel)
	if c.FallbackLabel == "" {
		return fmt.Errorf("fallback label is required")
	}
	c.Labels = cleanList(c.Labels)
	if len(c.Labels) == 0 {
		return fmt.Errorf("at least one label is required")
	}
	if !contains(c.Labels, c.FallbackLabel) {
		c.Labels = append(c.Labels, c.FallbackLabel)
	}
	c.KeepLabels = cleanList(c.KeepLabels)

	switch c.ResponseFormat {
	case "chat", "text":
	default:
		return fmt.Errorf("response format must be chat or text, got %q", c.ResponseFormat)
	}
	switch c.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("output format must be text or json, got %q", c.OutputFormat)
	}
	if c.Follow && (c.Input == "" || c.Input == "-") {
		return fmt.Errorf("follow requires an input file")
	}
	if c.Title != "" && c.TitleFile != "" {
		return fmt.Errorf("title and title-file are mutually exclusive")
	}

	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && !contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// configSetter applies values from lower-precedence sources, skipping any
// field whose flag was set explicitly on the command line.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value where zero is meaningful.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination.
// Negative values are rejected; zero is accepted so that limits can be lifted.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("parse %s: negative value %d", flag, i)
	}
	*dst = i
	return nil
}

// setStringsFromString splits a comma-separated list.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = cleanList(strings.Split(value, ","))
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
