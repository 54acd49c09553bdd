package cliconfig

import (
	"reflect"
	"testing"
	"time"

	"github.com/bft-labs/dmfilter/internal/adapters/title"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BatchSize != 20 {
		t.Errorf("BatchSize = %v, want 20", cfg.BatchSize)
	}
	if cfg.BatchTimeout != 500*time.Millisecond {
		t.Errorf("BatchTimeout = %v, want 500ms", cfg.BatchTimeout)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %v, want 4", cfg.MaxConcurrent)
	}
	if cfg.MaxQueueLength != 0 {
		t.Errorf("MaxQueueLength = %v, want 0 (unbounded)", cfg.MaxQueueLength)
	}
	if cfg.FallbackLabel != "unclassified" {
		t.Errorf("FallbackLabel = %v, want unclassified", cfg.FallbackLabel)
	}
	if !reflect.DeepEqual(cfg.KeepLabels, []string{"normal", "unclassified"}) {
		t.Errorf("KeepLabels = %v", cfg.KeepLabels)
	}
	if cfg.Hide {
		t.Error("Hide should default to false")
	}
	if cfg.TitleSuffix != title.DefaultSuffixPattern {
		t.Errorf("TitleSuffix = %q, want %q", cfg.TitleSuffix, title.DefaultSuffixPattern)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultConfig_DoesNotShareLabelSlices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Labels[0] = "changed"
	if DefaultLabels[0] == "changed" {
		t.Error("DefaultConfig must copy DefaultLabels")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }, true},
		{"negative queue length", func(c *Config) { c.MaxQueueLength = -1 }, true},
		{"bounded queue", func(c *Config) { c.MaxQueueLength = 2 }, false},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }, true},
		{"negative rpm", func(c *Config) { c.RequestsPerMinute = -5 }, true},
		{"blank fallback", func(c *Config) { c.FallbackLabel = "  " }, true},
		{"no labels", func(c *Config) { c.Labels = []string{" ", ""} }, true},
		{"bad response format", func(c *Config) { c.ResponseFormat = "xml" }, true},
		{"plain response format", func(c *Config) { c.ResponseFormat = "text" }, false},
		{"bad output format", func(c *Config) { c.OutputFormat = "yaml" }, true},
		{"follow without file", func(c *Config) { c.Follow = true }, true},
		{"follow stdin", func(c *Config) { c.Follow = true; c.Input = "-" }, true},
		{"follow file", func(c *Config) { c.Follow = true; c.Input = "/tmp/comments.txt" }, false},
		{"title and title file", func(c *Config) { c.Title = "a"; c.TitleFile = "b" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Normalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceURL = "http://localhost:8080/v1/"
	cfg.Labels = []string{" normal ", "spam", "normal", ""}
	cfg.KeepLabels = []string{"normal", " "}
	cfg.FallbackLabel = " unknown "

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.ServiceURL != "http://localhost:8080/v1" {
		t.Errorf("ServiceURL = %v, want trailing slash removed", cfg.ServiceURL)
	}
	if want := []string{"normal", "spam", "unknown"}; !reflect.DeepEqual(cfg.Labels, want) {
		t.Errorf("Labels = %v, want %v", cfg.Labels, want)
	}
	if want := []string{"normal"}; !reflect.DeepEqual(cfg.KeepLabels, want) {
		t.Errorf("KeepLabels = %v, want %v", cfg.KeepLabels, want)
	}
	if cfg.FallbackLabel != "unknown" {
		t.Errorf("FallbackLabel = %q, want unknown", cfg.FallbackLabel)
	}

	empty := DefaultConfig()
	empty.ServiceURL = ""
	if err := empty.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if empty.ServiceURL != DefaultServiceURL {
		t.Errorf("ServiceURL = %v, want %v", empty.ServiceURL, DefaultServiceURL)
	}
}
