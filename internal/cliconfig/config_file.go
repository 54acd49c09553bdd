package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ServiceURL        string   `toml:"service_url"`
	APIKey            string   `toml:"api_key"`
	Model             string   `toml:"model"`
	HTTPTimeout       string   `toml:"http_timeout"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	ResponseFormat    string   `toml:"response_format"`
	BatchSize         int      `toml:"batch_size"`
	BatchTimeout      string   `toml:"batch_timeout"`
	MaxConcurrent     int      `toml:"max_concurrent"`
	MaxQueueLength    *int     `toml:"max_queue_length"`
	DedupCapacity     int      `toml:"dedup_capacity"`
	Labels            []string `toml:"labels"`
	KeepLabels        []string `toml:"keep_labels"`
	FallbackLabel     string   `toml:"fallback_label"`
	Hide              *bool    `toml:"hide"`
	Title             string   `toml:"title"`
	TitleFile         string   `toml:"title_file"`
	TitleSuffix       *string  `toml:"title_suffix"`
	Input             string   `toml:"input"`
	Follow            *bool    `toml:"follow"`
	OutputFormat      string   `toml:"output"`
	MetricsAddr       string   `toml:"metrics_addr"`
	LogLevel          string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.dmfilter/config.toml, or "" when the home
// directory cannot be determined.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".dmfilter", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("model", fc.Model, &cfg.Model)
	s.setString("response-format", fc.ResponseFormat, &cfg.ResponseFormat)
	s.setString("fallback-label", fc.FallbackLabel, &cfg.FallbackLabel)
	s.setString("title", fc.Title, &cfg.Title)
	s.setString("title-file", fc.TitleFile, &cfg.TitleFile)
	s.setString("input", fc.Input, &cfg.Input)
	s.setString("output", fc.OutputFormat, &cfg.OutputFormat)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	if fc.TitleSuffix != nil && !changed["title-suffix"] {
		cfg.TitleSuffix = *fc.TitleSuffix
	}

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("batch-timeout", fc.BatchTimeout, &cfg.BatchTimeout); err != nil {
		return err
	}

	s.setInt("rpm", fc.RequestsPerMinute, &cfg.RequestsPerMinute)
	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("max-concurrent", fc.MaxConcurrent, &cfg.MaxConcurrent)
	s.setInt("dedup-capacity", fc.DedupCapacity, &cfg.DedupCapacity)
	s.setIntPtr("max-queue", fc.MaxQueueLength, &cfg.MaxQueueLength)

	s.setStrings("labels", fc.Labels, &cfg.Labels)
	s.setStrings("keep", fc.KeepLabels, &cfg.KeepLabels)

	s.setBool("hide", fc.Hide, &cfg.Hide)
	s.setBool("follow", fc.Follow, &cfg.Follow)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
