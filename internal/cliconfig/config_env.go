package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DMFILTER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("DMFILTER_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("api-key", os.Getenv("DMFILTER_API_KEY"), &cfg.APIKey)
	s.setString("model", os.Getenv("DMFILTER_MODEL"), &cfg.Model)
	s.setString("response-format", os.Getenv("DMFILTER_RESPONSE_FORMAT"), &cfg.ResponseFormat)
	s.setString("fallback-label", os.Getenv("DMFILTER_FALLBACK_LABEL"), &cfg.FallbackLabel)
	s.setString("title", os.Getenv("DMFILTER_TITLE"), &cfg.Title)
	s.setString("title-file", os.Getenv("DMFILTER_TITLE_FILE"), &cfg.TitleFile)
	s.setString("title-suffix", os.Getenv("DMFILTER_TITLE_SUFFIX"), &cfg.TitleSuffix)
	s.setString("input", os.Getenv("DMFILTER_INPUT"), &cfg.Input)
	s.setString("output", os.Getenv("DMFILTER_OUTPUT"), &cfg.OutputFormat)
	s.setString("metrics-addr", os.Getenv("DMFILTER_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("DMFILTER_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("DMFILTER_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("batch-timeout", os.Getenv("DMFILTER_BATCH_TIMEOUT"), &cfg.BatchTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"rpm", "DMFILTER_REQUESTS_PER_MINUTE", &cfg.RequestsPerMinute},
		{"batch-size", "DMFILTER_BATCH_SIZE", &cfg.BatchSize},
		{"max-concurrent", "DMFILTER_MAX_CONCURRENT", &cfg.MaxConcurrent},
		{"max-queue", "DMFILTER_MAX_QUEUE_LENGTH", &cfg.MaxQueueLength},
		{"dedup-capacity", "DMFILTER_DEDUP_CAPACITY", &cfg.DedupCapacity},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	s.setStringsFromString("labels", os.Getenv("DMFILTER_LABELS"), &cfg.Labels)
	s.setStringsFromString("keep", os.Getenv("DMFILTER_KEEP_LABELS"), &cfg.KeepLabels)

	s.setBoolFromString("hide", os.Getenv("DMFILTER_HIDE"), &cfg.Hide)
	s.setBoolFromString("follow", os.Getenv("DMFILTER_FOLLOW"), &cfg.Follow)

	return nil
}
