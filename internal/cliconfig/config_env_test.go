package cliconfig

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all field types",
			envVars: map[string]string{
				"DMFILTER_SERVICE_URL":         "http://example.com",
				"DMFILTER_API_KEY":             "secret",
				"DMFILTER_MODEL":               "m",
				"DMFILTER_HTTP_TIMEOUT":        "10s",
				"DMFILTER_REQUESTS_PER_MINUTE": "30",
				"DMFILTER_BATCH_SIZE":          "8",
				"DMFILTER_BATCH_TIMEOUT":       "250ms",
				"DMFILTER_MAX_CONCURRENT":      "2",
				"DMFILTER_MAX_QUEUE_LENGTH":    "0",
				"DMFILTER_LABELS":              "normal, spam ,unclassified",
				"DMFILTER_KEEP_LABELS":         "normal",
				"DMFILTER_FALLBACK_LABEL":      "unclassified",
				"DMFILTER_HIDE":                "1",
				"DMFILTER_OUTPUT":              "json",
				"DMFILTER_LOG_LEVEL":           "warn",
			},
			changed: map[string]bool{},
			initial: Config{MaxQueueLength: 9},
			expected: Config{
				ServiceURL:        "http://example.com",
				APIKey:            "secret",
				Model:             "m",
				HTTPTimeout:       10 * time.Second,
				RequestsPerMinute: 30,
				BatchSize:         8,
				BatchTimeout:      250 * time.Millisecond,
				MaxConcurrent:     2,
				MaxQueueLength:    0,
				Labels:            []string{"normal", "spam", "unclassified"},
				KeepLabels:        []string{"normal"},
				FallbackLabel:     "unclassified",
				Hide:              true,
				OutputFormat:      "json",
				LogLevel:          "warn",
			},
		},
		{
			name:     "respects changed flags",
			envVars:  map[string]string{"DMFILTER_MODEL": "env", "DMFILTER_BATCH_SIZE": "3"},
			changed:  map[string]bool{"model": true},
			initial:  Config{Model: "flag"},
			expected: Config{Model: "flag", BatchSize: 3},
		},
		{
			name:     "bool false",
			envVars:  map[string]string{"DMFILTER_HIDE": "false"},
			changed:  map[string]bool{},
			initial:  Config{Hide: true},
			expected: Config{Hide: false},
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"DMFILTER_BATCH_TIMEOUT": "later"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"DMFILTER_BATCH_SIZE": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "negative int",
			envVars: map[string]string{"DMFILTER_MAX_QUEUE_LENGTH": "-1"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("config = %+v\nwant %+v", cfg, tt.expected)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	trueVal := true
	fileConf := FileConfig{
		Model:     "file-model",
		BatchSize: 30,
		Title:     "file title",
		Hide:      &trueVal,
	}

	t.Setenv("DMFILTER_MODEL", "env-model")
	t.Setenv("DMFILTER_BATCH_SIZE", "40")

	changed := map[string]bool{"batch-size": true}
	cfg := Config{BatchSize: 50}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %v, want 50 (flag should win)", cfg.BatchSize)
	}
	if cfg.Model != "env-model" {
		t.Errorf("Model = %v, want env-model (env should override file)", cfg.Model)
	}
	if cfg.Title != "file title" {
		t.Errorf("Title = %v, want file title", cfg.Title)
	}
	if !cfg.Hide {
		t.Error("Hide should come from the file")
	}
}
