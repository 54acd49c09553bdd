package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/dmfilter/internal/cliconfig"
	"github.com/bft-labs/dmfilter/pkg/dmfilter"
	"github.com/bft-labs/dmfilter/pkg/log"
	"github.com/bft-labs/dmfilter/plugins/filetail"
	"github.com/bft-labs/dmfilter/plugins/prommetrics"
)

const helpDescription = `
Classify live comments with an LLM and annotate or hide the unwanted ones.

Comments are read one per line from stdin or a file, grouped into batches,
and sent to an OpenAI-compatible chat endpoint. Every line is written back
exactly once: with its label appended, unchanged, or (with --hide) dropped
when the label is not in the keep list. Lines that cannot be classified in
time get the fallback label instead of being lost.
`

var exampleUsage = strings.TrimSpace(`
  tail -f chat.log | dmfilter --api-key <key> --title "Stream title"
  dmfilter --input chat.log --follow --hide --keep normal,unclassified
  dmfilter --config $HOME/.dmfilter/config.toml --output json --metrics-addr :9464
`)

// statsInterval is how often queue statistics are logged at debug level.
const statsInterval = 10 * time.Second

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "dmfilter",
		Short:         "Batch live comments through an LLM classifier",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; explicit flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := cliconfig.Logger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}

			logCfg := cfg
			if len(logCfg.APIKey) > 0 {
				logCfg.APIKey = "*****"
			}
			zl := logger.Logger()
			zl.Info().Interface("config", logCfg).Msg("configuration")

			return run(cfg, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.dmfilter/config.toml)")

	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "OpenAI-compatible API base URL")
	root.Flags().StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key (default from DMFILTER_API_KEY)")
	root.Flags().StringVar(&cfg.Model, "model", cfg.Model, "chat model name")
	root.Flags().StringVar(&cfg.ResponseFormat, "response-format", cfg.ResponseFormat, "response body format: chat or text")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "timeout of one classification request")
	root.Flags().IntVar(&cfg.RequestsPerMinute, "rpm", cfg.RequestsPerMinute, "maximum requests per minute (0 for no limit)")

	root.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "comments per batch")
	root.Flags().DurationVar(&cfg.BatchTimeout, "batch-timeout", cfg.BatchTimeout, "flush a partial batch after this long")
	root.Flags().IntVar(&cfg.MaxConcurrent, "max-concurrent", cfg.MaxConcurrent, "maximum outstanding requests")
	root.Flags().IntVar(&cfg.MaxQueueLength, "max-queue", cfg.MaxQueueLength, "maximum waiting batches before the oldest is dropped (0 for unbounded)")
	root.Flags().IntVar(&cfg.DedupCapacity, "dedup-capacity", cfg.DedupCapacity, "number of lines remembered for duplicate detection")

	root.Flags().StringSliceVar(&cfg.Labels, "labels", cfg.Labels, "classification labels offered to the model")
	root.Flags().StringSliceVar(&cfg.KeepLabels, "keep", cfg.KeepLabels, "labels shown in hide mode")
	root.Flags().StringVar(&cfg.FallbackLabel, "fallback-label", cfg.FallbackLabel, "label for comments that could not be classified")
	root.Flags().BoolVar(&cfg.Hide, "hide", cfg.Hide, "drop comments whose label is not kept instead of annotating them")

	root.Flags().StringVar(&cfg.Title, "title", cfg.Title, "subject of the comments, included in the prompt")
	root.Flags().StringVar(&cfg.TitleFile, "title-file", cfg.TitleFile, "file whose first line is the subject, re-read per batch")
	root.Flags().StringVar(&cfg.TitleSuffix, "title-suffix", cfg.TitleSuffix, "regular expression stripped from the end of the subject")

	root.Flags().StringVar(&cfg.Input, "input", cfg.Input, "input file (default stdin)")
	root.Flags().BoolVar(&cfg.Follow, "follow", cfg.Follow, "keep reading lines appended to the input file")
	root.Flags().StringVar(&cfg.OutputFormat, "output", cfg.OutputFormat, "output format: text or json")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	if err := root.Execute(); err != nil {
		logger, _ := cliconfig.Logger(os.Stderr, "info")
		logger.Error("dmfilter", log.Err(err))
		os.Exit(1)
	}
}

func filterConfig(cfg cliconfig.Config) dmfilter.Config {
	return dmfilter.Config{
		ServiceURL:        cfg.ServiceURL,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		HTTPTimeout:       cfg.HTTPTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		ResponseFormat:    dmfilter.ResponseFormat(cfg.ResponseFormat),
		BatchSize:         cfg.BatchSize,
		BatchTimeout:      cfg.BatchTimeout,
		MaxConcurrent:     cfg.MaxConcurrent,
		MaxQueueLength:    cfg.MaxQueueLength,
		DedupCapacity:     cfg.DedupCapacity,
		Labels:            cfg.Labels,
		KeepLabels:        cfg.KeepLabels,
		FallbackLabel:     cfg.FallbackLabel,
		Hide:              cfg.Hide,
		Title:             cfg.Title,
		TitleFile:         cfg.TitleFile,
		TitleSuffix:       cfg.TitleSuffix,
		ShutdownTimeout:   dmfilter.DefaultShutdownTimeout,
	}
}

func run(cfg cliconfig.Config, logger *log.ZerologAdapter) error {
	opts := []dmfilter.Option{
		dmfilter.WithLogger(logger),
		dmfilter.WithOutput(os.Stdout, cfg.OutputFormat),
	}
	if cfg.MetricsAddr != "" {
		opts = append(opts, prommetrics.WithMetrics(prommetrics.Config{Addr: cfg.MetricsAddr}))
	}
	if cfg.Follow {
		opts = append(opts, filetail.WithFileTail(filetail.Config{Path: cfg.Input}))
	}

	f, err := dmfilter.New(filterConfig(cfg), opts...)
	if err != nil {
		return fmt.Errorf("create filter: %w", err)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// The filter outlives a signal so that Stop can drain it.
	if err := f.Start(context.Background()); err != nil {
		return fmt.Errorf("start filter: %w", err)
	}

	readCtx, stopReading := context.WithCancel(sigCtx)
	g, gctx := errgroup.WithContext(readCtx)

	g.Go(func() error {
		defer stopReading()
		if cfg.Follow {
			<-gctx.Done()
			return nil
		}
		// A blocked read of stdin must not hold up shutdown.
		errc := make(chan error, 1)
		go func() { errc <- readInput(gctx, cfg.Input, f) }()
		select {
		case err := <-errc:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats, err := f.Stats(gctx)
				if err != nil {
					return nil
				}
				logger.Debug("filter stats",
					log.Int("buffered", stats.Buffered),
					log.Int("queued", stats.Queued),
					log.Int("in_flight", stats.InFlight))
			}
		}
	})

	readErr := g.Wait()
	if sigCtx.Err() != nil {
		logger.Info("received signal, draining")
	}

	if err := f.Stop(); err != nil {
		return fmt.Errorf("stop filter: %w", err)
	}
	return readErr
}

func readInput(ctx context.Context, path string, f *dmfilter.Filter) error {
	var r io.Reader = os.Stdin
	source := "stdin"
	if path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		r = file
		source = path
	}

	_, err := dmfilter.ScanLines(ctx, r, source, 1, f.Submit)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
