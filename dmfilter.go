// Package dmfilter classifies a stream of comments in one call.
//
// Example usage:
//
//	cfg := dmfilter.DefaultConfig()
//	cfg.APIKey = os.Getenv("DMFILTER_API_KEY")
//	cfg.Title = "Stream title"
//	if err := dmfilter.Run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// For long-running use with plugins and events, see pkg/dmfilter.
package dmfilter

import (
	"context"
	"errors"
	"io"

	filter "github.com/bft-labs/dmfilter/pkg/dmfilter"
)

// Config holds the configuration of a filter.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = filter.Config

// Option customizes a filter created by Run.
type Option = filter.Option

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set APIKey before calling Run against a hosted model.
func DefaultConfig() Config {
	return filter.DefaultConfig()
}

// Run reads r line by line, classifies every line and writes the results to
// w in text form. It returns once r is exhausted and every line has been
// written, or when ctx is cancelled, in which case outstanding lines receive
// the fallback label.
func Run(ctx context.Context, cfg Config, r io.Reader, w io.Writer, opts ...Option) error {
	opts = append([]Option{filter.WithOutput(w, "text")}, opts...)
	f, err := filter.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := f.Start(ctx); err != nil {
		return err
	}

	_, readErr := filter.ScanLines(ctx, r, "input", 1, f.Submit)
	if errors.Is(readErr, filter.ErrClosed) {
		readErr = ctx.Err()
	}
	if err := f.Stop(); err != nil {
		return err
	}
	return readErr
}
