package prommetrics

import "github.com/bft-labs/dmfilter/pkg/dmfilter"

// WithMetrics returns a dmfilter Option that records filter events and,
// when cfg.Addr is set, serves them for scraping.
//
// Usage:
//
//	f, err := dmfilter.New(cfg,
//	    prommetrics.WithMetrics(prommetrics.Config{Addr: ":9464"}),
//	)
func WithMetrics(cfg Config) dmfilter.Option {
	return WithPlugin(New(cfg))
}

// WithPlugin registers an existing metrics plugin as both event handler and
// plugin, so callers can keep a reference to its registry.
func WithPlugin(p *Plugin) dmfilter.Option {
	return dmfilter.Options(
		dmfilter.WithEventHandler(p),
		dmfilter.WithPlugin(p),
	)
}
