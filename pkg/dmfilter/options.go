package dmfilter

import (
	"io"

	"github.com/bft-labs/dmfilter/internal/ports"
	"github.com/bft-labs/dmfilter/pkg/log"
)

// Logger is the structured logging interface.
type Logger = log.Logger

// LogField is a structured log field.
type LogField = log.Field

// HTTPClient is satisfied by *http.Client.
type HTTPClient = ports.HTTPClient

// Classifier sends one classification request and returns the raw body.
type Classifier = ports.Classifier

// ClassifyRequest is what a Classifier receives.
type ClassifyRequest = ports.ClassifyRequest

// Applier receives the final label of every accepted item.
type Applier = ports.ResultApplier

// ApplierFunc adapts a function to Applier.
type ApplierFunc = ports.ApplierFunc

// TitleSource provides the subject title at dispatch time.
type TitleSource = ports.TitleSource

// Option configures optional behavior of a Filter.
type Option func(*options)

type options struct {
	httpClient HTTPClient
	logger     Logger
	classifier Classifier
	applier    Applier
	output     io.Writer
	format     string
	titles     TitleSource
	handlers   []EventHandler
	plugins    []Plugin
}

// WithHTTPClient sets the client used by the built-in classifier. Ignored
// when WithClassifier is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger. If not provided, nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClassifier replaces the built-in HTTP classifier.
func WithClassifier(c Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithApplier sets where labeled items go.
func WithApplier(a Applier) Option {
	return func(o *options) {
		o.applier = a
	}
}

// WithOutput writes labeled items to w as "text" lines or "json" records,
// honoring the hide and keep settings. It is an alternative to WithApplier.
func WithOutput(w io.Writer, format string) Option {
	return func(o *options) {
		o.output = w
		o.format = format
	}
}

// WithTitleSource overrides the title derived from Config.Title or
// Config.TitleFile.
func WithTitleSource(t TitleSource) Option {
	return func(o *options) {
		o.titles = t
	}
}

// WithEventHandler adds an event handler. It may be given several times.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		if h != nil {
			o.handlers = append(o.handlers, h)
		}
	}
}

// WithPlugin registers a plugin. Plugins are initialized in registration
// order and shut down in reverse order.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, p)
	}
}

// Options bundles several options into one.
func Options(opts ...Option) Option {
	return func(o *options) {
		for _, opt := range opts {
			opt(o)
		}
	}
}
