package dmfilter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	httpAdapter "github.com/bft-labs/dmfilter/internal/adapters/http"
	"github.com/bft-labs/dmfilter/internal/adapters/render"
	"github.com/bft-labs/dmfilter/internal/adapters/title"
	"github.com/bft-labs/dmfilter/internal/app"
	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
	"github.com/bft-labs/dmfilter/pkg/log"
)

// Item is one classifiable text unit.
type Item = domain.Item

// Handle identifies the presentation object an item came from.
type Handle = domain.Handle

// Label is a classification result.
type Label = domain.Label

// Errors returned by a Filter. Check them with errors.Is.
var (
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrClosed           = domain.ErrClosed
	ErrClassifierStatus = domain.ErrClassifierStatus
	ErrRateLimited      = domain.ErrRateLimited
)

// State is the lifecycle state of a Filter.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateDraining
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// Stats is a snapshot of the pipeline.
type Stats struct {
	Buffered    int
	Queued      int
	InFlight    int
	MaxInFlight int
	Draining    bool
}

// Filter batches submitted items, classifies them with bounded concurrency
// and hands every item exactly one label.
type Filter struct {
	config    Config
	labels    []string
	policy    domain.LabelPolicy
	opts      options
	logger    ports.Logger
	lifecycle *app.Lifecycle
	emitter   *eventFanout
	deps      app.Dependencies

	mu       sync.Mutex
	pipeline atomic.Pointer[app.Pipeline]
	// pluginsUp is set while plugins are initialized and not yet shut down.
	pluginsUp bool
}

// New creates a Filter in StateStopped. Call Start to begin processing.
func New(cfg Config, opts ...Option) (*Filter, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	policy := cfg.policy()
	labels := withFallback(cfg.Labels, string(policy.Fallback()))

	classifier := o.classifier
	if classifier == nil {
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		c, err := httpAdapter.NewClassifier(httpAdapter.ClassifierConfig{
			ServiceURL:        cfg.ServiceURL,
			EndpointPath:      cfg.EndpointPath,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, client, logger)
		if err != nil {
			return nil, err
		}
		classifier = c
	}

	applier := o.applier
	if applier == nil && o.output != nil {
		format, err := render.ParseFormat(o.format)
		if err != nil {
			return nil, err
		}
		applier = render.NewWriter(o.output, policy, format, logger)
	}
	if applier == nil {
		return nil, fmt.Errorf("an applier or output is required: %w", domain.ErrInvalidConfig)
	}

	titles := o.titles
	if titles == nil {
		cleaner, err := title.NewCleaner(cfg.TitleSuffix)
		if err != nil {
			return nil, err
		}
		if cfg.TitleFile != "" {
			titles = title.NewFile(cfg.TitleFile, cleaner, logger)
		} else {
			titles = title.NewStatic(cfg.Title, cleaner)
		}
	}

	var decoder app.Decoder = app.ChatCompletionDecoder{}
	if cfg.ResponseFormat == ResponseText {
		decoder = app.PlainTextDecoder{}
	}

	fan := &eventFanout{handlers: o.handlers, fallback: policy.Fallback()}

	return &Filter{
		config:    cfg,
		labels:    labels,
		policy:    policy,
		opts:      o,
		logger:    logger,
		lifecycle: app.NewLifecycle(logger, fan),
		emitter:   fan,
		deps: app.Dependencies{
			Classifier: classifier,
			Applier:    applier,
			Titles:     titles,
			Decoder:    decoder,
			Logger:     logger,
			Emitter:    fan,
		},
	}, nil
}

func withFallback(labels []string, fallback string) []string {
	out := make([]string, 0, len(labels)+1)
	seen := false
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if l == fallback {
			seen = true
		}
		out = append(out, l)
	}
	if !seen {
		out = append(out, fallback)
	}
	return out
}

// Start begins processing in the background and initializes plugins.
// The context bounds the lifetime of the filter: cancelling it aborts
// processing and resolves pending items with the fallback label.
func (f *Filter) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if f.pluginsUp {
		f.release()
	}
	if err := f.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	pipeline, err := app.NewPipeline(app.PipelineConfig{
		BatchSize:      f.config.BatchSize,
		BatchTimeout:   f.config.BatchTimeout,
		MaxConcurrent:  f.config.MaxConcurrent,
		MaxQueueLength: f.config.MaxQueueLength,
		DedupCapacity:  f.config.DedupCapacity,
		Labels:         f.labels,
		Policy:         f.policy,
	}, f.deps)
	if err != nil {
		_ = f.lifecycle.TransitionTo(app.StateCrashed, "pipeline setup failed")
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.lifecycle.SetCancel(cancel)
	f.pipeline.Store(pipeline)

	f.lifecycle.Go(func() {
		err := pipeline.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Error("pipeline stopped", ports.Err(err))
		}
		if err != nil {
			f.crashIfRunning()
		}
	})

	pluginCfg := PluginConfig{
		Submit: f.Submit,
		Flush:  f.Flush,
		Logger: f.logger,
	}
	for i, p := range f.opts.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			f.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			f.shutdownPlugins(f.opts.plugins[:i])
			cancel()
			_ = f.lifecycle.Wait(f.config.ShutdownTimeout)
			_ = f.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), err)
		}
		f.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	f.pluginsUp = true
	if err := f.lifecycle.TransitionTo(app.StateRunning, "pipeline started"); err != nil {
		return err
	}
	// The context may have been cancelled while plugins were starting.
	select {
	case <-pipeline.Done():
		f.crashIfRunning()
	default:
	}
	return nil
}

// crashIfRunning records that the pipeline ended without Stop, which happens
// when the context given to Start is cancelled.
func (f *Filter) crashIfRunning() {
	if f.lifecycle.TransitionFrom(app.StateRunning, app.StateCrashed, "context cancelled") {
		f.logger.Warn("pipeline aborted by context cancellation; call Stop to release plugins")
	}
}

// release shuts down what a crashed instance left behind. Callers hold f.mu.
func (f *Filter) release() {
	f.lifecycle.Cancel()
	_ = f.lifecycle.Wait(f.config.ShutdownTimeout)
	f.shutdownPlugins(f.opts.plugins)
	f.pluginsUp = false
}

// Stop drains the filter: the open batch is flushed, new items are rejected,
// and Stop waits for every queued and in-flight batch to settle. If that
// takes longer than Config.ShutdownTimeout, outstanding calls are cancelled,
// their items receive the fallback label and ErrShutdownTimeout is returned.
// After the context given to Start was cancelled the filter is Crashed; Stop
// then only shuts down plugins.
func (f *Filter) Stop() error {
	f.mu.Lock()
	if f.lifecycle.State() == app.StateCrashed && f.pluginsUp {
		f.release()
		f.mu.Unlock()
		return nil
	}
	if !f.lifecycle.CanStop() {
		f.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateDraining, "Stop() called"); err != nil {
		if f.lifecycle.State() == app.StateCrashed && f.pluginsUp {
			f.release()
			err = nil
		}
		f.mu.Unlock()
		return err
	}
	pipeline := f.pipeline.Load()
	f.mu.Unlock()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), f.config.ShutdownTimeout)
	drainErr := pipeline.Drain(drainCtx)
	cancelDrain()

	var err error
	if drainErr != nil {
		f.logger.Warn("drain timed out, cancelling outstanding batches",
			ports.Duration("timeout", f.config.ShutdownTimeout))
		err = domain.ErrShutdownTimeout
	}
	f.lifecycle.Cancel()
	if waitErr := f.lifecycle.Wait(f.config.ShutdownTimeout); waitErr != nil {
		err = waitErr
	}

	f.shutdownPlugins(f.opts.plugins)
	f.mu.Lock()
	f.pluginsUp = false
	f.mu.Unlock()

	if err != nil {
		_ = f.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}
	_ = f.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	return nil
}

func (f *Filter) shutdownPlugins(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), f.config.ShutdownTimeout)
	defer cancel()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			f.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			continue
		}
		f.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
	}
}

func (f *Filter) current() *app.Pipeline {
	return f.pipeline.Load()
}

// Submit hands one item to the filter. Admission is decided asynchronously;
// observe OnItemSubmitted to learn whether the item was accepted. It returns
// ErrNotRunning before Start and ErrClosed once processing has ended.
func (f *Filter) Submit(item Item) error {
	p := f.current()
	if p == nil {
		return domain.ErrNotRunning
	}
	return p.Submit(item)
}

// Flush finalizes the open batch immediately.
func (f *Filter) Flush() error {
	p := f.current()
	if p == nil {
		return domain.ErrNotRunning
	}
	return p.Flush()
}

// Stats returns a snapshot of buffered, queued and in-flight work.
func (f *Filter) Stats(ctx context.Context) (Stats, error) {
	p := f.current()
	if p == nil {
		return Stats{}, domain.ErrNotRunning
	}
	s, err := p.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats(s), nil
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (f *Filter) Status() State {
	return State(f.lifecycle.State())
}

// eventFanout adapts the internal emitter interfaces to EventHandlers.
type eventFanout struct {
	handlers []EventHandler
	fallback domain.Label
}

func (e *eventFanout) OnStateChange(previous, current app.State, reason string) {
	ev := StateChangeEvent{Previous: State(previous), Current: State(current), Reason: reason}
	for _, h := range e.handlers {
		h.OnStateChange(ev)
	}
}

func (e *eventFanout) OnItemSubmitted(a app.Admission) {
	ev := ItemSubmittedEvent{Admission: a.String(), Accepted: a == app.Accepted}
	for _, h := range e.handlers {
		h.OnItemSubmitted(ev)
	}
}

func (e *eventFanout) OnBatchFlushed(b *domain.Batch, trigger app.FlushTrigger) {
	ev := BatchFlushedEvent{BatchID: b.ID, Items: b.Size(), Trigger: trigger.String()}
	for _, h := range e.handlers {
		h.OnBatchFlushed(ev)
	}
}

func (e *eventFanout) OnBatchDispatched(b *domain.Batch, inFlight int) {
	ev := BatchDispatchedEvent{BatchID: b.ID, Items: b.Size(), InFlight: inFlight}
	for _, h := range e.handlers {
		h.OnBatchDispatched(ev)
	}
}

func (e *eventFanout) OnBatchClassified(b *domain.Batch, results []domain.Result, d time.Duration) {
	fallbacks := 0
	for _, r := range results {
		if r.Label == e.fallback {
			fallbacks++
		}
	}
	ev := BatchSettledEvent{BatchID: b.ID, Items: b.Size(), Fallbacks: fallbacks, Duration: d}
	for _, h := range e.handlers {
		h.OnBatchSettled(ev)
	}
}

func (e *eventFanout) OnBatchDiscarded(b *domain.Batch, reason app.DiscardReason, err error, d time.Duration) {
	if reason == app.DiscardTransport {
		ev := BatchSettledEvent{BatchID: b.ID, Items: b.Size(), Fallbacks: b.Size(), Duration: d, Err: err}
		for _, h := range e.handlers {
			h.OnBatchSettled(ev)
		}
		return
	}
	ev := BatchEvictedEvent{BatchID: b.ID, Items: b.Size(), Reason: reason.String()}
	for _, h := range e.handlers {
		h.OnBatchEvicted(ev)
	}
}
