// Package prommetrics exports dmfilter activity as Prometheus metrics and
// optionally serves them over HTTP.
package prommetrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/dmfilter/pkg/dmfilter"
	"github.com/bft-labs/dmfilter/pkg/log"
)

const namespace = "dmfilter"

// Config holds configuration options for the metrics plugin.
type Config struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables
	// the endpoint; metrics are still collected in Registry.
	Addr string

	// Path of the metrics endpoint.
	// Default: /metrics
	Path string
}

// Plugin records filter events into a private registry.
type Plugin struct {
	dmfilter.BaseEventHandler

	cfg      Config
	registry *prometheus.Registry

	itemsSubmitted *prometheus.CounterVec
	batchesFlushed *prometheus.CounterVec
	batchSize      prometheus.Histogram
	inFlight       prometheus.Gauge
	batchDuration  prometheus.Histogram
	batchesSettled *prometheus.CounterVec
	fallbackItems  prometheus.Counter
	batchesEvicted *prometheus.CounterVec
	evictedItems   *prometheus.CounterVec
	state          *prometheus.GaugeVec

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	logger   dmfilter.Logger
	serveErr chan error
}

// New creates a metrics plugin and registers its collectors.
func New(cfg Config) *Plugin {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	p := &Plugin{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		itemsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_submitted_total",
			Help:      "Items submitted, by admission outcome.",
		}, []string{"admission"}),
		batchesFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_flushed_total",
			Help:      "Batches formed, by flush trigger.",
		}, []string{"trigger"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_items",
			Help:      "Items per flushed batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_in_flight",
			Help:      "Classification calls currently outstanding.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time from dispatch to settlement of a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		batchesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_settled_total",
			Help:      "Completed classification calls, by result.",
		}, []string{"result"}),
		fallbackItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_items_total",
			Help:      "Items of settled batches that received the fallback label.",
		}),
		batchesEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_evicted_total",
			Help:      "Queued batches resolved without a call, by reason.",
		}, []string{"reason"}),
		evictedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_items_total",
			Help:      "Items of evicted batches, by reason.",
		}, []string{"reason"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current lifecycle state, 0 otherwise.",
		}, []string{"state"}),
	}
	p.registry.MustRegister(
		p.itemsSubmitted,
		p.batchesFlushed,
		p.batchSize,
		p.inFlight,
		p.batchDuration,
		p.batchesSettled,
		p.fallbackItems,
		p.batchesEvicted,
		p.evictedItems,
		p.state,
	)
	return p
}

// Registry returns the registry holding the plugin's collectors.
func (p *Plugin) Registry() *prometheus.Registry {
	return p.registry
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "prommetrics"
}

// Initialize starts the metrics endpoint when an address is configured.
func (p *Plugin) Initialize(ctx context.Context, cfg dmfilter.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	if p.cfg.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("prommetrics: listen %s: %w", p.cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(p.cfg.Path, promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	p.listener = ln
	p.serveErr = make(chan error, 1)

	server := p.server
	errc := p.serveErr
	go func() {
		errc <- server.Serve(ln)
	}()

	p.logger.Info("metrics endpoint listening",
		log.String("addr", ln.Addr().String()),
		log.String("path", p.cfg.Path))
	return nil
}

// Addr returns the bound address of the endpoint, or "" when it is not
// serving.
func (p *Plugin) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown stops the metrics endpoint.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	server, errc := p.server, p.serveErr
	p.server, p.listener, p.serveErr = nil, nil, nil
	p.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("prommetrics: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("prommetrics: serve: %w", err)
	}
	return nil
}

func (p *Plugin) OnStateChange(e dmfilter.StateChangeEvent) {
	p.state.WithLabelValues(e.Previous.String()).Set(0)
	p.state.WithLabelValues(e.Current.String()).Set(1)
}

func (p *Plugin) OnItemSubmitted(e dmfilter.ItemSubmittedEvent) {
	p.itemsSubmitted.WithLabelValues(e.Admission).Inc()
}

func (p *Plugin) OnBatchFlushed(e dmfilter.BatchFlushedEvent) {
	p.batchesFlushed.WithLabelValues(e.Trigger).Inc()
	p.batchSize.Observe(float64(e.Items))
}

func (p *Plugin) OnBatchDispatched(e dmfilter.BatchDispatchedEvent) {
	p.inFlight.Set(float64(e.InFlight))
}

func (p *Plugin) OnBatchSettled(e dmfilter.BatchSettledEvent) {
	p.inFlight.Dec()
	result := "ok"
	if e.Err != nil {
		result = "error"
	}
	p.batchesSettled.WithLabelValues(result).Inc()
	p.fallbackItems.Add(float64(e.Fallbacks))
	p.batchDuration.Observe(e.Duration.Seconds())
}

func (p *Plugin) OnBatchEvicted(e dmfilter.BatchEvictedEvent) {
	p.batchesEvicted.WithLabelValues(e.Reason).Inc()
	p.evictedItems.WithLabelValues(e.Reason).Add(float64(e.Items))
}

var (
	_ dmfilter.Plugin       = (*Plugin)(nil)
	_ dmfilter.EventHandler = (*Plugin)(nil)
)
