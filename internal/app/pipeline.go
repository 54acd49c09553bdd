package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
	"github.com/bft-labs/dmfilter/pkg/log"
)

// DefaultMailboxSize is the pipeline mailbox capacity.
const DefaultMailboxSize = 1024

// PipelineConfig contains configuration for the pipeline.
type PipelineConfig struct {
	BatchSize      int
	BatchTimeout   time.Duration
	MaxConcurrent  int
	MaxQueueLength int
	DedupCapacity  int
	MailboxSize    int

	// Labels is the vocabulary announced to the classifier.
	Labels []string
	Policy domain.LabelPolicy
}

// Dependencies are the collaborators a pipeline talks to.
type Dependencies struct {
	Classifier ports.Classifier
	Applier    ports.ResultApplier
	Titles     ports.TitleSource
	Decoder    Decoder
	Logger     ports.Logger
	Emitter    EventEmitter
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Buffered    int
	Queued      int
	InFlight    int
	MaxInFlight int
	Draining    bool
}

// Pipeline wires intake, queue, scheduler and aligner together and runs them
// on a single goroutine. Every state change arrives as a closure on the
// mailbox; transport calls run concurrently and post their completion back.
type Pipeline struct {
	config     PipelineConfig
	classifier ports.Classifier
	applier    ports.ResultApplier
	titles     ports.TitleSource
	logger     ports.Logger
	emitter    EventEmitter

	prompt  *PromptBuilder
	aligner *Aligner
	intake  *Intake
	sched   *Scheduler

	mailbox chan func()
	stopped chan struct{}
	started atomic.Bool
	calls   sync.WaitGroup

	// gate orders post against seal: once shut is set no closure can enter
	// the mailbox.
	gate   sync.RWMutex
	shut   bool
	sealed chan struct{}

	// Owned by the Run goroutine.
	ctx         context.Context
	draining    bool
	closing     bool
	maxInFlight int
}

// NewPipeline creates a pipeline. Call Run to start it.
func NewPipeline(config PipelineConfig, deps Dependencies) (*Pipeline, error) {
	if deps.Classifier == nil {
		return nil, fmt.Errorf("classifier is required: %w", domain.ErrInvalidConfig)
	}
	if deps.Applier == nil {
		return nil, fmt.Errorf("result applier is required: %w", domain.ErrInvalidConfig)
	}
	if config.Policy.Fallback() == "" {
		return nil, fmt.Errorf("fallback label is required: %w", domain.ErrInvalidConfig)
	}
	if config.MailboxSize <= 0 {
		config.MailboxSize = DefaultMailboxSize
	}

	p := &Pipeline{
		config:     config,
		classifier: deps.Classifier,
		applier:    deps.Applier,
		titles:     deps.Titles,
		logger:     deps.Logger,
		emitter:    deps.Emitter,
		prompt:     NewPromptBuilder(config.Labels, string(config.Policy.Fallback())),
		aligner:    NewAligner(deps.Decoder, config.Policy.Fallback()),
		mailbox:    make(chan func(), config.MailboxSize),
		stopped:    make(chan struct{}),
		sealed:     make(chan struct{}),
	}
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	if p.emitter == nil {
		p.emitter = noopEmitter{}
	}

	sched, err := NewScheduler(NewBatchQueue(config.MaxQueueLength), config.MaxConcurrent, p.send, p.discard)
	if err != nil {
		return nil, err
	}
	p.sched = sched

	intake, err := NewIntake(IntakeConfig{
		BatchSize:     config.BatchSize,
		BatchTimeout:  config.BatchTimeout,
		DedupCapacity: config.DedupCapacity,
	}, p.afterFunc, uuid.NewString, p.flushed)
	if err != nil {
		return nil, err
	}
	p.intake = intake

	return p, nil
}

// Run executes the pipeline loop until Drain completes or ctx is canceled.
// On cancellation, queued batches and the open buffer are resolved with the
// fallback label and in-flight calls are canceled; Run returns only after
// every accepted item has been applied.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return domain.ErrAlreadyRunning
	}
	p.ctx = ctx
	defer close(p.stopped)

	for {
		select {
		case fn := <-p.mailbox:
			fn()
		case <-ctx.Done():
			p.abort()
			return ctx.Err()
		}

		if p.draining && p.intake.Buffered() == 0 && p.sched.Idle() {
			p.seal()
			p.calls.Wait()
			p.logger.Info("pipeline drained")
			return nil
		}
	}
}

// Submit hands one candidate item to the intake. It is safe to call from any
// goroutine. Filtering happens asynchronously; ErrClosed is returned once the
// pipeline has stopped.
func (p *Pipeline) Submit(item domain.Item) error {
	if !p.post(func() { p.accept(item) }) {
		return domain.ErrClosed
	}
	return nil
}

// Flush finalizes the open buffer immediately.
func (p *Pipeline) Flush() error {
	if !p.post(func() { p.intake.Flush(TriggerManual) }) {
		return domain.ErrClosed
	}
	return nil
}

// Drain stops intake, flushes the open buffer and waits until every batch
// has been resolved and Run has returned.
func (p *Pipeline) Drain(ctx context.Context) error {
	posted := p.post(func() {
		p.draining = true
		p.intake.Flush(TriggerDrain)
	})
	if !posted {
		return nil
	}
	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot taken on the pipeline goroutine.
func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if !p.post(func() { reply <- p.snapshot() }) {
		return Stats{}, domain.ErrClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-p.stopped:
		return Stats{}, domain.ErrClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Done is closed when Run has returned.
func (p *Pipeline) Done() <-chan struct{} {
	return p.stopped
}

func (p *Pipeline) post(fn func()) bool {
	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.shut {
		return false
	}
	select {
	case p.mailbox <- fn:
		return true
	case <-p.sealed:
		return false
	}
}

// seal rejects all further posts, then runs whatever is still in the
// mailbox so that every post that returned true is handled. Items submitted
// that late are rejected as closed.
func (p *Pipeline) seal() {
	p.closing = true
	close(p.sealed)
	p.gate.Lock()
	p.shut = true
	p.gate.Unlock()
	for {
		select {
		case fn := <-p.mailbox:
			fn()
		default:
			return
		}
	}
}

func (p *Pipeline) afterFunc(d time.Duration, fn func()) Stopper {
	return time.AfterFunc(d, func() { p.post(fn) })
}

func (p *Pipeline) accept(item domain.Item) {
	admission := RejectedClosed
	if !p.draining && !p.closing {
		admission = p.intake.Submit(item)
	}
	p.emitter.OnItemSubmitted(admission)
}

func (p *Pipeline) flushed(b *domain.Batch, trigger FlushTrigger) {
	p.logger.Debug("batch flushed",
		ports.String("batch", b.ID),
		ports.Int("items", b.Size()),
		ports.String("trigger", trigger.String()),
	)
	p.emitter.OnBatchFlushed(b, trigger)
	p.sched.Enqueue(b)
}

// send is called by the scheduler after it has counted b as in flight.
func (p *Pipeline) send(b *domain.Batch) {
	req := p.prompt.Build(b, p.title())
	inFlight := p.sched.InFlight()
	if inFlight > p.maxInFlight {
		p.maxInFlight = inFlight
	}

	p.logger.Debug("batch dispatched",
		ports.String("batch", b.ID),
		ports.Int("items", b.Size()),
		ports.Int("in_flight", inFlight),
	)
	p.emitter.OnBatchDispatched(b, inFlight)

	ctx := p.ctx
	p.calls.Add(1)
	go func() {
		defer p.calls.Done()
		start := time.Now()
		body, err := p.classifier.Classify(ctx, req)
		elapsed := time.Since(start)
		p.post(func() { p.complete(b, body, err, elapsed) })
	}()
}

// complete is the single continuation of every transport call.
func (p *Pipeline) complete(b *domain.Batch, body []byte, err error, elapsed time.Duration) {
	if err != nil {
		p.logger.Warn("classification failed, applying fallback",
			ports.String("batch", b.ID),
			ports.Int("items", b.Size()),
			ports.Duration("duration", elapsed),
			ports.Err(err),
		)
		p.resolve(b, DiscardTransport, err, elapsed)
	} else {
		results := p.aligner.Align(body, b)
		p.apply(results)
		p.logger.Info("batch classified",
			ports.String("batch", b.ID),
			ports.Int("items", b.Size()),
			ports.Duration("duration", elapsed),
		)
		p.emitter.OnBatchClassified(b, results, elapsed)
	}
	p.sched.Done()
}

// discard is the scheduler's hook for overflow and shutdown.
func (p *Pipeline) discard(b *domain.Batch, reason DiscardReason) {
	if reason == DiscardOverflow {
		p.logger.Warn("queue overflow, discarding oldest batch",
			ports.String("batch", b.ID),
			ports.Int("items", b.Size()),
			ports.Int("queue_limit", p.config.MaxQueueLength),
		)
	}
	p.resolve(b, reason, nil, 0)
}

func (p *Pipeline) resolve(b *domain.Batch, reason DiscardReason, err error, elapsed time.Duration) {
	p.apply(p.aligner.Fallback(b))
	p.emitter.OnBatchDiscarded(b, reason, err, elapsed)
}

func (p *Pipeline) apply(results []domain.Result) {
	for _, r := range results {
		p.applyOne(r)
	}
}

func (p *Pipeline) applyOne(r domain.Result) {
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("result applier panicked", ports.Any("panic", v))
		}
	}()
	p.applier.Apply(r.Item, r.Label)
}

func (p *Pipeline) title() string {
	if p.titles == nil {
		return ""
	}
	return p.titles.Title()
}

// abort resolves everything outstanding after ctx cancellation.
func (p *Pipeline) abort() {
	p.closing = true
	p.sched.Close()
	p.intake.Flush(TriggerDrain)
	for p.sched.InFlight() > 0 {
		fn := <-p.mailbox
		fn()
	}
	p.seal()
	p.calls.Wait()
	p.logger.Info("pipeline aborted")
}

func (p *Pipeline) snapshot() Stats {
	return Stats{
		Buffered:    p.intake.Buffered(),
		Queued:      p.sched.Queued(),
		InFlight:    p.sched.InFlight(),
		MaxInFlight: p.maxInFlight,
		Draining:    p.draining || p.closing,
	}
}
