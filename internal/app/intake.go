package app

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bft-labs/dmfilter/internal/domain"
)

// DefaultDedupCapacity bounds how many handles the intake remembers for
// deduplication.
const DefaultDedupCapacity = 4096

// Admission is the intake's verdict on a submitted item.
type Admission int

const (
	Accepted Admission = iota
	RejectedEmpty
	RejectedAnnotated
	RejectedDuplicate
	RejectedClosed
)

// String returns a human-readable representation of the admission.
func (a Admission) String() string {
	switch a {
	case Accepted:
		return "accepted"
	case RejectedEmpty:
		return "empty"
	case RejectedAnnotated:
		return "annotated"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FlushTrigger records why a batch was flushed.
type FlushTrigger int

const (
	TriggerSize FlushTrigger = iota
	TriggerTimer
	TriggerManual
	TriggerDrain
)

// String returns a human-readable representation of the trigger.
func (t FlushTrigger) String() string {
	switch t {
	case TriggerSize:
		return "size"
	case TriggerTimer:
		return "timer"
	case TriggerManual:
		return "manual"
	case TriggerDrain:
		return "drain"
	default:
		return "unknown"
	}
}

// Stopper cancels a scheduled action. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules fn to run once after d and returns a handle that
// cancels it. The pipeline's implementation delivers fn on the pipeline
// goroutine.
type AfterFunc func(d time.Duration, fn func()) Stopper

// IntakeConfig configures an Intake.
type IntakeConfig struct {
	BatchSize     int
	BatchTimeout  time.Duration
	DedupCapacity int
}

// Intake accumulates accepted items into the single open batch buffer and
// flushes it when the size threshold is reached or the debounce timer fires.
// Intake is not safe for concurrent use; the pipeline goroutine owns it.
type Intake struct {
	size    int
	timeout time.Duration
	after   AfterFunc
	onFlush func(b *domain.Batch, trigger FlushTrigger)
	newID   func() string
	now     func() time.Time

	buf  []domain.Item
	seen *lru.Cache

	// pending is the armed debounce timer, nil when disarmed. gen identifies
	// the current arming so a stale firing is ignored.
	pending Stopper
	gen     uint64
}

// NewIntake creates an intake that hands every flushed batch to onFlush.
func NewIntake(cfg IntakeConfig, after AfterFunc, newID func() string, onFlush func(*domain.Batch, FlushTrigger)) (*Intake, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive: %w", domain.ErrInvalidConfig)
	}
	if cfg.BatchTimeout <= 0 {
		return nil, fmt.Errorf("batch timeout must be positive: %w", domain.ErrInvalidConfig)
	}
	capacity := cfg.DedupCapacity
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	seen, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("dedup cache: %w", err)
	}
	return &Intake{
		size:    cfg.BatchSize,
		timeout: cfg.BatchTimeout,
		after:   after,
		onFlush: onFlush,
		newID:   newID,
		now:     time.Now,
		buf:     make([]domain.Item, 0, cfg.BatchSize),
		seen:    seen,
	}, nil
}

// Submit filters one candidate item and appends it to the open buffer.
// Rejections have no side effect.
func (in *Intake) Submit(item domain.Item) Admission {
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return RejectedEmpty
	}
	if domain.HasAnnotation(text) {
		return RejectedAnnotated
	}
	if item.Handle != nil {
		key := item.Handle.Key()
		if last, ok := in.seen.Get(key); ok && last.(string) == text {
			return RejectedDuplicate
		}
		in.seen.Add(key, text)
	}

	item.Text = text
	in.buf = append(in.buf, item)

	if len(in.buf) >= in.size {
		in.Flush(TriggerSize)
	} else if in.pending == nil {
		in.arm()
	}
	return Accepted
}

// Flush finalizes the open buffer as a batch. It always disarms the debounce
// timer and is a no-op on an empty buffer.
func (in *Intake) Flush(trigger FlushTrigger) {
	in.disarm()
	if len(in.buf) == 0 {
		return
	}
	b := domain.NewBatch(in.newID(), in.buf, in.now())
	in.buf = in.buf[:0]
	in.onFlush(b, trigger)
}

// Buffered returns the number of items waiting in the open buffer.
func (in *Intake) Buffered() int {
	return len(in.buf)
}

// Armed reports whether the debounce timer is pending.
func (in *Intake) Armed() bool {
	return in.pending != nil
}

func (in *Intake) arm() {
	in.gen++
	gen := in.gen
	in.pending = in.after(in.timeout, func() { in.fire(gen) })
}

func (in *Intake) disarm() {
	if in.pending == nil {
		return
	}
	in.pending.Stop()
	in.pending = nil
	in.gen++
}

// fire runs when the debounce timer elapses.
func (in *Intake) fire(gen uint64) {
	if in.pending == nil || gen != in.gen {
		return
	}
	in.pending = nil
	in.Flush(TriggerTimer)
}
