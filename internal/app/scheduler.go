package app

import (
	"fmt"

	"github.com/bft-labs/dmfilter/internal/domain"
)

// DiscardReason records why a batch was resolved without classification.
type DiscardReason int

const (
	DiscardOverflow DiscardReason = iota
	DiscardTransport
	DiscardShutdown
)

// String returns a human-readable representation of the reason.
func (r DiscardReason) String() string {
	switch r {
	case DiscardOverflow:
		return "overflow"
	case DiscardTransport:
		return "transport"
	case DiscardShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Scheduler admits queued batches into at most limit concurrent transport
// calls. It owns the Batch Queue and the in-flight counter; both are only
// touched from the pipeline goroutine.
type Scheduler struct {
	queue    *BatchQueue
	limit    int
	inFlight int
	closed   bool

	// send starts the transport call for b. It must not block; the
	// completion is reported back through Done.
	send func(b *domain.Batch)

	// discard resolves b with the fallback label.
	discard func(b *domain.Batch, reason DiscardReason)
}

// NewScheduler creates a scheduler over queue.
func NewScheduler(queue *BatchQueue, limit int, send func(*domain.Batch), discard func(*domain.Batch, DiscardReason)) (*Scheduler, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("max concurrent requests must be positive: %w", domain.ErrInvalidConfig)
	}
	return &Scheduler{
		queue:   queue,
		limit:   limit,
		send:    send,
		discard: discard,
	}, nil
}

// Enqueue pushes a freshly flushed batch and runs an admission pass.
func (s *Scheduler) Enqueue(b *domain.Batch) {
	if s.closed {
		s.discard(b, DiscardShutdown)
		return
	}
	for _, old := range s.queue.Push(b) {
		s.discard(old, DiscardOverflow)
	}
	s.AdmitMore()
}

// AdmitMore dispatches queued batches while slots are free, then applies the
// overflow policy to whatever is left waiting.
func (s *Scheduler) AdmitMore() {
	if s.closed {
		return
	}
	for s.inFlight < s.limit {
		b, ok := s.queue.PopFront()
		if !ok {
			break
		}
		s.inFlight++
		s.send(b)
	}
	for _, old := range s.queue.Trim() {
		s.discard(old, DiscardOverflow)
	}
}

// Done records the completion of one transport call and re-runs admission.
// It must be called exactly once per sent batch, after its results have been
// applied.
func (s *Scheduler) Done() {
	if s.inFlight == 0 {
		panic("app: scheduler Done called with nothing in flight")
	}
	s.inFlight--
	s.AdmitMore()
}

// Close stops admission and discards every queued batch. In-flight calls
// still complete through Done.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, b := range s.queue.Drain() {
		s.discard(b, DiscardShutdown)
	}
}

// InFlight returns the number of outstanding transport calls.
func (s *Scheduler) InFlight() int {
	return s.inFlight
}

// Queued returns the number of batches waiting for a slot.
func (s *Scheduler) Queued() int {
	return s.queue.Len()
}

// Idle reports whether nothing is queued or in flight.
func (s *Scheduler) Idle() bool {
	return s.inFlight == 0 && s.queue.Len() == 0
}
