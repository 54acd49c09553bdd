package app

import (
	"time"

	"github.com/bft-labs/dmfilter/internal/domain"
)

// EventEmitter is notified of pipeline activity. All calls happen on the
// pipeline goroutine and must return quickly.
type EventEmitter interface {
	OnItemSubmitted(admission Admission)
	OnBatchFlushed(b *domain.Batch, trigger FlushTrigger)
	OnBatchDispatched(b *domain.Batch, inFlight int)
	OnBatchClassified(b *domain.Batch, results []domain.Result, duration time.Duration)
	// OnBatchDiscarded reports a batch resolved with the fallback label. For
	// DiscardTransport, err and duration describe the failed call.
	OnBatchDiscarded(b *domain.Batch, reason DiscardReason, err error, duration time.Duration)
}

type noopEmitter struct{}

func (noopEmitter) OnItemSubmitted(Admission)                                           {}
func (noopEmitter) OnBatchFlushed(*domain.Batch, FlushTrigger)                          {}
func (noopEmitter) OnBatchDispatched(*domain.Batch, int)                                {}
func (noopEmitter) OnBatchClassified(*domain.Batch, []domain.Result, time.Duration)     {}
func (noopEmitter) OnBatchDiscarded(*domain.Batch, DiscardReason, error, time.Duration) {}
