package dmfilter

import "time"

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ItemSubmittedEvent reports the intake's verdict on one item. Admission is
// one of "accepted", "empty", "annotated", "duplicate" or "closed".
type ItemSubmittedEvent struct {
	Admission string
	Accepted  bool
}

// BatchFlushedEvent is emitted when the open buffer becomes a batch. Trigger
// is "size", "timer", "manual" or "drain".
type BatchFlushedEvent struct {
	BatchID string
	Items   int
	Trigger string
}

// BatchDispatchedEvent is emitted when a batch is handed to the classifier.
type BatchDispatchedEvent struct {
	BatchID  string
	Items    int
	InFlight int
}

// BatchSettledEvent is emitted when a classification call completes. Err is
// set when the call failed and every item received the fallback label.
type BatchSettledEvent struct {
	BatchID string
	Items   int
	// Fallbacks counts items that ended with the fallback label.
	Fallbacks int
	Duration  time.Duration
	Err       error
}

// BatchEvictedEvent is emitted when a queued batch is resolved without a
// call. Reason is "overflow" or "shutdown".
type BatchEvictedEvent struct {
	BatchID string
	Items   int
	Reason  string
}

// EventHandler receives filter events. Except for OnStateChange, calls come
// from the pipeline goroutine and must return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnItemSubmitted(ItemSubmittedEvent)
	OnBatchFlushed(BatchFlushedEvent)
	OnBatchDispatched(BatchDispatchedEvent)
	OnBatchSettled(BatchSettledEvent)
	OnBatchEvicted(BatchEvictedEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)         {}
func (BaseEventHandler) OnItemSubmitted(ItemSubmittedEvent)     {}
func (BaseEventHandler) OnBatchFlushed(BatchFlushedEvent)       {}
func (BaseEventHandler) OnBatchDispatched(BatchDispatchedEvent) {}
func (BaseEventHandler) OnBatchSettled(BatchSettledEvent)       {}
func (BaseEventHandler) OnBatchEvicted(BatchEvictedEvent)       {}
