package app

import "github.com/bft-labs/dmfilter/internal/domain"

// BatchQueue is the FIFO of flushed batches waiting for a dispatch slot.
// A limit of zero means unbounded. BatchQueue is not safe for concurrent use.
type BatchQueue struct {
	limit   int
	batches []*domain.Batch
}

// NewBatchQueue creates a queue holding at most limit batches (0 = unbounded).
func NewBatchQueue(limit int) *BatchQueue {
	if limit < 0 {
		limit = 0
	}
	return &BatchQueue{limit: limit}
}

// Push appends b to the tail and enforces the bound. It returns the batches
// evicted from the head, oldest first.
func (q *BatchQueue) Push(b *domain.Batch) []*domain.Batch {
	q.batches = append(q.batches, b)
	return q.Trim()
}

// PopFront removes and returns the head batch. ok is false when the queue is
// empty.
func (q *BatchQueue) PopFront() (b *domain.Batch, ok bool) {
	if len(q.batches) == 0 {
		return nil, false
	}
	b = q.batches[0]
	q.batches[0] = nil
	q.batches = q.batches[1:]
	return b, true
}

// Trim evicts head batches until the length bound holds and returns them in
// eviction order.
func (q *BatchQueue) Trim() []*domain.Batch {
	if q.limit == 0 || len(q.batches) <= q.limit {
		return nil
	}
	n := len(q.batches) - q.limit
	evicted := make([]*domain.Batch, n)
	copy(evicted, q.batches[:n])
	for i := 0; i < n; i++ {
		q.batches[i] = nil
	}
	q.batches = q.batches[n:]
	return evicted
}

// Drain removes and returns every queued batch, oldest first.
func (q *BatchQueue) Drain() []*domain.Batch {
	out := q.batches
	q.batches = nil
	return out
}

// Len returns the number of queued batches.
func (q *BatchQueue) Len() int {
	return len(q.batches)
}

// Limit returns the configured bound (0 = unbounded).
func (q *BatchQueue) Limit() int {
	return q.limit
}
