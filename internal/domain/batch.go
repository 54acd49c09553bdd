package domain

import "time"

// Batch is an ordered group of items dispatched together in one
// classification request. A batch is immutable once flushed: Items is never
// appended to or reordered after the intake hands it off.
type Batch struct {
	// ID correlates log lines and events for this batch.
	ID string

	// Items holds the batch content in submission order.
	Items []Item

	// CreatedAt is the flush time.
	CreatedAt time.Time
}

// NewBatch creates a batch that owns a private copy of items.
func NewBatch(id string, items []Item, now time.Time) *Batch {
	owned := make([]Item, len(items))
	copy(owned, items)
	return &Batch{
		ID:        id,
		Items:     owned,
		CreatedAt: now,
	}
}

// Size returns the number of items in the batch.
func (b *Batch) Size() int {
	return len(b.Items)
}

// Empty returns true if the batch has no items.
func (b *Batch) Empty() bool {
	return len(b.Items) == 0
}

// Texts returns the item texts in batch order.
func (b *Batch) Texts() []string {
	texts := make([]string, len(b.Items))
	for i, it := range b.Items {
		texts[i] = it.Text
	}
	return texts
}

// Result pairs an item with the label it was assigned.
type Result struct {
	Item  Item
	Label Label
}

// FallbackResults assigns label to every item of b, in batch order.
func FallbackResults(b *Batch, label Label) []Result {
	out := make([]Result, len(b.Items))
	for i, it := range b.Items {
		out[i] = Result{Item: it, Label: label}
	}
	return out
}
