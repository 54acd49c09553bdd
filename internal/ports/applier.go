package ports

import "github.com/bft-labs/dmfilter/internal/domain"

// ResultApplier mutates an item's presentation state once its label is known.
// The core calls Apply exactly once per accepted item, always from the
// pipeline goroutine. Implementations must not call back into the pipeline.
type ResultApplier interface {
	Apply(item domain.Item, label domain.Label)
}

// ApplierFunc adapts a function to ResultApplier.
type ApplierFunc func(item domain.Item, label domain.Label)

// Apply calls f(item, label).
func (f ApplierFunc) Apply(item domain.Item, label domain.Label) {
	f(item, label)
}
