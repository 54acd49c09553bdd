package dmfilter

import "context"

// Plugin extends a Filter with components that share its lifetime, such as
// content sources or metrics exporters.
type Plugin interface {
	Name() string

	// Initialize is called by Start, in registration order. An error aborts
	// Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Stop, in reverse registration order.
	Shutdown(ctx context.Context) error
}

// PluginConfig hands plugins what they need to feed and observe the filter.
type PluginConfig struct {
	// Submit passes an item to the running filter.
	Submit func(Item) error

	// Flush finalizes the open batch.
	Flush func() error

	Logger Logger
}
