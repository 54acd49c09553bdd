// Package dmfilter provides an embeddable filter that classifies a stream of
// short comments with an LLM and labels every one of them.
//
// Items are collected into batches by size or after a short quiet period,
// queued, and sent to an OpenAI-compatible chat completion endpoint with a
// bounded number of concurrent requests. The answer is aligned line by line
// with the batch; anything missing, malformed or failed resolves to the
// fallback label, so every accepted item receives exactly one label.
//
// # Basic Usage
//
//	cfg := dmfilter.DefaultConfig()
//	cfg.ServiceURL = "https://api.openai.com/v1"
//	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
//	cfg.Title = "Cat compilation"
//
//	f, err := dmfilter.New(cfg, dmfilter.WithOutput(os.Stdout, "text"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := f.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	_, _ = dmfilter.ScanLines(ctx, os.Stdin, "stdin", 1, f.Submit)
//	if err := f.Stop(); err != nil {
//	    log.Printf("stop: %v", err)
//	}
//
// # Overload
//
// When Config.MaxQueueLength is non-zero and batches arrive faster than the
// classifier answers, the oldest waiting batches are dropped and their items
// receive the fallback label. Zero keeps every batch.
//
// # Events and Plugins
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and register it with
// [WithEventHandler] to observe batching. [Plugin] implementations registered
// with [WithPlugin] share the filter's lifetime and may submit items.
//
// # Lifecycle States
//
// A Filter is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateDraining] or [StateCrashed]. Use [Filter.Status] to query it.
package dmfilter
