// Package log provides a logging abstraction for dmfilter components.
//
// The Logger interface can be implemented by any logging library. A zerolog
// adapter and a no-op logger are provided.
//
// Use the zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or build a console logger at a given level:
//
//	logger, err := log.NewConsoleLogger(os.Stderr, "debug")
//
// Use the no-op logger for tests and silent embedding:
//
//	logger := log.NewNoopLogger()
package log
