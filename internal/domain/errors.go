package domain

import "errors"

// Domain errors represent error conditions in the dmfilter domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("dmfilter: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("dmfilter: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("dmfilter: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("dmfilter: invalid configuration")

	// ErrClosed is returned when an item is submitted to a pipeline that has
	// stopped accepting work.
	ErrClosed = errors.New("dmfilter: pipeline closed")

	// ErrClassifierStatus is returned when the classifier answers with a
	// non-success HTTP status.
	ErrClassifierStatus = errors.New("dmfilter: classifier returned non-success status")

	// ErrRateLimited is returned when the classifier answers 429.
	ErrRateLimited = errors.New("dmfilter: classifier rate limited")
)
