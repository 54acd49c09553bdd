package ports

import "github.com/bft-labs/dmfilter/pkg/log"

// Logger provides structured logging capabilities.
type Logger = log.Logger

// Field represents a key-value pair for structured logging.
type Field = log.Field

// Field constructors re-exported for the application layer.
var (
	String   = log.String
	Int      = log.Int
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
