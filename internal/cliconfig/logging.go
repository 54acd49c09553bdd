package cliconfig

import (
	"io"

	"github.com/bft-labs/dmfilter/pkg/log"
)

// Logger builds the console logger used by the CLI.
func Logger(w io.Writer, level string) (*log.ZerologAdapter, error) {
	return log.NewConsoleLogger(w, level)
}
