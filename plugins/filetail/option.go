package filetail

import "github.com/bft-labs/dmfilter/pkg/dmfilter"

// WithFileTail returns a dmfilter Option that follows a file and submits its
// lines.
//
// Usage:
//
//	f, err := dmfilter.New(cfg,
//	    filetail.WithFileTail(filetail.Config{Path: "chat.log"}),
//	)
func WithFileTail(cfg Config) dmfilter.Option {
	return dmfilter.WithPlugin(New(cfg))
}
