// Package title provides ports.TitleSource implementations.
package title

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
)

// DefaultSuffixPattern strips a trailing site name from page titles.
const DefaultSuffixPattern = `[-—]\s*bilibili.*$`

// Cleaner removes a trailing suffix from titles. The zero value leaves titles
// untouched apart from trimming.
type Cleaner struct {
	re *regexp.Regexp
}

// NewCleaner compiles pattern case-insensitively. An empty pattern disables
// suffix removal.
func NewCleaner(pattern string) (Cleaner, error) {
	if pattern == "" {
		return Cleaner{}, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Cleaner{}, fmt.Errorf("title suffix pattern: %v: %w", err, domain.ErrInvalidConfig)
	}
	return Cleaner{re: re}, nil
}

// Clean trims title and removes the configured suffix.
func (c Cleaner) Clean(title string) string {
	if c.re != nil {
		title = c.re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

// Static always returns the same title.
type Static struct {
	title string
}

// NewStatic returns a source for a fixed, already cleaned title.
func NewStatic(title string, cleaner Cleaner) *Static {
	return &Static{title: cleaner.Clean(title)}
}

// Title implements ports.TitleSource.
func (s *Static) Title() string {
	return s.title
}

// File reads the first line of a file every time a title is needed, so the
// subject can change while the filter runs.
type File struct {
	path    string
	cleaner Cleaner
	logger  ports.Logger

	mu   sync.Mutex
	last string
}

// NewFile creates a file-backed title source.
func NewFile(path string, cleaner Cleaner, logger ports.Logger) *File {
	return &File{path: path, cleaner: cleaner, logger: logger}
}

// Title implements ports.TitleSource. On read errors the previous title is
// returned.
func (f *File) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("read title file", ports.String("path", f.path), ports.Err(err))
		}
		return f.last
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	f.last = f.cleaner.Clean(string(line))
	return f.last
}
