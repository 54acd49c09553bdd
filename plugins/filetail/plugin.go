// Package filetail follows a text file and submits each new line to a
// dmfilter.Filter. Lines already present when the filter starts are
// submitted first; appended lines follow as the file grows.
package filetail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/dmfilter/pkg/dmfilter"
	"github.com/bft-labs/dmfilter/pkg/log"
)

// Plugin tails one file.
type Plugin struct {
	mu sync.Mutex

	path          string
	source        string
	debounceDelay time.Duration

	submit func(dmfilter.Item) error
	logger dmfilter.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debounce *time.Timer
	offset   int64
	line     int
	stopped  bool
}

// Config holds configuration options for the file tail plugin.
type Config struct {
	// Path is the file to follow. Required.
	Path string

	// Source names the file in item handles.
	// Default: base name of Path
	Source string

	// DebounceDelay coalesces bursts of write notifications.
	// Default: 50 milliseconds
	DebounceDelay time.Duration
}

// New creates a file tail plugin.
func New(cfg Config) *Plugin {
	if cfg.Source == "" {
		cfg.Source = filepath.Base(cfg.Path)
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 50 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		source:        cfg.Source,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "filetail"
}

// Initialize checks the file and starts following it.
func (p *Plugin) Initialize(ctx context.Context, cfg dmfilter.PluginConfig) error {
	if p.path == "" {
		return fmt.Errorf("filetail: %w: path is required", dmfilter.ErrInvalidConfig)
	}
	if _, err := os.Stat(p.path); err != nil {
		return fmt.Errorf("filetail: %w", err)
	}

	p.mu.Lock()
	p.submit = cfg.Submit
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.offset = 0
	p.line = 0
	p.stopped = false
	p.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filetail: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("filetail: watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("following file", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops following the file. A trailing line without a newline is
// not submitted.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	p.stopped = true
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lines returns the number of lines submitted so far.
func (p *Plugin) Lines() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	p.readNew(ctx)

	name := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceRead(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("file watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceRead(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		p.readNew(ctx)
	})
}

// readNew submits every complete line written since the last read. A file
// that shrank is read again from the start; line numbers keep increasing.
func (p *Plugin) readNew(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || ctx.Err() != nil {
		return
	}

	f, err := os.Open(p.path)
	if err != nil {
		p.logger.Warn("cannot open followed file", log.String("path", p.path), log.Err(err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		p.logger.Warn("cannot stat followed file", log.String("path", p.path), log.Err(err))
		return
	}
	if info.Size() < p.offset {
		p.logger.Info("followed file truncated, reading from start",
			log.String("path", p.path),
			log.Int64("previous_offset", p.offset))
		p.offset = 0
	}
	if info.Size() == p.offset {
		return
	}

	if _, err := f.Seek(p.offset, io.SeekStart); err != nil {
		p.logger.Warn("cannot seek followed file", log.String("path", p.path), log.Err(err))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, info.Size()-p.offset))
	if err != nil {
		p.logger.Warn("cannot read followed file", log.String("path", p.path), log.Err(err))
		return
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return
	}
	complete := data[:end+1]

	last, err := dmfilter.ScanLines(ctx, bytes.NewReader(complete), p.source, p.line+1, p.submit)
	p.line = last
	if err != nil {
		if errors.Is(err, dmfilter.ErrClosed) || errors.Is(err, dmfilter.ErrNotRunning) {
			p.stopped = true
			return
		}
		p.logger.Error("submit from followed file failed", log.String("path", p.path), log.Err(err))
		return
	}
	p.offset += int64(len(complete))
	p.logger.Debug("read followed file",
		log.String("path", p.path),
		log.Int("last_line", last))
}

var _ dmfilter.Plugin = (*Plugin)(nil)
