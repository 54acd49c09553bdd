package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/dmfilter/internal/domain"
)

type keyHandle string

func (k keyHandle) Key() string { return string(k) }

func item(key, text string) domain.Item {
	return domain.Item{Text: text, Handle: keyHandle(key)}
}

func batchOf(id string, texts ...string) *domain.Batch {
	items := make([]domain.Item, len(texts))
	for i, t := range texts {
		items[i] = item(fmt.Sprintf("%s-%d", id, i), t)
	}
	return domain.NewBatch(id, items, time.Time{})
}

// manualTimer is an AfterFunc whose timers only fire when told to.
type manualTimer struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (m *manualTimer) After(d time.Duration, fn func()) Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &fakeTimer{d: d, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// last returns the most recently armed timer.
func (m *manualTimer) last() *fakeTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	return m.timers[len(m.timers)-1]
}

func (m *manualTimer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}
}

type flushed struct {
	batch   *domain.Batch
	trigger FlushTrigger
}
