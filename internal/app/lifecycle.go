package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
)

// ShutdownTimeout bounds how long Stop waits for outstanding batches.
const ShutdownTimeout = 30 * time.Second

// State is the lifecycle state of a filter instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateDraining
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// allowed lists the legal successors of every state.
var allowed = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateDraining, StateCrashed},
	StateRunning:  {StateDraining, StateCrashed},
	StateDraining: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// StateListener is called after every successful transition.
type StateListener interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards the Start/Stop state machine and tracks the goroutines a
// running instance owns.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	logger   ports.Logger
	listener StateListener
}

// NewLifecycle creates a lifecycle in StateStopped. listener may be nil.
func NewLifecycle(logger ports.Logger, listener StateListener) *Lifecycle {
	return &Lifecycle{
		state:    StateStopped,
		logger:   logger,
		listener: listener,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to next if the state machine allows it. Leaving a
// stopped state illegally yields ErrNotRunning; every other illegal move
// yields ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(next State, reason string) error {
	l.mu.Lock()
	prev := l.state
	if !canMove(prev, next) {
		l.mu.Unlock()
		if prev == StateStopped || prev == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = next
	l.mu.Unlock()

	l.notify(prev, next, reason)
	return nil
}

// TransitionFrom moves to next only if the current state is from, and
// reports whether it did.
func (l *Lifecycle) TransitionFrom(from, next State, reason string) bool {
	l.mu.Lock()
	if l.state != from || !canMove(from, next) {
		l.mu.Unlock()
		return false
	}
	l.state = next
	l.mu.Unlock()

	l.notify(from, next, reason)
	return true
}

func (l *Lifecycle) notify(prev, next State, reason string) {
	if l.listener != nil {
		l.listener.OnStateChange(prev, next, reason)
	}
	l.logger.Info("state transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)
}

func canMove(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart reports whether Start may be called.
func (l *Lifecycle) CanStart() bool {
	s := l.State()
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether Stop may be called.
func (l *Lifecycle) CanStop() bool {
	s := l.State()
	return s == StateRunning || s == StateStarting
}

// SetCancel stores the function that aborts the running instance.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel aborts the running instance, if any.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn on a tracked goroutine.
func (l *Lifecycle) Go(fn func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		fn()
	}()
}

// Wait blocks until every tracked goroutine has returned or timeout elapses,
// in which case it returns ErrShutdownTimeout.
func (l *Lifecycle) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.workers.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
