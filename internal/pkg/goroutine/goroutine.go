// Package goroutine runs background work with a concurrency cap, panic
// recovery and a single point to wait for everything on shutdown.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/gomfa/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager gets a non-positive limit.
const DefaultMaxGoroutine int = 100

// ErrRejected is returned by TryGo when the manager is closed or saturated.
var ErrRejected = errors.New("goroutine: task rejected")

// Manager runs tasks in goroutines with a concurrency limit and collects their errors.
type Manager struct {
	wg   sync.WaitGroup
	sema chan struct{}

	mu   sync.Mutex
	errs []error

	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a Manager that runs at most maxGoroutine tasks at once.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go schedules f, logging instead of blocking when the manager is full or closed.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if err := g.TryGo(ctx, f); err != nil {
		slog.WarnContext(ctx, "goroutine not started", "error", err)
	}
}

// TryGo schedules f or returns ErrRejected.
func (g *Manager) TryGo(ctx context.Context, f func(ctx context.Context) error) error {
	if g == nil {
		return ErrRejected
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		return ErrRejected
	}

	select {
	case g.sema <- struct{}{}:
	default:
		return ErrRejected
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() { <-g.sema }()
		defer g.recover(ctx)

		if ctx.Err() != nil {
			slog.WarnContext(ctx, "goroutine canceled before start", "because", ctx.Err())
			return
		}
		if err := f(ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()

	return nil
}

func (g *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
}

// Wait closes the manager to new work, waits for running tasks and joins their errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
