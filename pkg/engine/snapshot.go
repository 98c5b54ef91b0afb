package engine

import (
	"github.com/loomterm/loom/pkg/block"
	"github.com/loomterm/loom/pkg/grid"
)

// Snapshot is a consistent point-in-time view of a session: the grid, the
// ordered block list, and session metadata. It shares no memory with the
// engine and stays valid (and readable) after the session ends.
type Snapshot struct {
	Grid   grid.Snapshot
	Blocks []block.Block

	Title string
	Cwd   string

	// Version increases with every applied change; equal versions imply
	// byte-identical snapshots.
	Version int64

	// Live is false once the child process has exited; Exit then holds its
	// exit code (-1 for abnormal termination).
	Live bool
	Exit int
}

// Snapshot returns the current consistent view. Concurrent calls never
// block each other; the mutating path is held out only for the duration of
// the copy.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		Grid:    e.grid.Snapshot(),
		Blocks:  e.seg.Blocks(),
		Title:   e.title,
		Cwd:     e.cwd,
		Version: e.version,
		Live:    !e.exited,
		Exit:    e.exit,
	}
}

// Version returns the current change counter without copying state.
func (e *Engine) Version() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Subscribe returns a channel that receives a (coalesced) signal after each
// state change, plus a func that detaches the subscription. Slow subscribers
// miss intermediate signals, never block the engine.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.subMu.Lock()
	e.subs = append(e.subs, ch)
	e.subMu.Unlock()
	unsubscribe := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		for i, sub := range e.subs {
			if sub == ch {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
	return ch, unsubscribe
}

func (e *Engine) notify() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
