// Package engine wires a PTY session, the stream parser, the grid, and the
// block segmenter into one terminal engine. Each engine has exactly one
// mutating goroutine (the read loop applying parser output in arrival
// order); any number of readers take consistent snapshots concurrently.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/loomterm/loom/pkg/block"
	"github.com/loomterm/loom/pkg/grid"
	"github.com/loomterm/loom/pkg/pty"
	"github.com/loomterm/loom/pkg/vt"
)

// Config describes the session an Engine should own.
type Config struct {
	// ID identifies the session; a fresh UUID is generated when zero.
	ID uuid.UUID

	Command string
	Args    []string
	Dir     string
	Env     []string

	Cols, Rows uint16
	Scrollback int

	Logger *slog.Logger

	// BlockSink, when set, receives every closed block. Deliveries happen
	// on a dedicated goroutine; a slow sink drops blocks rather than stall
	// the read loop.
	BlockSink func(block.Block)

	// Echo, when set, receives every raw output chunk before it is parsed.
	// Used to mirror the PTY to an attached terminal.
	Echo io.Writer
}

// Engine is one live terminal session plus its derived state.
type Engine struct {
	id     uuid.UUID
	sess   *pty.Session
	logger *slog.Logger
	echo   io.Writer

	mu      sync.RWMutex
	grid    *grid.Grid
	seg     *block.Segmenter
	parser  *vt.Parser
	title   string
	cwd     string
	version int64
	exited  bool
	exit    int

	subMu sync.Mutex
	subs  []chan struct{}

	sink     chan block.Block
	sinkDone chan struct{}
	done     chan struct{}
}

// New spawns the session and starts the engine's read loop. Spawn failures
// are returned synchronously; no engine exists on error.
func New(cfg Config) (*Engine, error) {
	if cfg.Cols == 0 {
		cfg.Cols = 80
	}
	if cfg.Rows == 0 {
		cfg.Rows = 24
	}
	if cfg.Scrollback <= 0 {
		cfg.Scrollback = grid.DefaultScrollback
	}
	if cfg.Command == "" {
		cfg.Command = "bash"
		cfg.Args = []string{"-l"}
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	e := &Engine{
		id:     cfg.ID,
		logger: cfg.Logger,
		echo:   cfg.Echo,
		grid:   grid.New(int(cfg.Cols), int(cfg.Rows), cfg.Scrollback),
		done:   make(chan struct{}),
		exit:   -1,
	}
	e.seg = block.NewSegmenter(
		block.WithRowFunc(e.grid.AbsoluteCursorRow),
		block.WithOnClose(e.enqueueBlock),
		block.WithLogger(cfg.Logger),
	)
	e.parser = vt.New(
		&tap{grid: e.grid, seg: e.seg},
		vt.WithMarkerHandler(&markers{e: e}),
		vt.WithLogger(cfg.Logger),
	)

	if cfg.BlockSink != nil {
		e.sink = make(chan block.Block, 64)
		e.sinkDone = make(chan struct{})
		go e.drainSink(cfg.BlockSink)
	}

	sess, err := pty.Open(
		pty.WithCommand(cfg.Command, cfg.Args...),
		pty.WithDir(cfg.Dir),
		pty.WithEnv(cfg.Env),
		pty.WithSize(cfg.Cols, cfg.Rows),
		pty.WithLogger(cfg.Logger),
	)
	if err != nil {
		if e.sink != nil {
			close(e.sink)
		}
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.sess = sess

	go e.run()
	return e, nil
}

// ID is the engine's stable session identifier.
func (e *Engine) ID() uuid.UUID { return e.id }

// run is the single mutating path: it applies every output chunk to the
// parser in arrival order, then finalizes state when the stream ends.
func (e *Engine) run() {
	for chunk := range e.sess.Output() {
		if e.echo != nil {
			e.echo.Write(chunk)
		}
		e.mu.Lock()
		e.parser.Feed(chunk)
		e.version++
		e.mu.Unlock()
		e.notify()
	}

	exit := e.sess.Wait()
	e.mu.Lock()
	e.seg.ForceClose()
	e.exited = true
	e.exit = exit
	e.version++
	e.mu.Unlock()
	e.notify()

	if e.sink != nil {
		close(e.sink)
		<-e.sinkDone
	}
	close(e.done)

	if e.logger != nil {
		e.logger.Info("session ended", "session", e.id, "exit", exit)
	}
}

func (e *Engine) enqueueBlock(b block.Block) {
	if e.sink == nil {
		return
	}
	select {
	case e.sink <- b:
	default:
		if e.logger != nil {
			e.logger.Warn("block sink full, dropping block", "block", b.ID)
		}
	}
}

func (e *Engine) drainSink(fn func(block.Block)) {
	defer close(e.sinkDone)
	for b := range e.sink {
		fn(b)
	}
}

// Write sends input bytes to the child process.
func (e *Engine) Write(p []byte) (int, error) { return e.sess.Write(p) }

// SendInterrupt forwards Ctrl+C to the child.
func (e *Engine) SendInterrupt() error { return e.sess.SendInterrupt() }

// SendEOF forwards Ctrl+D to the child.
func (e *Engine) SendEOF() error { return e.sess.SendEOF() }

// SendEscape forwards ESC to the child.
func (e *Engine) SendEscape() error { return e.sess.SendEscape() }

// Resize applies new dimensions to the PTY and the grid. Invalid dimensions
// are rejected with the prior size retained.
func (e *Engine) Resize(cols, rows uint16) error {
	if err := e.sess.Resize(cols, rows); err != nil {
		return err
	}
	e.mu.Lock()
	e.grid.Resize(int(cols), int(rows))
	e.version++
	e.mu.Unlock()
	e.notify()
	return nil
}

// SetScrollbackCapacity applies a new scrollback bound, keeping the newest
// rows. Used for config hot-reload.
func (e *Engine) SetScrollbackCapacity(capacity int) {
	e.mu.Lock()
	e.grid.SetScrollbackCapacity(capacity)
	e.version++
	e.mu.Unlock()
	e.notify()
}

// Close terminates the session. The grid and blocks remain readable via
// Snapshot after Close returns.
func (e *Engine) Close() error {
	err := e.sess.Close()
	<-e.done
	return err
}

// Done is closed once the session has ended and all state is final.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Alive reports whether the child process is still running.
func (e *Engine) Alive() bool { return e.sess.Alive() }
