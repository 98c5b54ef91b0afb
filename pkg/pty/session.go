// Package pty owns pseudo-terminal sessions: one child process attached to
// a PTY per session, with asynchronous output delivery and explicit error
// values. Spawn failures are synchronous; everything after spawn is signaled
// through the output channel closing, never by crashing the caller.
package pty

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	creackpty "github.com/creack/pty"
)

var (
	// ErrSessionClosed is returned by writes and resizes after Close.
	ErrSessionClosed = errors.New("pty: session closed")
	// ErrInvalidDimensions rejects zero-sized resizes; prior dimensions
	// are retained.
	ErrInvalidDimensions = errors.New("pty: invalid dimensions")
	// ErrBrokenPipe is returned by writes after the child has exited.
	ErrBrokenPipe = errors.New("pty: broken pipe")
)

// readBufSize matches the chunk size used by shells and most emulators.
const readBufSize = 8192

// Session is one live PTY-attached child process.
type Session struct {
	path string
	args []string
	env  []string
	dir  string

	cols, rows uint16
	logger     *slog.Logger

	cmd    *exec.Cmd
	ptmx   *os.File
	output chan []byte

	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	exitCode int
}

// Option configures a Session before spawn.
type Option func(*Session)

// WithCommand sets the command path and arguments. Defaults to a login bash.
func WithCommand(path string, args ...string) Option {
	return func(s *Session) {
		s.path = path
		s.args = append([]string{path}, args...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(s *Session) { s.dir = dir }
}

// WithEnv appends environment variables (KEY=value) to the inherited set.
func WithEnv(env []string) Option {
	return func(s *Session) { s.env = env }
}

// WithSize sets the initial PTY dimensions.
func WithSize(cols, rows uint16) Option {
	return func(s *Session) {
		s.cols, s.rows = cols, rows
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Open spawns the configured command attached to a new PTY and starts the
// read pump. A non-nil error means the process never started and no session
// exists.
func Open(options ...Option) (*Session, error) {
	s := &Session{
		path:     "bash",
		args:     []string{"bash", "-l"},
		cols:     80,
		rows:     24,
		output:   make(chan []byte, 32),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	for _, opt := range options {
		opt(s)
	}

	cmd := exec.Command(s.args[0], s.args[1:]...)
	cmd.Dir = s.dir
	cmd.Env = append(os.Environ(), s.env...)
	if !hasTerm(cmd.Env) {
		cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	}

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Cols: s.cols,
		Rows: s.rows,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to start with PTY", "cmd", s.args, "error", err)
		}
		return nil, fmt.Errorf("spawn failed: %w", err)
	}
	s.cmd = cmd
	s.ptmx = ptmx

	if s.logger != nil {
		s.logger.Debug("session started",
			"cmd", s.args, "pid", cmd.Process.Pid, "cols", s.cols, "rows", s.rows)
	}

	go s.readLoop()
	return s, nil
}

func hasTerm(env []string) bool {
	for _, e := range env {
		if strings.HasPrefix(e, "TERM=") {
			return true
		}
	}
	return false
}

// readLoop pumps PTY output to the channel until EOF or error, then reaps
// the child. Channel closure is the stream-termination signal.
func (s *Session) readLoop() {
	defer close(s.output)
	defer s.reap()

	buf := make([]byte, readBufSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.output <- chunk
		}
		if err != nil {
			// EIO is the normal Linux close signal for a PTY master.
			if s.logger != nil && !errors.Is(err, io.EOF) {
				s.logger.Debug("pty read ended", "error", err)
			}
			return
		}
	}
}

func (s *Session) reap() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.exitCode = exitCode(err)
	s.mu.Unlock()
	close(s.done)
	if s.logger != nil {
		s.logger.Debug("session exited", "pid", s.cmd.Process.Pid, "exit", exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Output returns the channel of raw PTY output chunks. It is closed when
// the child exits or the session is closed; that closure is the only
// post-spawn failure signal.
func (s *Session) Output() <-chan []byte { return s.output }

// Pid returns the child process id.
func (s *Session) Pid() int { return s.cmd.Process.Pid }

// Write sends input bytes to the child.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrSessionClosed
	}
	n, err := s.ptmx.Write(p)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
			return n, fmt.Errorf("%w: %v", ErrBrokenPipe, err)
		}
		return n, fmt.Errorf("pty write: %w", err)
	}
	return n, nil
}

// Resize changes the PTY dimensions. Zero dimensions are rejected and the
// previous size is kept.
func (s *Session) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return ErrInvalidDimensions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := creackpty.Setsize(s.ptmx, &creackpty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return fmt.Errorf("pty resize: %w", err)
	}
	s.cols, s.rows = cols, rows
	return nil
}

// Size returns the last successfully applied dimensions.
func (s *Session) Size() (cols, rows uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Alive reports whether the child is still running.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits and returns its exit code (-1 when the
// process died abnormally or was killed).
func (s *Session) Wait() int {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Close terminates the session: the child is killed if still running and
// the PTY handle is released, unblocking any pending read immediately.
// Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.ptmx.Close()
	<-s.done
	if err != nil {
		return fmt.Errorf("pty close: %w", err)
	}
	return nil
}
