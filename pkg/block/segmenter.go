package block

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxOutputBytes caps the text captured per block. The grid remains the
// source of truth for full output; the block copy is for history and search.
const maxOutputBytes = 1 << 20

// Segmenter consumes semantic marker events plus a tap of the printed text
// stream and produces Blocks. It satisfies vt.MarkerHandler. All methods
// are called from the session's single writer goroutine; Blocks() may be
// called concurrently only under the engine's snapshot lock, like the grid.
type Segmenter struct {
	state   State
	current *Block
	closed  []Block

	cwd   string
	cmd   strings.Builder
	out   strings.Builder
	trunc bool

	rowFn   func() int // absolute cursor row, supplied by the engine
	onClose func(Block)
	clock   func() time.Time
	logger  *slog.Logger
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithRowFunc supplies the absolute-cursor-row callback used to record
// block row ranges.
func WithRowFunc(fn func() int) SegmenterOption {
	return func(s *Segmenter) { s.rowFn = fn }
}

// WithOnClose registers a callback invoked with every block as it closes,
// force-closes included.
func WithOnClose(fn func(Block)) SegmenterOption {
	return func(s *Segmenter) { s.onClose = fn }
}

// WithLogger sets the segmenter's logger.
func WithLogger(logger *slog.Logger) SegmenterOption {
	return func(s *Segmenter) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) SegmenterOption {
	return func(s *Segmenter) { s.clock = clock }
}

// NewSegmenter creates an idle segmenter.
func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current protocol state.
func (s *Segmenter) State() State { return s.state }

// Cwd returns the last working directory reported by the shell.
func (s *Segmenter) Cwd() string { return s.cwd }

// Blocks returns all closed blocks followed by the open block, if any,
// in stream order. The slice and its elements are copies.
func (s *Segmenter) Blocks() []Block {
	out := make([]Block, len(s.closed), len(s.closed)+1)
	copy(out, s.closed)
	if s.current != nil {
		cur := *s.current
		cur.Command = strings.TrimSpace(s.cmd.String())
		cur.Output = s.out.String()
		if s.rowFn != nil {
			cur.EndRow = s.rowFn()
		}
		out = append(out, cur)
	}
	return out
}

// --- vt.MarkerHandler ---

// PromptStart (OSC 133;A) closes any block still open: a fresh prompt
// means the previous command is done even if its end marker was lost.
func (s *Segmenter) PromptStart() {
	if s.current != nil {
		s.close(ExitUnknown)
	}
	s.state = Idle
}

// CommandStart (OSC 133;B) opens a block and begins command-text capture.
func (s *Segmenter) CommandStart() {
	if s.current != nil {
		s.close(ExitUnknown)
	}
	b := &Block{
		ID:        uuid.New(),
		Cwd:       s.cwd,
		StartedAt: s.clock(),
	}
	if s.rowFn != nil {
		b.StartRow = s.rowFn()
	}
	s.current = b
	s.cmd.Reset()
	s.out.Reset()
	s.trunc = false
	s.state = InCommand
}

// CommandExecuted (OSC 133;C) ends command-text capture; output follows.
func (s *Segmenter) CommandExecuted() {
	if s.current == nil {
		// C without B: open a block with no command text rather than
		// lose the output that follows.
		s.CommandStart()
	}
	s.state = InOutput
}

// CommandFinished (OSC 133;D) closes the open block with its exit code.
func (s *Segmenter) CommandFinished(exitCode int, hasCode bool) {
	if s.current == nil {
		if s.logger != nil {
			s.logger.Debug("end marker without open block")
		}
		s.state = Idle
		return
	}
	if !hasCode {
		exitCode = ExitUnknown
	}
	s.close(exitCode)
	s.state = Idle
}

// CwdChanged (OSC 7) updates the directory stamped onto new blocks.
func (s *Segmenter) CwdChanged(path string) {
	s.cwd = path
	if s.current != nil && s.current.Cwd == "" {
		s.current.Cwd = path
	}
}

// TitleChanged is part of vt.MarkerHandler; titles are engine state, not
// block state.
func (s *Segmenter) TitleChanged(string) {}

// --- print tap ---

// Print records a printed rune into the command text (InCommand) or the
// captured output (InOutput).
func (s *Segmenter) Print(r rune) {
	switch s.state {
	case InCommand:
		if s.cmd.Len() < 4096 {
			s.cmd.WriteRune(r)
		}
	case InOutput:
		s.appendOutput(r)
	}
}

// Linebreak records a line boundary in the captured output.
func (s *Segmenter) Linebreak() {
	if s.state == InOutput {
		s.appendOutput('\n')
	}
}

func (s *Segmenter) appendOutput(r rune) {
	if s.out.Len() >= maxOutputBytes {
		s.trunc = true
		return
	}
	s.out.WriteRune(r)
}

// ForceClose closes the open block with the sentinel exit status. Called
// when the session ends; a block never remains in-output past session end.
func (s *Segmenter) ForceClose() {
	if s.current != nil {
		s.close(ExitUnknown)
	}
	s.state = Idle
}

func (s *Segmenter) close(exitCode int) {
	b := *s.current
	b.Command = strings.TrimSpace(s.cmd.String())
	b.Output = strings.TrimRight(s.out.String(), "\n")
	b.ExitCode = exitCode
	b.Closed = true
	b.EndedAt = s.clock()
	if s.rowFn != nil {
		b.EndRow = s.rowFn()
	}
	s.closed = append(s.closed, b)
	s.current = nil
	s.cmd.Reset()
	s.out.Reset()
	if s.logger != nil {
		s.logger.Debug("block closed",
			"command", b.Command, "exit", b.ExitCode, "truncated", s.trunc)
	}
	if s.onClose != nil {
		s.onClose(b)
	}
}
