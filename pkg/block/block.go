// Package block groups a terminal session's stream into logical blocks: one
// shell command, its captured output, and its exit status. Boundaries come
// from OSC 133 shell-integration markers; a session that ends mid-block
// force-closes it with a sentinel exit status.
package block

import (
	"time"

	"github.com/google/uuid"
)

// ExitUnknown is the sentinel exit status for blocks force-closed before an
// end marker arrived (process died, session closed).
const ExitUnknown = -1

// State is the segmenter's position in the marker protocol.
type State int

const (
	// Idle: between commands, at or before a prompt.
	Idle State = iota
	// InCommand: after a command-start marker, the shell is echoing the
	// command line being entered.
	InCommand
	// InOutput: after a command-executed marker, the command is running
	// and producing output.
	InOutput
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InCommand:
		return "in-command"
	case InOutput:
		return "in-output"
	}
	return "unknown"
}

// Block is one command invocation. Once Closed it is immutable; the
// segmenter only hands out copies.
type Block struct {
	ID      uuid.UUID
	Command string
	Output  string
	Cwd     string

	// ExitCode is meaningful only when Closed; ExitUnknown marks a
	// force-closed block.
	ExitCode int
	Closed   bool

	// StartRow and EndRow are absolute row indices (scrollback-evicted rows
	// included), so consumers can map a block onto grid history.
	StartRow, EndRow int

	StartedAt, EndedAt time.Time
}

// Duration returns the wall-clock span of a closed block, zero otherwise.
func (b Block) Duration() time.Duration {
	if !b.Closed {
		return 0
	}
	return b.EndedAt.Sub(b.StartedAt)
}
