// Package vt implements an incremental VT100/ANSI stream parser. Bytes may
// arrive in arbitrary chunks, including chunks that split an escape sequence
// or a UTF-8 rune; the parser carries its state across Feed calls and always
// produces the same grid mutations regardless of chunking. Malformed or
// unrecognized sequences are dropped and counted, never fatal.
package vt

import "github.com/loomterm/loom/pkg/grid"

// Handler receives the grid mutations decoded from the stream. *grid.Grid
// satisfies it; the engine wraps it to tap printed text for block capture.
type Handler interface {
	Print(r rune, style grid.Style)

	Linefeed()
	CarriageReturn()
	Backspace()
	Tab()
	ReverseIndex()

	SetCursor(row, col int)
	SetCursorRow(row int)
	SetCursorCol(col int)
	MoveCursor(dRow, dCol int)
	SaveCursor()
	RestoreCursor()
	SetCursorVisible(v bool)

	EraseDisplay(mode int)
	EraseLine(mode int)
	EraseChars(n int)
	InsertChars(n int)
	DeleteChars(n int)
	InsertLines(n int)
	DeleteLines(n int)
	ScrollUp(n int)
	ScrollDown(n int)
	SetScrollRegion(top, bottom int)

	SetEraseStyle(bg grid.Color)
	Reset()
}

// MarkerHandler receives semantic OSC events: shell integration markers
// (OSC 133), working directory reports (OSC 7), and title changes (OSC 0/2).
// All methods are invoked from the Feed caller's goroutine.
type MarkerHandler interface {
	// PromptStart corresponds to OSC 133;A.
	PromptStart()
	// CommandStart corresponds to OSC 133;B: the shell is reading the command line.
	CommandStart()
	// CommandExecuted corresponds to OSC 133;C: output is about to begin.
	CommandExecuted()
	// CommandFinished corresponds to OSC 133;D with an optional exit code.
	CommandFinished(exitCode int, hasCode bool)
	// CwdChanged corresponds to OSC 7 with a decoded filesystem path.
	CwdChanged(path string)
	// TitleChanged corresponds to OSC 0 or OSC 2.
	TitleChanged(title string)
}
