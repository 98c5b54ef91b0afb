package engine

import (
	"github.com/loomterm/loom/pkg/block"
	"github.com/loomterm/loom/pkg/grid"
)

// tap routes parser output to the grid while feeding printed text to the
// block segmenter, giving the segmenter its parallel view of the stream.
type tap struct {
	grid *grid.Grid
	seg  *block.Segmenter
}

func (t *tap) Print(r rune, style grid.Style) {
	t.grid.Print(r, style)
	t.seg.Print(r)
}

func (t *tap) Linefeed() {
	t.grid.Linefeed()
	t.seg.Linebreak()
}

func (t *tap) CarriageReturn()               { t.grid.CarriageReturn() }
func (t *tap) Backspace()                    { t.grid.Backspace() }
func (t *tap) Tab()                          { t.grid.Tab() }
func (t *tap) ReverseIndex()                 { t.grid.ReverseIndex() }
func (t *tap) SetCursor(row, col int)        { t.grid.SetCursor(row, col) }
func (t *tap) SetCursorRow(row int)          { t.grid.SetCursorRow(row) }
func (t *tap) SetCursorCol(col int)          { t.grid.SetCursorCol(col) }
func (t *tap) MoveCursor(dRow, dCol int)     { t.grid.MoveCursor(dRow, dCol) }
func (t *tap) SaveCursor()                   { t.grid.SaveCursor() }
func (t *tap) RestoreCursor()                { t.grid.RestoreCursor() }
func (t *tap) SetCursorVisible(v bool)       { t.grid.SetCursorVisible(v) }
func (t *tap) EraseDisplay(mode int)         { t.grid.EraseDisplay(mode) }
func (t *tap) EraseLine(mode int)            { t.grid.EraseLine(mode) }
func (t *tap) EraseChars(n int)              { t.grid.EraseChars(n) }
func (t *tap) InsertChars(n int)             { t.grid.InsertChars(n) }
func (t *tap) DeleteChars(n int)             { t.grid.DeleteChars(n) }
func (t *tap) InsertLines(n int)             { t.grid.InsertLines(n) }
func (t *tap) DeleteLines(n int)             { t.grid.DeleteLines(n) }
func (t *tap) ScrollUp(n int)                { t.grid.ScrollUp(n) }
func (t *tap) ScrollDown(n int)              { t.grid.ScrollDown(n) }
func (t *tap) SetScrollRegion(top, bot int)  { t.grid.SetScrollRegion(top, bot) }
func (t *tap) SetEraseStyle(bg grid.Color)   { t.grid.SetEraseStyle(bg) }
func (t *tap) Reset()                        { t.grid.Reset() }

// markers forwards semantic events to the segmenter and keeps the engine's
// title and cwd current. Calls arrive on the read loop with the state lock
// already held.
type markers struct {
	e *Engine
}

func (m *markers) PromptStart()     { m.e.seg.PromptStart() }
func (m *markers) CommandStart()    { m.e.seg.CommandStart() }
func (m *markers) CommandExecuted() { m.e.seg.CommandExecuted() }

func (m *markers) CommandFinished(exitCode int, hasCode bool) {
	m.e.seg.CommandFinished(exitCode, hasCode)
}

func (m *markers) CwdChanged(path string) {
	m.e.seg.CwdChanged(path)
	m.e.cwd = path
}

func (m *markers) TitleChanged(title string) {
	m.e.title = title
}
