package grid

import (
	"github.com/mattn/go-runewidth"
)

// DefaultScrollback is the scrollback row capacity used when none is configured.
const DefaultScrollback = 1000

// Grid is the terminal character buffer: a rows x cols matrix of cells, a
// cursor, a scroll region, and a bounded scrollback. All mutating methods
// must be called from a single writer; Snapshot is the only concurrent-safe
// entry point and callers are expected to serialize it externally (the
// engine holds a read lock around it).
type Grid struct {
	cols, rows int
	cells      [][]Cell

	curRow, curCol int
	pendingWrap    bool
	cursorVisible  bool

	// Saved cursor for DECSC/DECRC.
	savedRow, savedCol int

	// Scroll region, 0-based inclusive.
	scrollTop, scrollBottom int

	// Erase background, kept in sync with SGR by the parser (BCE).
	eraseBG Color

	sb *scrollback
}

// New creates a grid with the given dimensions and scrollback capacity.
// Dimensions below 1x1 are clamped.
func New(cols, rows, scrollbackCap int) *Grid {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	g := &Grid{
		cols:          cols,
		rows:          rows,
		cursorVisible: true,
		scrollBottom:  rows - 1,
		eraseBG:       DefaultColor(),
		sb:            newScrollback(scrollbackCap),
	}
	g.cells = makeCells(cols, rows, g.eraseBG)
	return g
}

func makeCells(cols, rows int, bg Color) [][]Cell {
	cells := make([][]Cell, rows)
	for i := range cells {
		cells[i] = makeRow(cols, bg)
	}
	return cells
}

func makeRow(cols int, bg Color) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = blankCell(bg)
	}
	return row
}

// Size returns the current dimensions.
func (g *Grid) Size() (cols, rows int) { return g.cols, g.rows }

// Cursor returns the 0-based cursor position.
func (g *Grid) Cursor() (row, col int) { return g.curRow, g.curCol }

// CursorVisible reports whether the cursor should be shown (DECTCEM).
func (g *Grid) CursorVisible() bool { return g.cursorVisible }

// SetCursorVisible toggles cursor visibility (DECTCEM).
func (g *Grid) SetCursorVisible(v bool) { g.cursorVisible = v }

// SetEraseStyle sets the background used for erased cells. The parser calls
// this whenever SGR changes the current background.
func (g *Grid) SetEraseStyle(bg Color) { g.eraseBG = bg }

// AbsoluteCursorRow returns the cursor row counted from the very first row
// the session ever produced, including rows evicted from scrollback.
func (g *Grid) AbsoluteCursorRow() int {
	return g.sb.evicted + g.sb.len() + g.curRow
}

// ScrollbackLen returns the number of retained scrollback rows.
func (g *Grid) ScrollbackLen() int { return g.sb.len() }

// SetScrollbackCapacity resizes the scrollback ring, keeping the newest rows.
func (g *Grid) SetScrollbackCapacity(capacity int) { g.sb.setCapacity(capacity) }

// --- Printing ---

// Print writes a rune at the cursor with the given style, advancing the
// cursor and wrapping per deferred-wrap semantics. Wide runes occupy two
// cells; the trailing cell holds a zero rune.
func (g *Grid) Print(r rune, style Style) {
	w := runewidth.RuneWidth(r)
	if w <= 0 {
		// Combining marks and other zero-width runes attach to the
		// previous cell; we drop them rather than corrupt the grid.
		return
	}

	if g.pendingWrap {
		g.curCol = 0
		g.lineFeed()
		g.pendingWrap = false
	}

	if w == 2 && g.curCol == g.cols-1 {
		// Wide rune at the last column: blank the cell and wrap first.
		g.cells[g.curRow][g.curCol] = blankCell(g.eraseBG)
		g.curCol = 0
		g.lineFeed()
	}

	g.cells[g.curRow][g.curCol] = Cell{Rune: r, Style: style}
	if w == 2 && g.curCol+1 < g.cols {
		g.cells[g.curRow][g.curCol+1] = Cell{Style: style}
	}

	if g.curCol+w >= g.cols {
		g.curCol = g.cols - 1
		g.pendingWrap = true
	} else {
		g.curCol += w
	}
}

// --- C0 controls ---

// Linefeed moves the cursor down one row, scrolling at the bottom margin.
func (g *Grid) Linefeed() {
	g.pendingWrap = false
	g.lineFeed()
}

func (g *Grid) lineFeed() {
	if g.curRow == g.scrollBottom {
		g.scrollUp(1)
		return
	}
	if g.curRow < g.rows-1 {
		g.curRow++
	}
}

// CarriageReturn moves the cursor to column zero.
func (g *Grid) CarriageReturn() {
	g.pendingWrap = false
	g.curCol = 0
}

// Backspace moves the cursor one column left, stopping at the margin.
func (g *Grid) Backspace() {
	g.pendingWrap = false
	if g.curCol > 0 {
		g.curCol--
	}
}

// Tab advances the cursor to the next 8-column tab stop.
func (g *Grid) Tab() {
	g.pendingWrap = false
	next := (g.curCol/8 + 1) * 8
	if next >= g.cols {
		next = g.cols - 1
	}
	g.curCol = next
}

// --- Cursor movement ---

// SetCursor moves the cursor to an absolute 0-based position, clamped to
// the grid bounds.
func (g *Grid) SetCursor(row, col int) {
	g.pendingWrap = false
	g.curRow = clamp(row, 0, g.rows-1)
	g.curCol = clamp(col, 0, g.cols-1)
}

// MoveCursor moves the cursor relatively, clamped to the grid bounds.
func (g *Grid) MoveCursor(dRow, dCol int) {
	g.SetCursor(g.curRow+dRow, g.curCol+dCol)
}

// SetCursorRow moves the cursor to an absolute row, keeping the column (VPA).
func (g *Grid) SetCursorRow(row int) {
	g.SetCursor(row, g.curCol)
}

// SetCursorCol moves the cursor to an absolute column, keeping the row (CHA).
func (g *Grid) SetCursorCol(col int) {
	g.SetCursor(g.curRow, col)
}

// ReverseIndex moves the cursor up one row, scrolling down at the top margin (RI).
func (g *Grid) ReverseIndex() {
	g.pendingWrap = false
	if g.curRow == g.scrollTop {
		g.ScrollDown(1)
		return
	}
	if g.curRow > 0 {
		g.curRow--
	}
}

// SaveCursor records the cursor position for a later RestoreCursor.
func (g *Grid) SaveCursor() {
	g.savedRow, g.savedCol = g.curRow, g.curCol
}

// RestoreCursor returns the cursor to the last saved position, clamped.
func (g *Grid) RestoreCursor() {
	g.SetCursor(g.savedRow, g.savedCol)
}

// --- Scrolling ---

// SetScrollRegion sets the top and bottom margins (1-based, inclusive, per
// DECSTBM). Invalid regions reset to the full screen. The cursor homes.
func (g *Grid) SetScrollRegion(top, bottom int) {
	if top < 1 {
		top = 1
	}
	if bottom < 1 || bottom > g.rows {
		bottom = g.rows
	}
	if top >= bottom {
		top, bottom = 1, g.rows
	}
	g.scrollTop = top - 1
	g.scrollBottom = bottom - 1
	g.SetCursor(0, 0)
}

// ScrollUp scrolls the scroll region up n rows. Rows leaving the top of a
// full-screen region enter the scrollback; rows leaving an inner region are
// discarded.
func (g *Grid) ScrollUp(n int) {
	g.pendingWrap = false
	g.scrollUp(n)
}

func (g *Grid) scrollUp(n int) {
	fullRegion := g.scrollTop == 0 && g.scrollBottom == g.rows-1
	for ; n > 0; n-- {
		if fullRegion {
			g.sb.push(g.cells[g.scrollTop])
		}
		copy(g.cells[g.scrollTop:g.scrollBottom], g.cells[g.scrollTop+1:g.scrollBottom+1])
		g.cells[g.scrollBottom] = makeRow(g.cols, g.eraseBG)
	}
}

// ScrollDown scrolls the scroll region down n rows, inserting blank rows at
// the top. Rows leaving the bottom are discarded.
func (g *Grid) ScrollDown(n int) {
	g.pendingWrap = false
	for ; n > 0; n-- {
		copy(g.cells[g.scrollTop+1:g.scrollBottom+1], g.cells[g.scrollTop:g.scrollBottom])
		g.cells[g.scrollTop] = makeRow(g.cols, g.eraseBG)
	}
}

// --- Erasing ---

// EraseDisplay implements ED. Mode 0 erases cursor to end, 1 start to
// cursor, 2 the whole screen, 3 the whole screen plus scrollback.
func (g *Grid) EraseDisplay(mode int) {
	g.pendingWrap = false
	switch mode {
	case 0:
		g.eraseLineRange(g.curRow, g.curCol, g.cols-1)
		for r := g.curRow + 1; r < g.rows; r++ {
			g.cells[r] = makeRow(g.cols, g.eraseBG)
		}
	case 1:
		for r := 0; r < g.curRow; r++ {
			g.cells[r] = makeRow(g.cols, g.eraseBG)
		}
		g.eraseLineRange(g.curRow, 0, g.curCol)
	case 2, 3:
		g.cells = makeCells(g.cols, g.rows, g.eraseBG)
		if mode == 3 {
			g.sb.clear()
		}
	}
}

// EraseLine implements EL. Mode 0 erases cursor to end of line, 1 start of
// line to cursor, 2 the whole line.
func (g *Grid) EraseLine(mode int) {
	g.pendingWrap = false
	switch mode {
	case 0:
		g.eraseLineRange(g.curRow, g.curCol, g.cols-1)
	case 1:
		g.eraseLineRange(g.curRow, 0, g.curCol)
	case 2:
		g.cells[g.curRow] = makeRow(g.cols, g.eraseBG)
	}
}

func (g *Grid) eraseLineRange(row, from, to int) {
	for c := from; c <= to && c < g.cols; c++ {
		g.cells[row][c] = blankCell(g.eraseBG)
	}
}

// EraseChars implements ECH: blanks n cells at the cursor without moving it.
func (g *Grid) EraseChars(n int) {
	g.pendingWrap = false
	end := g.curCol + n - 1
	if end >= g.cols {
		end = g.cols - 1
	}
	g.eraseLineRange(g.curRow, g.curCol, end)
}

// --- Line and character editing ---

// InsertLines implements IL: inserts n blank rows at the cursor, pushing
// rows below toward the bottom margin. No-op outside the scroll region.
func (g *Grid) InsertLines(n int) {
	g.pendingWrap = false
	if g.curRow < g.scrollTop || g.curRow > g.scrollBottom {
		return
	}
	for ; n > 0; n-- {
		copy(g.cells[g.curRow+1:g.scrollBottom+1], g.cells[g.curRow:g.scrollBottom])
		g.cells[g.curRow] = makeRow(g.cols, g.eraseBG)
	}
	g.curCol = 0
}

// DeleteLines implements DL: removes n rows at the cursor, pulling rows up
// from the bottom margin. No-op outside the scroll region.
func (g *Grid) DeleteLines(n int) {
	g.pendingWrap = false
	if g.curRow < g.scrollTop || g.curRow > g.scrollBottom {
		return
	}
	for ; n > 0; n-- {
		copy(g.cells[g.curRow:g.scrollBottom], g.cells[g.curRow+1:g.scrollBottom+1])
		g.cells[g.scrollBottom] = makeRow(g.cols, g.eraseBG)
	}
	g.curCol = 0
}

// InsertChars implements ICH: inserts n blank cells at the cursor, shifting
// the rest of the line right.
func (g *Grid) InsertChars(n int) {
	g.pendingWrap = false
	row := g.cells[g.curRow]
	if n > g.cols-g.curCol {
		n = g.cols - g.curCol
	}
	copy(row[g.curCol+n:], row[g.curCol:g.cols-n])
	for c := g.curCol; c < g.curCol+n; c++ {
		row[c] = blankCell(g.eraseBG)
	}
}

// DeleteChars implements DCH: deletes n cells at the cursor, shifting the
// rest of the line left and blank-filling the tail.
func (g *Grid) DeleteChars(n int) {
	g.pendingWrap = false
	row := g.cells[g.curRow]
	if n > g.cols-g.curCol {
		n = g.cols - g.curCol
	}
	copy(row[g.curCol:], row[g.curCol+n:])
	for c := g.cols - n; c < g.cols; c++ {
		row[c] = blankCell(g.eraseBG)
	}
}

// --- Reset and resize ---

// Reset returns the grid to its initial state. Scrollback is preserved;
// RIS semantics here match a fresh screen, not a fresh session.
func (g *Grid) Reset() {
	g.cells = makeCells(g.cols, g.rows, DefaultColor())
	g.curRow, g.curCol = 0, 0
	g.savedRow, g.savedCol = 0, 0
	g.pendingWrap = false
	g.cursorVisible = true
	g.scrollTop, g.scrollBottom = 0, g.rows-1
	g.eraseBG = DefaultColor()
}

// Resize changes the grid dimensions. Content is never reflowed: columns
// beyond the new width are truncated, new columns are blank-padded. When
// the height shrinks, rows scrolled off the top enter the scrollback; when
// it grows, blank rows are appended at the bottom. The cursor is clamped
// to the new bounds.
func (g *Grid) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if cols == g.cols && rows == g.rows {
		return
	}

	// Width: truncate or pad every visible row in place.
	if cols != g.cols {
		for i := range g.cells {
			g.cells[i] = resizeRow(g.cells[i], cols, g.eraseBG)
		}
	}

	// Height: drop rows above the cursor into scrollback, or append blanks.
	if rows < g.rows {
		drop := g.rows - rows
		// Keep the cursor visible: never drop past it.
		if drop > g.curRow {
			drop = g.curRow
		}
		for i := 0; i < drop; i++ {
			g.sb.push(g.cells[i])
		}
		g.cells = g.cells[drop:]
		if len(g.cells) > rows {
			g.cells = g.cells[:rows]
		}
		g.curRow -= drop
	}
	for len(g.cells) < rows {
		g.cells = append(g.cells, makeRow(cols, g.eraseBG))
	}

	g.cols, g.rows = cols, rows
	g.scrollTop, g.scrollBottom = 0, rows-1
	g.curRow = clamp(g.curRow, 0, rows-1)
	g.curCol = clamp(g.curCol, 0, cols-1)
	g.pendingWrap = false
}

func resizeRow(row []Cell, cols int, bg Color) []Cell {
	if len(row) >= cols {
		return row[:cols]
	}
	out := make([]Cell, cols)
	copy(out, row)
	for i := len(row); i < cols; i++ {
		out[i] = blankCell(bg)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
