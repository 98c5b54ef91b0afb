package grid

import "strings"

// Snapshot is a deep, immutable copy of the grid at a single point in time.
// It is safe to retain and read from any goroutine.
type Snapshot struct {
	Cols, Rows int
	Cells      [][]Cell
	Scrollback [][]Cell

	CursorRow, CursorCol int
	CursorVisible        bool

	// ScrollbackEvicted counts rows dropped from the scrollback since the
	// session started; absolute row N lives at Scrollback[N-ScrollbackEvicted]
	// when still retained.
	ScrollbackEvicted int
}

// Snapshot copies the visible grid and the retained scrollback. The caller
// must hold whatever lock serializes grid mutation for the duration of the
// call; the returned value shares no memory with the grid.
func (g *Grid) Snapshot() Snapshot {
	s := Snapshot{
		Cols:              g.cols,
		Rows:              g.rows,
		Cells:             copyCells(g.cells),
		Scrollback:        make([][]Cell, g.sb.len()),
		CursorRow:         g.curRow,
		CursorCol:         g.curCol,
		CursorVisible:     g.cursorVisible,
		ScrollbackEvicted: g.sb.evicted,
	}
	for i := 0; i < g.sb.len(); i++ {
		s.Scrollback[i] = copyRow(g.sb.row(i))
	}
	return s
}

func copyCells(cells [][]Cell) [][]Cell {
	out := make([][]Cell, len(cells))
	for i, row := range cells {
		out[i] = copyRow(row)
	}
	return out
}

func copyRow(row []Cell) []Cell {
	out := make([]Cell, len(row))
	copy(out, row)
	return out
}

// Line renders visible row i as plain text with trailing blanks trimmed.
func (s Snapshot) Line(i int) string {
	if i < 0 || i >= len(s.Cells) {
		return ""
	}
	return renderRow(s.Cells[i])
}

// Text renders the whole visible grid as plain text, one line per row.
func (s Snapshot) Text() string {
	var b strings.Builder
	for i := range s.Cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderRow(s.Cells[i]))
	}
	return b.String()
}

func renderRow(row []Cell) string {
	end := len(row)
	for end > 0 {
		c := row[end-1]
		if c.Rune != ' ' && c.Rune != 0 {
			break
		}
		// Styled blanks still count as content.
		if c.Rune == ' ' && (c.Style.BG.Mode != ColorDefault || c.Style.Attr != 0) {
			break
		}
		end--
	}
	var b strings.Builder
	for _, c := range row[:end] {
		if c.Rune == 0 {
			continue // wide rune continuation
		}
		b.WriteRune(c.Rune)
	}
	return b.String()
}
