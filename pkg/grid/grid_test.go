package grid

import (
	"strings"
	"testing"
)

func printString(g *Grid, s string, style Style) {
	for _, r := range s {
		g.Print(r, style)
	}
}

func TestPrintAndText(t *testing.T) {
	g := New(10, 3, 100)
	printString(g, "hello", DefaultStyle())

	snap := g.Snapshot()
	if got := snap.Line(0); got != "hello" {
		t.Errorf("expected line %q, got %q", "hello", got)
	}
	if row, col := g.Cursor(); row != 0 || col != 5 {
		t.Errorf("expected cursor at 0,5, got %d,%d", row, col)
	}
}

func TestDeferredWrap(t *testing.T) {
	g := New(5, 3, 100)
	printString(g, "abcde", DefaultStyle())

	// Cursor sits on the last column until the next print.
	if row, col := g.Cursor(); row != 0 || col != 4 {
		t.Fatalf("expected cursor held at 0,4, got %d,%d", row, col)
	}

	g.Print('f', DefaultStyle())
	if row, col := g.Cursor(); row != 1 || col != 1 {
		t.Errorf("expected cursor at 1,1 after wrap, got %d,%d", row, col)
	}
	snap := g.Snapshot()
	if snap.Line(0) != "abcde" || snap.Line(1) != "f" {
		t.Errorf("unexpected lines %q / %q", snap.Line(0), snap.Line(1))
	}
}

func TestCarriageReturnCancelsPendingWrap(t *testing.T) {
	g := New(5, 3, 100)
	printString(g, "abcde", DefaultStyle())
	g.CarriageReturn()
	g.Print('X', DefaultStyle())

	snap := g.Snapshot()
	if got := snap.Line(0); got != "Xbcde" {
		t.Errorf("expected %q, got %q", "Xbcde", got)
	}
	if snap.Line(1) != "" {
		t.Errorf("expected empty second line, got %q", snap.Line(1))
	}
}

func TestWideRuneOccupiesTwoCells(t *testing.T) {
	g := New(10, 2, 100)
	printString(g, "漢x", DefaultStyle())

	snap := g.Snapshot()
	if snap.Cells[0][0].Rune != '漢' {
		t.Errorf("expected wide rune in cell 0, got %q", snap.Cells[0][0].Rune)
	}
	if snap.Cells[0][1].Rune != 0 {
		t.Errorf("expected continuation cell after wide rune, got %q", snap.Cells[0][1].Rune)
	}
	if snap.Cells[0][2].Rune != 'x' {
		t.Errorf("expected 'x' in cell 2, got %q", snap.Cells[0][2].Rune)
	}
}

func TestLinefeedScrollsIntoScrollback(t *testing.T) {
	g := New(10, 2, 100)
	printString(g, "one", DefaultStyle())
	g.Linefeed()
	g.CarriageReturn()
	printString(g, "two", DefaultStyle())
	g.Linefeed()
	g.CarriageReturn()
	printString(g, "three", DefaultStyle())

	snap := g.Snapshot()
	if len(snap.Scrollback) != 1 {
		t.Fatalf("expected 1 scrollback row, got %d", len(snap.Scrollback))
	}
	if got := renderRow(snap.Scrollback[0]); got != "one" {
		t.Errorf("expected scrollback row %q, got %q", "one", got)
	}
	if snap.Line(0) != "two" || snap.Line(1) != "three" {
		t.Errorf("unexpected visible lines %q / %q", snap.Line(0), snap.Line(1))
	}
}

func TestScrollbackFIFOEviction(t *testing.T) {
	g := New(10, 2, 3)
	for i := 0; i < 10; i++ {
		printString(g, string(rune('a'+i)), DefaultStyle())
		g.Linefeed()
		g.CarriageReturn()
	}

	snap := g.Snapshot()
	if len(snap.Scrollback) != 3 {
		t.Fatalf("expected scrollback capped at 3, got %d", len(snap.Scrollback))
	}
	// 9 rows scrolled off screen, oldest 6 evicted.
	if snap.ScrollbackEvicted != 6 {
		t.Errorf("expected 6 evicted rows, got %d", snap.ScrollbackEvicted)
	}
	// Oldest retained first.
	want := []string{"g", "h", "i"}
	for i, w := range want {
		if got := renderRow(snap.Scrollback[i]); got != w {
			t.Errorf("scrollback[%d]: expected %q, got %q", i, w, got)
		}
	}
}

func TestZeroScrollbackCapacity(t *testing.T) {
	g := New(10, 2, 0)
	for i := 0; i < 5; i++ {
		g.Linefeed()
	}
	snap := g.Snapshot()
	if len(snap.Scrollback) != 0 {
		t.Errorf("expected no scrollback rows, got %d", len(snap.Scrollback))
	}
	if snap.ScrollbackEvicted != 4 {
		t.Errorf("expected 4 evicted rows, got %d", snap.ScrollbackEvicted)
	}
}

func TestSetScrollbackCapacityKeepsNewest(t *testing.T) {
	g := New(10, 1, 10)
	for i := 0; i < 6; i++ {
		printString(g, string(rune('0'+i)), DefaultStyle())
		g.Linefeed()
		g.CarriageReturn()
	}
	g.SetScrollbackCapacity(2)

	snap := g.Snapshot()
	if len(snap.Scrollback) != 2 {
		t.Fatalf("expected 2 retained rows, got %d", len(snap.Scrollback))
	}
	if got := renderRow(snap.Scrollback[0]); got != "4" {
		t.Errorf("expected oldest retained %q, got %q", "4", got)
	}
	if got := renderRow(snap.Scrollback[1]); got != "5" {
		t.Errorf("expected newest retained %q, got %q", "5", got)
	}
}

func TestEraseDisplayModes(t *testing.T) {
	g := New(5, 3, 100)
	for i := 0; i < 3; i++ {
		g.SetCursor(i, 0)
		printString(g, "xxxxx", DefaultStyle())
	}
	g.SetCursor(1, 2)
	g.EraseDisplay(0)

	snap := g.Snapshot()
	if snap.Line(0) != "xxxxx" {
		t.Errorf("row 0 should be untouched, got %q", snap.Line(0))
	}
	if snap.Line(1) != "xx" {
		t.Errorf("row 1 should keep cells before cursor, got %q", snap.Line(1))
	}
	if snap.Line(2) != "" {
		t.Errorf("row 2 should be cleared, got %q", snap.Line(2))
	}

	g.EraseDisplay(2)
	snap = g.Snapshot()
	if snap.Text() != "\n\n" {
		t.Errorf("expected blank grid, got %q", snap.Text())
	}
}

func TestEraseScrollback(t *testing.T) {
	g := New(5, 2, 100)
	for i := 0; i < 5; i++ {
		g.Linefeed()
	}
	if g.ScrollbackLen() == 0 {
		t.Fatal("expected scrollback rows before erase")
	}
	g.EraseDisplay(3)
	if g.ScrollbackLen() != 0 {
		t.Errorf("expected scrollback cleared, got %d rows", g.ScrollbackLen())
	}
}

func TestScrollRegion(t *testing.T) {
	g := New(5, 4, 100)
	for i := 0; i < 4; i++ {
		g.SetCursor(i, 0)
		printString(g, string(rune('a'+i)), DefaultStyle())
	}
	// Region covers rows 1..2 (1-based 2..3).
	g.SetScrollRegion(2, 3)
	g.ScrollUp(1)

	snap := g.Snapshot()
	want := []string{"a", "c", "", "d"}
	for i, w := range want {
		if got := snap.Line(i); got != w {
			t.Errorf("line %d: expected %q, got %q", i, w, got)
		}
	}
	// Partial-region scrolls never feed the scrollback.
	if len(snap.Scrollback) != 0 {
		t.Errorf("expected no scrollback rows, got %d", len(snap.Scrollback))
	}
}

func TestInsertDeleteLinesOutsideRegion(t *testing.T) {
	g := New(5, 4, 100)
	g.SetScrollRegion(2, 3)
	g.SetCursor(0, 0)
	before := g.Snapshot()
	g.InsertLines(1)
	g.DeleteLines(1)
	after := g.Snapshot()
	if before.Text() != after.Text() {
		t.Error("IL/DL outside the scroll region should be ignored")
	}
}

func TestResizeTruncatesWithoutReflow(t *testing.T) {
	g := New(80, 24, 100)
	printString(g, strings.Repeat("p", 60), DefaultStyle())

	g.Resize(40, 24)
	snap := g.Snapshot()
	if snap.Cols != 40 || snap.Rows != 24 {
		t.Fatalf("expected 40x24, got %dx%d", snap.Cols, snap.Rows)
	}
	if got := snap.Line(0); got != strings.Repeat("p", 40) {
		t.Errorf("expected 40 chars retained, got %d", len(got))
	}
	// Widening pads with blanks; nothing reflows back.
	g.Resize(80, 24)
	snap = g.Snapshot()
	if got := snap.Line(0); got != strings.Repeat("p", 40) {
		t.Errorf("expected still 40 chars after widening, got %d", len(got))
	}
}

func TestResizeClampsCursor(t *testing.T) {
	g := New(80, 24, 100)
	g.SetCursor(20, 70)
	g.Resize(40, 10)
	if row, col := g.Cursor(); row >= 10 || col >= 40 {
		t.Errorf("cursor out of bounds after shrink: %d,%d", row, col)
	}
}

func TestStyledCellsRetainStyle(t *testing.T) {
	g := New(10, 2, 100)
	red := DefaultStyle()
	red.FG = IndexedColor(1)
	red.Attr |= AttrBold
	printString(g, "Hi", red)

	snap := g.Snapshot()
	c := snap.Cells[0][0]
	if c.Style.FG != IndexedColor(1) {
		t.Errorf("expected red foreground, got %+v", c.Style.FG)
	}
	if c.Style.Attr&AttrBold == 0 {
		t.Error("expected bold attribute")
	}
}

func TestBackgroundColorErase(t *testing.T) {
	g := New(5, 2, 100)
	g.SetEraseStyle(IndexedColor(4))
	g.EraseLine(2)
	snap := g.Snapshot()
	if got := snap.Cells[0][0].Style.BG; got != IndexedColor(4) {
		t.Errorf("expected erased cells to carry blue background, got %+v", got)
	}
}

func TestSaveRestoreCursor(t *testing.T) {
	g := New(10, 5, 100)
	g.SetCursor(2, 3)
	g.SaveCursor()
	g.SetCursor(4, 7)
	g.RestoreCursor()
	if row, col := g.Cursor(); row != 2 || col != 3 {
		t.Errorf("expected cursor restored to 2,3, got %d,%d", row, col)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	g := New(10, 2, 100)
	printString(g, "aa", DefaultStyle())
	snap := g.Snapshot()
	printString(g, "bb", DefaultStyle())
	if got := snap.Line(0); got != "aa" {
		t.Errorf("snapshot mutated by later writes: %q", got)
	}
}

func TestAbsoluteCursorRow(t *testing.T) {
	g := New(5, 2, 2)
	if got := g.AbsoluteCursorRow(); got != 0 {
		t.Fatalf("expected absolute row 0, got %d", got)
	}
	for i := 0; i < 5; i++ {
		g.Linefeed()
	}
	// 4 rows scrolled off, cursor on the bottom visible row.
	if got := g.AbsoluteCursorRow(); got != 5 {
		t.Errorf("expected absolute row 5, got %d", got)
	}
}
