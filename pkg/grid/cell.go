// Package grid implements the character grid that backs a terminal session:
// a two-dimensional cell buffer, a cursor, and a bounded FIFO scrollback of
// rows that scrolled off the top. The grid is mutated by exactly one writer
// (the stream parser) and read through immutable snapshots.
package grid

// ColorMode selects how a Color value is interpreted.
type ColorMode uint8

const (
	// ColorDefault is the terminal's default foreground or background.
	ColorDefault ColorMode = iota
	// ColorIndexed is one of the 256 palette colors.
	ColorIndexed
	// ColorRGB is a 24-bit truecolor value.
	ColorRGB
)

// Color is a terminal color in one of three modes.
type Color struct {
	Mode    ColorMode
	Index   uint8
	R, G, B uint8
}

// DefaultColor returns the terminal default color.
func DefaultColor() Color { return Color{Mode: ColorDefault} }

// IndexedColor returns a palette color (0-255).
func IndexedColor(idx uint8) Color { return Color{Mode: ColorIndexed, Index: idx} }

// RGBColor returns a 24-bit color.
func RGBColor(r, g, b uint8) Color { return Color{Mode: ColorRGB, R: r, G: g, B: b} }

// Attr is a bitmask of text style attributes.
type Attr uint16

const (
	AttrBold Attr = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrInverse
	AttrHidden
	AttrStrikethrough
)

// Style is the rendition applied to printed cells: colors plus attributes.
// The parser owns the current style and stamps it onto every printed cell.
type Style struct {
	FG   Color
	BG   Color
	Attr Attr
}

// DefaultStyle returns the reset rendition.
func DefaultStyle() Style {
	return Style{FG: DefaultColor(), BG: DefaultColor()}
}

// Cell is one character position in the grid.
//
// A zero Rune marks the continuation cell of a preceding wide character.
// Image, when non-zero, references an inline image placeholder registered
// by a consumer; the grid itself never interprets it.
type Cell struct {
	Rune  rune
	Style Style
	Image int
}

// blankCell is an erased cell carrying the given background (BCE).
func blankCell(bg Color) Cell {
	return Cell{Rune: ' ', Style: Style{FG: DefaultColor(), BG: bg}}
}
