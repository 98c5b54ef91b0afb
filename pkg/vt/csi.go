package vt

import (
	"strconv"
	"strings"

	"github.com/loomterm/loom/pkg/grid"
)

func (p *Parser) csi(b byte) {
	switch {
	case b >= 0x30 && b <= 0x3f, b >= 0x20 && b <= 0x2f:
		p.collect(b)
	case b >= 0x40 && b <= 0x7e:
		p.dispatchCSI(b)
		p.pending = p.pending[:0]
		p.state = stateGround
	default:
		// A control byte inside CSI aborts the sequence.
		p.drop("csi", b)
		p.pending = p.pending[:0]
		p.state = stateGround
		p.step(b)
	}
}

func (p *Parser) dispatchCSI(final byte) {
	raw := string(p.pending)
	private := strings.HasPrefix(raw, "?")
	params := parseParams(raw)
	arg := func(i, def int) int {
		if i < len(params) && params[i] > 0 {
			return params[i]
		}
		return def
	}

	if private {
		if final == 'h' || final == 'l' {
			p.privateMode(params, final == 'h')
			return
		}
		// Private queries (DECRQM etc.) are not answered.
		p.drop("private-csi", final)
		return
	}

	switch final {
	case 'A': // CUU
		p.h.MoveCursor(-arg(0, 1), 0)
	case 'B': // CUD
		p.h.MoveCursor(arg(0, 1), 0)
	case 'C': // CUF
		p.h.MoveCursor(0, arg(0, 1))
	case 'D': // CUB
		p.h.MoveCursor(0, -arg(0, 1))
	case 'E': // CNL
		p.h.CarriageReturn()
		p.h.MoveCursor(arg(0, 1), 0)
	case 'F': // CPL
		p.h.CarriageReturn()
		p.h.MoveCursor(-arg(0, 1), 0)
	case 'G', '`': // CHA, HPA
		p.h.SetCursorCol(arg(0, 1) - 1)
	case 'd': // VPA
		p.h.SetCursorRow(arg(0, 1) - 1)
	case 'H', 'f': // CUP
		p.h.SetCursor(arg(0, 1)-1, arg(1, 1)-1)
	case 'J': // ED
		p.h.EraseDisplay(argAllowZero(params, 0))
	case 'K': // EL
		p.h.EraseLine(argAllowZero(params, 0))
	case 'L': // IL
		p.h.InsertLines(arg(0, 1))
	case 'M': // DL
		p.h.DeleteLines(arg(0, 1))
	case '@': // ICH
		p.h.InsertChars(arg(0, 1))
	case 'P': // DCH
		p.h.DeleteChars(arg(0, 1))
	case 'X': // ECH
		p.h.EraseChars(arg(0, 1))
	case 'S': // SU
		p.h.ScrollUp(arg(0, 1))
	case 'T': // SD
		p.h.ScrollDown(arg(0, 1))
	case 'm': // SGR
		p.applySGR(params)
	case 'r': // DECSTBM
		p.h.SetScrollRegion(arg(0, 1), arg(1, 0))
	case 's': // SCOSC
		p.savedStyle = p.style
		p.h.SaveCursor()
	case 'u': // SCORC
		p.style = p.savedStyle
		p.h.SetEraseStyle(p.style.BG)
		p.h.RestoreCursor()
	case 'h', 'l': // ANSI SM/RM, not tracked
	case 'n', 'c', 't', 'q', 'g', 'b':
		// Queries, window manipulation, cursor style, tab clear, repeat:
		// a headless grid has no reply channel; ignore.
	default:
		p.drop("csi-final", final)
	}
}

func (p *Parser) privateMode(params []int, set bool) {
	for _, m := range params {
		switch m {
		case 25: // DECTCEM
			p.h.SetCursorVisible(set)
		case 1049, 47, 1047:
			// Alternate screen is approximated: entering clears the
			// display, leaving restores nothing. Fullscreen apps get a
			// clean canvas without a second buffer.
			if set {
				p.h.SaveCursor()
				p.h.EraseDisplay(2)
				p.h.SetCursor(0, 0)
			} else {
				p.h.EraseDisplay(2)
				p.h.RestoreCursor()
			}
		default:
			// Mouse tracking, bracketed paste, autowrap toggles and the
			// rest are display concerns the grid does not model.
		}
	}
}

// argAllowZero returns params[i] defaulting to 0, since ED/EL mode 0 is a
// meaningful value rather than "missing".
func argAllowZero(params []int, i int) int {
	if i < len(params) {
		return params[i]
	}
	return 0
}

func parseParams(raw string) []int {
	raw = strings.TrimLeft(raw, "?>!=")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	params := make([]int, len(parts))
	for i, part := range parts {
		// Colon sub-parameters: keep the leading value.
		if idx := strings.IndexByte(part, ':'); idx >= 0 {
			part = part[:idx]
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			n = 0
		}
		params[i] = n
	}
	return params
}

func (p *Parser) applySGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		n := params[i]
		switch {
		case n == 0:
			p.style = grid.DefaultStyle()
		case n == 1:
			p.style.Attr |= grid.AttrBold
		case n == 2:
			p.style.Attr |= grid.AttrDim
		case n == 3:
			p.style.Attr |= grid.AttrItalic
		case n == 4:
			p.style.Attr |= grid.AttrUnderline
		case n == 5:
			p.style.Attr |= grid.AttrBlink
		case n == 7:
			p.style.Attr |= grid.AttrInverse
		case n == 8:
			p.style.Attr |= grid.AttrHidden
		case n == 9:
			p.style.Attr |= grid.AttrStrikethrough
		case n == 22:
			p.style.Attr &^= grid.AttrBold | grid.AttrDim
		case n == 23:
			p.style.Attr &^= grid.AttrItalic
		case n == 24:
			p.style.Attr &^= grid.AttrUnderline
		case n == 25:
			p.style.Attr &^= grid.AttrBlink
		case n == 27:
			p.style.Attr &^= grid.AttrInverse
		case n == 28:
			p.style.Attr &^= grid.AttrHidden
		case n == 29:
			p.style.Attr &^= grid.AttrStrikethrough
		case n >= 30 && n <= 37:
			p.style.FG = grid.IndexedColor(uint8(n - 30))
		case n == 38:
			if c, skip, ok := extendedColor(params[i+1:]); ok {
				p.style.FG = c
				i += skip
			} else {
				return // malformed tail, keep what was applied so far
			}
		case n == 39:
			p.style.FG = grid.DefaultColor()
		case n >= 40 && n <= 47:
			p.style.BG = grid.IndexedColor(uint8(n - 40))
		case n == 48:
			if c, skip, ok := extendedColor(params[i+1:]); ok {
				p.style.BG = c
				i += skip
			} else {
				return
			}
		case n == 49:
			p.style.BG = grid.DefaultColor()
		case n >= 90 && n <= 97:
			p.style.FG = grid.IndexedColor(uint8(n - 90 + 8))
		case n >= 100 && n <= 107:
			p.style.BG = grid.IndexedColor(uint8(n - 100 + 8))
		}
	}
	p.h.SetEraseStyle(p.style.BG)
}

// extendedColor decodes the tail of a 38/48 SGR: 5;idx or 2;r;g;b.
// Returns the color, the number of params consumed, and validity.
func extendedColor(tail []int) (grid.Color, int, bool) {
	if len(tail) >= 2 && tail[0] == 5 {
		return grid.IndexedColor(uint8(tail[1])), 2, true
	}
	if len(tail) >= 4 && tail[0] == 2 {
		return grid.RGBColor(uint8(tail[1]), uint8(tail[2]), uint8(tail[3])), 4, true
	}
	return grid.Color{}, 0, false
}
