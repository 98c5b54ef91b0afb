package vt

import (
	"log/slog"

	"github.com/loomterm/loom/pkg/grid"
)

type state int

const (
	stateGround state = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEscape
	stateDCS
	stateDCSEscape
	stateCharset
)

// maxPendingDefault bounds the bytes buffered for one unterminated sequence.
// Exceeding it discards the sequence and resyncs at the next introducer.
const maxPendingDefault = 4096

// Parser is the streaming control-sequence interpreter. It is not safe for
// concurrent use; a session's read loop is its only caller.
type Parser struct {
	h Handler
	m MarkerHandler

	state   state
	pending []byte // CSI params or OSC/DCS payload being collected

	style      grid.Style
	savedStyle grid.Style

	// UTF-8 decode state, carried across chunk boundaries.
	utf8Buf       [4]byte
	utf8Len       int
	utf8Remaining int

	maxPending int
	malformed  uint64
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMarkerHandler attaches a semantic marker consumer.
func WithMarkerHandler(m MarkerHandler) Option {
	return func(p *Parser) { p.m = m }
}

// WithLogger sets the logger used for malformed-sequence diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// WithMaxPending overrides the pending-sequence length bound.
func WithMaxPending(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxPending = n
		}
	}
}

// New creates a parser that applies decoded operations to h.
func New(h Handler, opts ...Option) *Parser {
	p := &Parser{
		h:          h,
		style:      grid.DefaultStyle(),
		maxPending: maxPendingDefault,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Style returns the current graphic rendition.
func (p *Parser) Style() grid.Style { return p.style }

// Malformed returns the number of sequences dropped since session start.
func (p *Parser) Malformed() uint64 { return p.malformed }

// Feed consumes a chunk of PTY output. Work per chunk is bounded: one pass
// over the bytes with no allocation beyond the pending-sequence buffer.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.step(b)
	}
}

func (p *Parser) step(b byte) {
	switch p.state {
	case stateGround:
		p.ground(b)
	case stateEscape:
		p.escape(b)
	case stateCSI:
		p.csi(b)
	case stateOSC:
		p.osc(b)
	case stateOSCEscape:
		p.oscEscape(b)
	case stateDCS:
		p.dcs(b)
	case stateDCSEscape:
		p.dcsEscape(b)
	case stateCharset:
		// Designator byte consumed, charsets are not tracked.
		p.state = stateGround
	}
}

func (p *Parser) ground(b byte) {
	if p.utf8Remaining > 0 {
		if b&0xC0 == 0x80 {
			p.utf8Buf[p.utf8Len] = b
			p.utf8Len++
			p.utf8Remaining--
			if p.utf8Remaining == 0 {
				p.h.Print(decodeRune(p.utf8Buf[:p.utf8Len]), p.style)
				p.utf8Len = 0
			}
			return
		}
		// Broken continuation: drop the partial rune, reprocess this byte.
		p.utf8Len = 0
		p.utf8Remaining = 0
		p.malformed++
	}

	switch {
	case b == 0x1b:
		p.state = stateEscape
	case b == 0x07, b == 0x00: // BEL, NUL
	case b == 0x08:
		p.h.Backspace()
	case b == 0x09:
		p.h.Tab()
	case b == 0x0a, b == 0x0b, b == 0x0c: // LF, VT, FF
		p.h.Linefeed()
	case b == 0x0d:
		p.h.CarriageReturn()
	case b >= 0x20 && b < 0x7f:
		p.h.Print(rune(b), p.style)
	case b >= 0xC0 && b < 0xE0:
		p.utf8Buf[0], p.utf8Len, p.utf8Remaining = b, 1, 1
	case b >= 0xE0 && b < 0xF0:
		p.utf8Buf[0], p.utf8Len, p.utf8Remaining = b, 1, 2
	case b >= 0xF0 && b < 0xF8:
		p.utf8Buf[0], p.utf8Len, p.utf8Remaining = b, 1, 3
	default:
		// Other C0/C1 bytes and stray continuations are ignored.
	}
}

func decodeRune(buf []byte) rune {
	switch len(buf) {
	case 1:
		return rune(buf[0])
	case 2:
		if buf[0]&0xE0 == 0xC0 {
			return rune(buf[0]&0x1F)<<6 | rune(buf[1]&0x3F)
		}
	case 3:
		if buf[0]&0xF0 == 0xE0 {
			return rune(buf[0]&0x0F)<<12 | rune(buf[1]&0x3F)<<6 | rune(buf[2]&0x3F)
		}
	case 4:
		if buf[0]&0xF8 == 0xF0 {
			return rune(buf[0]&0x07)<<18 | rune(buf[1]&0x3F)<<12 | rune(buf[2]&0x3F)<<6 | rune(buf[3]&0x3F)
		}
	}
	return 0xFFFD
}

func (p *Parser) escape(b byte) {
	switch b {
	case '[':
		p.state = stateCSI
		p.pending = p.pending[:0]
	case ']':
		p.state = stateOSC
		p.pending = p.pending[:0]
	case 'P':
		p.state = stateDCS
		p.pending = p.pending[:0]
	case '7': // DECSC
		p.savedStyle = p.style
		p.h.SaveCursor()
		p.state = stateGround
	case '8': // DECRC
		p.style = p.savedStyle
		p.h.SetEraseStyle(p.style.BG)
		p.h.RestoreCursor()
		p.state = stateGround
	case 'D': // IND
		p.h.Linefeed()
		p.state = stateGround
	case 'M': // RI
		p.h.ReverseIndex()
		p.state = stateGround
	case 'E': // NEL
		p.h.CarriageReturn()
		p.h.Linefeed()
		p.state = stateGround
	case 'c': // RIS
		p.style = grid.DefaultStyle()
		p.savedStyle = p.style
		p.h.Reset()
		p.state = stateGround
	case '(', ')', '*', '+', '#':
		p.state = stateCharset
	case '=', '>': // keypad modes, not tracked
		p.state = stateGround
	case 0x1b:
		// ESC restarts the sequence; the aborted one is dropped.
		p.drop("escape", b)
	default:
		p.drop("escape", b)
		p.state = stateGround
	}
}

func (p *Parser) collect(b byte) bool {
	if len(p.pending) >= p.maxPending {
		p.drop("overflow", b)
		p.pending = p.pending[:0]
		p.state = stateGround
		return false
	}
	p.pending = append(p.pending, b)
	return true
}

// drop records a discarded sequence. Recovery is always local: state returns
// to ground and parsing resynchronizes at the next introducer.
func (p *Parser) drop(reason string, b byte) {
	p.malformed++
	if p.logger != nil {
		p.logger.Debug("dropped escape sequence", "reason", reason, "byte", b, "pending", len(p.pending))
	}
}
