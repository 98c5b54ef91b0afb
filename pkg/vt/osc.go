package vt

import (
	"net/url"
	"strconv"
	"strings"
)

func (p *Parser) osc(b byte) {
	switch b {
	case 0x07: // BEL terminator
		p.dispatchOSC(string(p.pending))
		p.pending = p.pending[:0]
		p.state = stateGround
	case 0x1b:
		p.state = stateOSCEscape
	default:
		p.collect(b)
	}
}

func (p *Parser) oscEscape(b byte) {
	if b == '\\' { // ST
		p.dispatchOSC(string(p.pending))
		p.pending = p.pending[:0]
		p.state = stateGround
		return
	}
	// A bare ESC aborts the OSC and starts a new sequence.
	p.drop("osc", b)
	p.pending = p.pending[:0]
	p.state = stateEscape
	p.escape(b)
}

func (p *Parser) dcs(b byte) {
	switch b {
	case 0x1b:
		p.state = stateDCSEscape
	case 0x07:
		// Non-standard BEL terminator, accepted for resilience.
		p.pending = p.pending[:0]
		p.state = stateGround
	default:
		p.collect(b)
	}
}

func (p *Parser) dcsEscape(b byte) {
	if b == '\\' { // ST: DCS payloads are consumed and discarded
		p.pending = p.pending[:0]
		p.state = stateGround
		return
	}
	if p.collect(0x1b) {
		p.collect(b)
	}
	if p.state != stateGround {
		p.state = stateDCS
	}
}

// dispatchOSC interprets a complete OSC payload. Only title (0/2), cwd (7)
// and shell-integration markers (133) are meaningful; everything else is
// dropped silently since unknown OSCs are routine, not errors.
func (p *Parser) dispatchOSC(payload string) {
	if p.m == nil {
		return
	}
	code, rest, _ := strings.Cut(payload, ";")
	switch code {
	case "0", "2":
		p.m.TitleChanged(rest)
	case "7":
		if path := decodeFileURI(rest); path != "" {
			p.m.CwdChanged(path)
		}
	case "133":
		p.dispatchMarker(rest)
	}
}

func (p *Parser) dispatchMarker(rest string) {
	kind, args, _ := strings.Cut(rest, ";")
	switch kind {
	case "A":
		p.m.PromptStart()
	case "B":
		p.m.CommandStart()
	case "C":
		p.m.CommandExecuted()
	case "D":
		code, err := strconv.Atoi(strings.SplitN(args, ";", 2)[0])
		if args == "" || err != nil {
			p.m.CommandFinished(0, false)
			return
		}
		p.m.CommandFinished(code, true)
	default:
		p.drop("marker", 0)
	}
}

// decodeFileURI turns an OSC 7 payload into a filesystem path. Accepts
// file://host/path, file:///path, and bare absolute paths.
func decodeFileURI(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/") {
		return raw
	}
	if !strings.HasPrefix(raw, "file://") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	// url.Parse already percent-decodes the path.
	return u.Path
}
