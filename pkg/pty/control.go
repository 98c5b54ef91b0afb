package pty

// Control characters accepted by SendControl helpers.
const (
	ctrlInterrupt = 0x03 // ETX, Ctrl+C
	ctrlEOF       = 0x04 // EOT, Ctrl+D
	ctrlEscape    = 0x1b // ESC
)

// SendInterrupt writes Ctrl+C, interrupting the foreground process or
// breaking out of a pager.
func (s *Session) SendInterrupt() error {
	_, err := s.Write([]byte{ctrlInterrupt})
	return err
}

// SendEOF writes Ctrl+D, signaling end of input.
func (s *Session) SendEOF() error {
	_, err := s.Write([]byte{ctrlEOF})
	return err
}

// SendEscape writes a bare ESC, canceling prompts and vi-style pagers.
func (s *Session) SendEscape() error {
	_, err := s.Write([]byte{ctrlEscape})
	return err
}
