package grid

// scrollback is a fixed-capacity FIFO ring of rows evicted from the top of
// the visible grid. When full, the oldest row is dropped to make room.
type scrollback struct {
	rows    [][]Cell
	head    int // index of the oldest row
	length  int
	evicted int // total rows dropped since session start
}

func newScrollback(capacity int) *scrollback {
	if capacity < 0 {
		capacity = 0
	}
	return &scrollback{rows: make([][]Cell, capacity)}
}

func (s *scrollback) capacity() int { return len(s.rows) }

func (s *scrollback) len() int { return s.length }

// push appends a row, evicting the oldest if the ring is full.
func (s *scrollback) push(row []Cell) {
	if len(s.rows) == 0 {
		s.evicted++
		return
	}
	if s.length < len(s.rows) {
		s.rows[(s.head+s.length)%len(s.rows)] = row
		s.length++
		return
	}
	s.rows[s.head] = row
	s.head = (s.head + 1) % len(s.rows)
	s.evicted++
}

// row returns the i-th stored row, oldest first. Returns nil out of range.
func (s *scrollback) row(i int) []Cell {
	if i < 0 || i >= s.length {
		return nil
	}
	return s.rows[(s.head+i)%len(s.rows)]
}

// setCapacity resizes the ring, keeping the most recent rows.
func (s *scrollback) setCapacity(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	if capacity == len(s.rows) {
		return
	}
	keep := s.length
	if keep > capacity {
		keep = capacity
	}
	next := make([][]Cell, capacity)
	for i := 0; i < keep; i++ {
		next[i] = s.row(s.length - keep + i)
	}
	s.evicted += s.length - keep
	s.rows = next
	s.head = 0
	s.length = keep
}

// clear drops all stored rows (ED 3).
func (s *scrollback) clear() {
	for i := range s.rows {
		s.rows[i] = nil
	}
	s.evicted += s.length
	s.head = 0
	s.length = 0
}
