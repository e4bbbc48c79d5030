package server

// Scanner frames a request head incrementally.
//
// The position table starts with the request offset 0 and gets the offset
// just past every CRLF. Each Scan looks only at bytes appended since the
// previous call, plus one byte back so a CRLF split across two reads is
// found exactly once. Framing is complete at the first blank line, at which
// point the blank line's entry is popped: consecutive pairs of the table are
// then the request line and each header line.
type Scanner struct {
	pos     []int
	scanned int
	body    int
	done    bool
}

// Reset prepares the scanner for a new request starting at offset 0.
func (s *Scanner) Reset() {
	if s.pos == nil {
		s.pos = make([]int, 0, 16)
	}
	s.pos = append(s.pos[:0], 0)
	s.scanned = 0
	s.body = 0
	s.done = false
}

// Scan consumes the bytes of buf that were not seen by earlier calls and
// reports whether the header block is complete. buf must be the same
// growing region on every call of one request.
func (s *Scanner) Scan(buf []byte) bool {
	if s.done {
		return true
	}
	if s.pos == nil {
		s.Reset()
	}
	i := s.scanned - 1
	if i < 0 {
		i = 0
	}
	for ; i+1 < len(buf); i++ {
		if buf[i] != '\r' || buf[i+1] != '\n' {
			continue
		}
		end := i + 2
		s.pos = append(s.pos, end)
		if n := len(s.pos); end-s.pos[n-2] == 2 {
			s.pos = s.pos[:n-1]
			s.body = end
			s.done = true
			s.scanned = end
			return true
		}
		i++
	}
	s.scanned = len(buf)
	return false
}

func (s *Scanner) Done() bool { return s.done }

// Lines returns the position table. Line k spans [Lines()[k], Lines()[k+1]).
func (s *Scanner) Lines() []int { return s.pos }

// BodyStart is the offset just past the blank line, valid once Done.
func (s *Scanner) BodyStart() int { return s.body }
