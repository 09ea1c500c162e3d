package vcpu

// Word is one bytecode cell. Each cell holds a full machine int rather
// than an 8-bit byte, so opcode slots and operand values beyond 255 fit
// in a single cell.
type Word int

const (
	// OOB is returned by reads at or beyond the end of a stream.
	OOB = Word(-1)
	// MAGIC_STOP is the logical stop marker terminating a bytecode
	// stream, distinct from the physical end of the buffer.
	MAGIC_STOP = Word(0xEFB)
)

// Stream is an append-only growable buffer of bytecode words plus the
// owning CPU's program counter. The cursor is advanced only by fetch.
type Stream struct {
	Data []Word // Bytecode words, in load order.
	Pos  int    // Program counter.
}

// Append extends the stream by concatenating words at the tail.
func (s *Stream) Append(words ...Word) {
	s.Data = append(s.Data, words...)
}

// Len returns the number of words loaded into the stream.
func (s *Stream) Len() int {
	return len(s.Data)
}

// Current returns the word at the cursor, or OOB when the cursor is at
// or beyond the end of the stream.
func (s *Stream) Current() Word {
	if s.Pos >= len(s.Data) {
		return OOB
	}

	return s.Data[s.Pos]
}

// Rewind resets the cursor to the start of the stream.
func (s *Stream) Rewind() {
	s.Pos = 0
}
