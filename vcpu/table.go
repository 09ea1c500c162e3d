package vcpu

import (
	"log"
)

const (
	TABLE_SIZE = 199 // Default instruction table slot count.
)

// Handler executes a single instruction against the CPU. Handlers
// consume their operands from the CPU's stream via Next, and record
// runtime trouble as faults rather than returning errors; a non-nil
// error is reserved for host-level failures that should stop the run.
type Handler interface {
	Execute(cpu *Cpu) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(cpu *Cpu) error

func (fn HandlerFunc) Execute(cpu *Cpu) error {
	return fn(cpu)
}

// Hash folds an instruction name into a table slot: a rolling product
// seeded with 1, multiplied by each byte of the name modulo m. The hash
// is pure; registration and bytecode generation both depend on it being
// stable.
func Hash(name string, m int) Word {
	r := 1
	for _, c := range []byte(name) {
		r = (r * int(c)) % m
	}

	return Word(r % m)
}

// Table is a fixed-capacity instruction dispatch table. A slot is
// assigned by hashing the instruction's name once at registration;
// dispatch indexes the table directly by raw opcode value, with no
// runtime hashing.
type Table struct {
	Verbose bool // Set to enable verbose logging.

	slots []Handler
}

// NewTable creates a dispatch table with the given slot count.
func NewTable(size int) (tb *Table, err error) {
	if size <= 0 {
		err = ErrTableSize
		return
	}

	tb = &Table{slots: make([]Handler, size)}

	return
}

// Size returns the table's slot count.
func (tb *Table) Size() int {
	return len(tb.slots)
}

// Register assigns handler to the slot hashed from name and returns the
// slot. Registering into an occupied slot is a configuration error: the
// table performs no open addressing or chaining, because a small
// instruction set is expected to be collision-free when the table size
// is chosen generously.
func (tb *Table) Register(name string, handler Handler) (slot Word, err error) {
	if handler == nil {
		err = ErrHandlerNil
		return
	}

	slot = Hash(name, len(tb.slots))

	if tb.Verbose {
		log.Printf("stax: [ivt]: hashed instruction '%s': %04x", name, int(slot))
	}

	if int(slot) >= len(tb.slots) {
		err = &ErrSlotInvalid{Name: name, Slot: slot}
		return
	}
	if tb.slots[slot] != nil {
		err = &ErrSlotOccupied{Name: name, Slot: slot}
		return
	}

	tb.slots[slot] = handler

	return
}

// Lookup returns the handler at the raw opcode slot, or nil when the
// slot is empty or out of range.
func (tb *Table) Lookup(op Word) Handler {
	if op < 0 || int(op) >= len(tb.slots) {
		return nil
	}

	return tb.slots[op]
}
