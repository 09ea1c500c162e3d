package vcpu

import (
	"fmt"
	"iter"
)

// Fault codes observed in the reference instruction set. The registry is
// open: handler authors may add their own codes with RegisterFault.
const (
	FAULT_MEM_DENIED = 102 // Memory-access permission denied.
	FAULT_POOL       = 103 // Allocation pool ceiling exceeded.
	FAULT_EOB        = 399 // End of bytecode.
	FAULT_NO_FD      = 405 // No file-descriptor block available.
	FAULT_RANGE      = 744 // Position or size out of range.
	FAULT_NO_CPU     = 758 // Operation against a missing CPU.
)

const (
	EXCEPT_LIMIT = 200 // Initial exception stack capacity.
)

type faultEntry struct {
	name    string
	meaning string
}

var faultRegistry = map[int]faultEntry{
	FAULT_MEM_DENIED: {"FAULT_MEM_DENIED", "memory-access permission denied"},
	FAULT_POOL:       {"FAULT_POOL", "allocation pool exceeded"},
	FAULT_EOB:        {"FAULT_EOB", "end of bytecode"},
	FAULT_NO_FD:      {"FAULT_NO_FD", "no file-descriptor block"},
	FAULT_RANGE:      {"FAULT_RANGE", "position or size out of range"},
	FAULT_NO_CPU:     {"FAULT_NO_CPU", "no cpu"},
}

// RegisterFault adds a handler-defined fault code to the registry. The
// name becomes an assembler predefine for the code. Redefining a known
// code is a configuration error.
func RegisterFault(code int, name string, meaning string) (err error) {
	if _, ok := faultRegistry[code]; ok {
		return ErrFaultDefined
	}
	faultRegistry[code] = faultEntry{name: name, meaning: meaning}

	return
}

// DescribeFault returns the registered meaning of a fault code.
func DescribeFault(code int) (meaning string, ok bool) {
	entry, ok := faultRegistry[code]
	meaning = entry.meaning
	return
}

// FaultDefines returns an iterator over every registered fault code as
// an assembler predefine, name to code value.
func FaultDefines() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for code, entry := range faultRegistry {
			if !yield(entry.name, fmt.Sprintf("%#v", code)) {
				return
			}
		}
	}
}

// Faults is the exception stack: a growable log of integer fault codes.
// Raising a fault never halts or unwinds execution; callers poll the
// stack to detect trouble. The zero value is an empty stack.
type Faults struct {
	codes []int
}

// Raise appends code to the stack, doubling the backing capacity when
// full.
func (fs *Faults) Raise(code int) {
	if fs.codes == nil {
		fs.codes = make([]int, 0, EXCEPT_LIMIT)
	}
	if len(fs.codes) == cap(fs.codes) {
		grown := make([]int, len(fs.codes), cap(fs.codes)*2)
		copy(grown, fs.codes)
		fs.codes = grown
	}

	fs.codes = append(fs.codes, code)
}

// Top returns the most recently raised code. On an empty stack it
// returns (0, false) rather than an undefined read.
func (fs *Faults) Top() (code int, ok bool) {
	if len(fs.codes) == 0 {
		return
	}

	return fs.codes[len(fs.codes)-1], true
}

// Len returns the number of recorded faults.
func (fs *Faults) Len() int {
	return len(fs.codes)
}

// Codes returns the recorded fault codes in raise order.
func (fs *Faults) Codes() []int {
	out := make([]int, len(fs.codes))
	copy(out, fs.codes)

	return out
}

// Reset drops all recorded faults.
func (fs *Faults) Reset() {
	fs.codes = nil
}
