package vcpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/stax/rolloc"
)

// State is the CPU lifecycle state.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_OFF     = State(0) // off
	STATE_WAITING = State(1) // waiting
	STATE_ON      = State(2) // on
)

var _cpu_defines = map[string]string{
	"MAGIC_STOP": fmt.Sprintf("%#v", int(MAGIC_STOP)),
	"TABLE_SIZE": fmt.Sprintf("%#v", TABLE_SIZE),
}

// Settings configures a CPU at construction.
type Settings struct {
	AllowMemoryAllocation   bool // Enables the memory chain and allocation-capable handlers.
	MaxMemoryAllocationPool int  // Ceiling on chain cells in use; zero or negative means no ceiling.
	Silent                  bool // Suppresses trace output, never fault recording.
	TableSize               int  // Instruction table slots; 0 selects TABLE_SIZE.
}

// Cpu is one virtual CPU instance. It exclusively owns its stream,
// table, fault stack, and memory chain; nothing is shared across CPU
// instances and a CPU must be confined to one goroutine at a time.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Table  *Table        // Instruction dispatch table.
	Chain  *rolloc.Chain // Memory chain; nil unless memory is enabled.
	Faults Faults        // Exception stack.

	stream  Stream
	state   State
	maxPool int
}

// New creates a CPU configured by settings.
func New(settings Settings) (cpu *Cpu, err error) {
	size := settings.TableSize
	if size == 0 {
		size = TABLE_SIZE
	}
	table, err := NewTable(size)
	if err != nil {
		return
	}

	cpu = &Cpu{
		Verbose: !settings.Silent,
		Table:   table,
		maxPool: settings.MaxMemoryAllocationPool,
	}
	cpu.Table.Verbose = cpu.Verbose

	if settings.AllowMemoryAllocation {
		cpu.Chain = rolloc.NewChain()
		cpu.Chain.Verbose = cpu.Verbose

		if cpu.Verbose {
			log.Printf("stax: [cpu]: loaded volatile memory table")
		}
	}

	return
}

// Defines returns an iterator over the CPU's assembler predefines.
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// State returns the current lifecycle state.
func (cpu *Cpu) State() State {
	return cpu.state
}

// Pc returns the current program counter.
func (cpu *Cpu) Pc() int {
	return cpu.stream.Pos
}

// Remaining returns the number of words between the program counter and
// the end of the stream.
func (cpu *Cpu) Remaining() int {
	if cpu.stream.Pos >= cpu.stream.Len() {
		return 0
	}

	return cpu.stream.Len() - cpu.stream.Pos
}

// MemoryEnabled reports whether the CPU may allocate chain memory.
func (cpu *Cpu) MemoryEnabled() bool {
	return cpu.Chain != nil
}

// Load appends bytecode words to the stream. Data already loaded stays
// in place, so programs can be extended between runs.
func (cpu *Cpu) Load(words ...Word) {
	cpu.stream.Append(words...)
}

// Current returns the word at the program counter without advancing.
func (cpu *Cpu) Current() Word {
	return cpu.stream.Current()
}

// Next returns the word at the program counter and advances by one.
// Fetching at the end of the stream raises FAULT_EOB and returns OOB;
// fetching beyond it raises FAULT_EOB and returns 0, the distinct
// signal for a handler over-reading its operands.
func (cpu *Cpu) Next() (n Word) {
	if cpu.stream.Pos > cpu.stream.Len() {
		if cpu.Verbose {
			log.Printf("stax: [cpu]: EOB(399): operand over-read")
		}
		cpu.Faults.Raise(FAULT_EOB)
		return 0
	}
	if cpu.stream.Pos == cpu.stream.Len() {
		if cpu.Verbose {
			log.Printf("stax: [cpu]: EOB(399): end of bytecode")
		}
		cpu.Faults.Raise(FAULT_EOB)
		cpu.stream.Pos++
		return OOB
	}

	n = cpu.stream.Current()
	cpu.stream.Pos++

	return
}

// Toggle flips the CPU between off and on. Callers must not toggle
// mid-dispatch.
func (cpu *Cpu) Toggle() {
	if cpu.state == STATE_ON {
		cpu.state = STATE_OFF
	} else {
		cpu.state = STATE_ON
	}
}

// Register maps an instruction name to a handler in the dispatch table
// and returns the assigned slot, which is the opcode value bytecode
// must use to invoke the handler.
func (cpu *Cpu) Register(name string, handler Handler) (slot Word, err error) {
	return cpu.Table.Register(name, handler)
}

// Run executes the loaded bytecode until the stop marker or the end of
// the stream. It is an error unless the CPU is on.
//
// Each fetched opcode that maps to an occupied slot switches the CPU to
// waiting, invokes the handler (which consumes its own operands from
// the stream), and switches back to on. Opcodes mapping to empty slots
// are inert dead code. Reaching the physical end of the stream without
// a stop marker records FAULT_EOB and stops the loop.
func (cpu *Cpu) Run() (err error) {
	if cpu.state != STATE_ON {
		return ErrNotPowered
	}

	for cpu.Current() != MAGIC_STOP {
		// A handler that over-read its operands leaves the cursor past
		// the end; nothing is left to fetch.
		if cpu.stream.Pos > cpu.stream.Len() {
			break
		}

		n := cpu.Next()

		if cpu.Verbose {
			log.Printf("stax: [cpu]: now %d", int(n))
		}

		if n == OOB {
			if cpu.Verbose {
				log.Printf("stax: [cpu]: EOB(399): premature end")
			}
			break
		}

		handler := cpu.Table.Lookup(n)
		if handler == nil {
			if cpu.Verbose {
				log.Printf("stax: [cpu]: note: dead code here (pc=%d)", cpu.stream.Pos)
			}
			continue
		}

		cpu.state = STATE_WAITING
		prepc := cpu.stream.Pos

		err = handler.Execute(cpu)

		cpu.state = STATE_ON

		if err != nil {
			err = errors.Join(ErrInstruction(n), err)
			return
		}

		if cpu.Verbose {
			log.Printf("stax: [cpu]: instruction '0x%04X' completed; occupied %d words",
				int(n), cpu.stream.Pos-prepc)
		}
	}

	return
}

// Alloc allocates a new block of size cells on the memory chain. When
// memory allocation is disabled it raises FAULT_MEM_DENIED; when the
// allocation pool ceiling would be exceeded it raises FAULT_POOL. A nil
// block means the request faulted and was recorded.
func (cpu *Cpu) Alloc(size int) (block *rolloc.Block) {
	if cpu.Chain == nil {
		if cpu.Verbose {
			log.Printf("stax: [cpu]: permission denied")
		}
		cpu.Faults.Raise(FAULT_MEM_DENIED)
		return
	}

	if cpu.Verbose {
		log.Printf("stax: [cpu]: allocation requested for %d cells", size)
	}

	if cpu.maxPool > 0 && cpu.Chain.InUse()+size > cpu.maxPool {
		if cpu.Verbose {
			log.Printf("stax: [cpu]: allocation pool exceeded (%d in use, %d max)",
				cpu.Chain.InUse(), cpu.maxPool)
		}
		cpu.Faults.Raise(FAULT_POOL)
		return
	}

	block, err := cpu.Chain.NewChunk(size)
	if err != nil {
		cpu.Faults.Raise(FAULT_RANGE)
		return nil
	}

	if cpu.Verbose {
		log.Printf("stax: [cpu]: allocation success")
	}

	return
}

// Blocks returns the number of blocks on the memory chain.
func (cpu *Cpu) Blocks() int {
	if cpu.Chain == nil {
		return 0
	}

	return cpu.Chain.Blocks()
}

// MemoryInUse returns the total cells held by the memory chain.
func (cpu *Cpu) MemoryInUse() int {
	if cpu.Chain == nil {
		return 0
	}

	return cpu.Chain.InUse()
}

// LastFault returns the most recently recorded fault code.
func (cpu *Cpu) LastFault() (code int, ok bool) {
	return cpu.Faults.Top()
}

// Close releases the memory chain, fault stack, stream, and table. It
// is only legal while the CPU is off.
func (cpu *Cpu) Close() (err error) {
	if cpu.state != STATE_OFF {
		return ErrNotOff
	}

	if cpu.Chain != nil {
		cpu.Chain.Reset()
		cpu.Chain = nil
	}
	cpu.Faults.Reset()
	cpu.stream = Stream{}
	cpu.Table = nil

	return
}
