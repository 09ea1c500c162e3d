// Package machine couples a stax CPU with the reference instruction
// set and an assembler wired to its slot assignments. It is the
// embedding surface a host uses when it wants a ready-to-run machine
// rather than a bare engine.
package machine

import (
	"fmt"
	"io"
	"iter"
	"maps"

	"github.com/ezrec/stax/internal"
	"github.com/ezrec/stax/isa"
	"github.com/ezrec/stax/vcpu"
)

// Machine is a CPU with the reference instruction set registered.
type Machine struct {
	Verbose   bool // If set, enables verbose logging.
	*vcpu.Cpu      // Reference to the CPU.

	Set *isa.Set // Reference instruction set instance.

	slots map[string]vcpu.Word
}

// NewMachine creates a machine configured by settings, with every
// reference instruction registered.
func NewMachine(settings vcpu.Settings) (m *Machine, err error) {
	cpu, err := vcpu.New(settings)
	if err != nil {
		return
	}

	m = &Machine{
		Verbose: !settings.Silent,
		Cpu:     cpu,
		Set:     isa.NewSet(),
		slots:   make(map[string]vcpu.Word),
	}

	for name, handler := range m.Set.Instructions() {
		var slot vcpu.Word
		slot, err = cpu.Register(name, handler)
		if err != nil {
			m = nil
			return
		}
		m.slots[name] = slot
	}

	return
}

// SlotOf returns the table slot assigned to a registered mnemonic.
func (m *Machine) SlotOf(name string) (slot vcpu.Word, ok bool) {
	slot, ok = m.slots[name]
	return
}

// Defines returns an iterator over all of the assembler predefines:
// every registered fault code, per-instruction OP_ slot values, and the
// CPU's own defines.
func (m *Machine) Defines() iter.Seq2[string, string] {
	slotdef := make(map[string]string, len(m.slots))
	for name, slot := range m.slots {
		slotdef["OP_"+name] = fmt.Sprintf("%#v", int(slot))
	}

	return internal.IterSeq2Concat(vcpu.FaultDefines(),
		maps.All(slotdef),
		m.Cpu.Defines(),
	)
}

// Assembler returns an assembler wired to this machine's slot
// assignments and predefines.
func (m *Machine) Assembler() (asm *vcpu.Assembler) {
	asm = &vcpu.Assembler{
		Verbose: m.Verbose,
		Slots:   maps.Clone(m.slots),
	}
	for key, value := range m.Defines() {
		asm.Predefine(key, value)
	}

	return
}

// Assemble assembles source text into a program for this machine.
func (m *Machine) Assemble(input io.Reader) (prog *vcpu.Program, err error) {
	return m.Assembler().Parse(input)
}

// LoadProgram appends the program's bytecode to the CPU stream.
func (m *Machine) LoadProgram(prog *vcpu.Program) {
	m.Cpu.Load(prog.Binary()...)
}

// Run powers the CPU on, executes the loaded bytecode to the stop
// marker or the end of the stream, and powers it back off so the
// machine can be inspected or closed.
func (m *Machine) Run() (err error) {
	m.Cpu.Verbose = m.Verbose

	if m.Cpu.State() != vcpu.STATE_ON {
		m.Cpu.Toggle()
	}

	err = m.Cpu.Run()

	if m.Cpu.State() == vcpu.STATE_ON {
		m.Cpu.Toggle()
	}

	return
}
