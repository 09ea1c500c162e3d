// Package isa provides the reference instruction set for the stax CPU:
// the memory-chain and file-descriptor handlers that exercise the
// engine's capability surface. The engine itself has no knowledge of
// these instructions; they are registered like any other plug-in.
package isa

import (
	"io"
	"os"

	"github.com/ezrec/stax/rolloc"
	"github.com/ezrec/stax/vcpu"
)

const (
	FD_BLOCK_CELLS = 20 // Cells in a file-descriptor block.
)

// Set is one instance of the reference instruction set. Descriptor
// writes resolve through Files, so hosts and tests can redirect them.
type Set struct {
	Files map[int]io.Writer // Descriptor value to output sink.
}

// NewSet creates the instruction set with stdout and stderr attached to
// the conventional descriptors.
func NewSet() (set *Set) {
	set = &Set{
		Files: map[int]io.Writer{
			1: os.Stdout,
			2: os.Stderr,
		},
	}

	return
}

// Instructions returns the name to handler mapping to register into a
// CPU. Slot assignment is up to the table's hash.
func (set *Set) Instructions() map[string]vcpu.Handler {
	return map[string]vcpu.Handler{
		"ALLOCH":  vcpu.HandlerFunc(set.Alloch),
		"PUT":     vcpu.HandlerFunc(set.Put),
		"MOVE":    vcpu.HandlerFunc(set.Move),
		"OPENFD":  vcpu.HandlerFunc(set.OpenFd),
		"WRITEFD": vcpu.HandlerFunc(set.WriteFd),
		"CLOSEFD": vcpu.HandlerFunc(set.CloseFd),
	}
}

// Alloch allocates a memory chain block of N cells.
// ALLOCH N
func (set *Set) Alloch(cpu *vcpu.Cpu) error {
	if !cpu.MemoryEnabled() {
		cpu.Faults.Raise(vcpu.FAULT_MEM_DENIED)
		return nil
	}

	size := cpu.Next()
	cpu.Alloc(int(size))

	return nil
}

// Put writes value B into cell L of the block at ordinal N.
// PUT B N L
func (set *Set) Put(cpu *vcpu.Cpu) error {
	if !cpu.MemoryEnabled() {
		cpu.Faults.Raise(vcpu.FAULT_MEM_DENIED)
		return nil
	}

	b := cpu.Next()
	n := cpu.Next()
	l := cpu.Next()

	block, err := cpu.Chain.BlockAt(int(n))
	if err != nil {
		cpu.Faults.Raise(vcpu.FAULT_RANGE)
		return nil
	}

	if l < 0 || int(l) >= block.Size() {
		cpu.Faults.Raise(vcpu.FAULT_RANGE)
		return nil
	}

	block.Cells[l] = int(b)

	return nil
}

// Move copies the cell at P1 of the block at ordinal SRC into cell P2
// of the block at ordinal DEST, zeroing the source cell.
// MOVE SRC P1 DEST P2
func (set *Set) Move(cpu *vcpu.Cpu) error {
	if !cpu.MemoryEnabled() {
		cpu.Faults.Raise(vcpu.FAULT_MEM_DENIED)
		return nil
	}

	src := cpu.Next()
	p1 := cpu.Next()
	dest := cpu.Next()
	p2 := cpu.Next()

	from, err := cpu.Chain.BlockAt(int(src))
	if err != nil {
		cpu.Faults.Raise(vcpu.FAULT_RANGE)
		return nil
	}
	to, err := cpu.Chain.BlockAt(int(dest))
	if err != nil {
		cpu.Faults.Raise(vcpu.FAULT_RANGE)
		return nil
	}

	if p1 < 0 || int(p1) >= from.Size() || p2 < 0 || int(p2) >= to.Size() {
		cpu.Faults.Raise(vcpu.FAULT_RANGE)
		return nil
	}

	to.Cells[p2] = from.Cells[p1]
	from.Cells[p1] = 0

	return nil
}

// OpenFd allocates a file-descriptor block holding the descriptor value
// in cell 0, tagged so later instructions can locate it.
// OPENFD FD
func (set *Set) OpenFd(cpu *vcpu.Cpu) error {
	if !cpu.MemoryEnabled() {
		cpu.Faults.Raise(vcpu.FAULT_MEM_DENIED)
		return nil
	}

	fd := cpu.Next()

	block := cpu.Alloc(FD_BLOCK_CELLS)
	if block == nil {
		return nil
	}

	block.Cells[0] = int(fd)
	block.Tag = rolloc.TAG_FILEDESC

	return nil
}

// WriteFd writes N operand cells, low byte of each, to the descriptor
// held by the first file-descriptor block.
// WRITEFD N B0 .. BN-1
func (set *Set) WriteFd(cpu *vcpu.Cpu) error {
	if !cpu.MemoryEnabled() {
		cpu.Faults.Raise(vcpu.FAULT_MEM_DENIED)
		return nil
	}

	// The claimed byte count must fit in the rest of the stream; the
	// operands are then consumed before the descriptor is resolved, so
	// a missing block cannot skew the stream for later instructions.
	size := cpu.Next()
	if size < 0 || int(size) > cpu.Remaining() {
		cpu.Faults.Raise(vcpu.FAULT_RANGE)
		return nil
	}

	data := make([]byte, size)
	for n := range data {
		data[n] = byte(cpu.Next())
	}

	block, err := cpu.Chain.FirstTagged(rolloc.TAG_FILEDESC)
	if err != nil {
		cpu.Faults.Raise(vcpu.FAULT_NO_FD)
		return nil
	}

	out, ok := set.Files[block.Cells[0]]
	if !ok {
		cpu.Faults.Raise(vcpu.FAULT_NO_FD)
		return nil
	}

	_, err = out.Write(data)

	return err
}

// CloseFd releases the first file-descriptor block. This is the only
// instruction that unlinks a block, so ordinal addresses taken before a
// CLOSEFD are not stable across it.
// CLOSEFD
func (set *Set) CloseFd(cpu *vcpu.Cpu) error {
	if !cpu.MemoryEnabled() {
		cpu.Faults.Raise(vcpu.FAULT_MEM_DENIED)
		return nil
	}

	block, err := cpu.Chain.FirstTagged(rolloc.TAG_FILEDESC)
	if err != nil {
		// No descriptor block is not a fault; closing twice is benign.
		return nil
	}

	return cpu.Chain.Release(block)
}
