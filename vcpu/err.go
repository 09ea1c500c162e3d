package vcpu

import (
	"errors"

	"github.com/ezrec/stax/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrNotPowered = errors.New(f("cpu not powered on"))
	ErrNotOff     = errors.New(f("cpu not off"))

	// Table errors
	ErrTableSize    = errors.New(f("table size invalid"))
	ErrHandlerNil   = errors.New(f("handler missing"))
	ErrFaultDefined = errors.New(f("fault code already defined"))

	// Assembler errors
	ErrEquateSyntax    = errors.New(f(".equ syntax"))
	ErrEquateDuplicate = errors.New(f(".equ duplicated"))
	ErrOpcodeUnknown   = errors.New(f("instruction unknown"))
)

// ErrSlotOccupied reports a duplicate or colliding instruction name at
// registration.
type ErrSlotOccupied struct {
	Name string
	Slot Word
}

func (err *ErrSlotOccupied) Error() string {
	return f("instruction '%v' collides at slot %04x", err.Name, int(err.Slot))
}

// ErrSlotInvalid reports a hashed slot outside the table.
type ErrSlotInvalid struct {
	Name string
	Slot Word
}

func (err *ErrSlotInvalid) Error() string {
	return f("instruction '%v' hashed to %04x, outside the table", err.Name, int(err.Slot))
}

// ErrInstruction tags a handler failure with the opcode that dispatched
// it.
type ErrInstruction Word

func (err ErrInstruction) Error() string {
	return f("instruction 0x%04x failed", int(err))
}

func (err ErrInstruction) Is(other error) (ok bool) {
	_, ok = other.(ErrInstruction)
	return
}

// ErrSyntax indicates the location of an assembler error.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}
