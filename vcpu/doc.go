// Package vcpu implements the stax virtual CPU: a bytecode interpreter
// with a hash-addressed instruction table, an exception stack of
// recorded fault codes, and an optional emulated memory chain.
//
// A Cpu owns a bytecode Stream, an instruction Table, a Faults log, and
// (when memory allocation is permitted) a rolloc.Chain. The CPU has a
// three-state lifecycle (off, waiting, on): toggling it on starts the
// fetch/decode/execute loop, which reads opcodes from the stream and
// invokes the registered handlers. Opcodes are raw table slot indices,
// assigned by hashing an instruction's name once at registration.
//
// The package also provides a single pass assembler that turns mnemonic
// source text into slot-valued bytecode.
package vcpu
