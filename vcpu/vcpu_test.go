package vcpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// allocHandler consumes one operand and allocates that many cells.
func allocHandler(cpu *Cpu) error {
	size := cpu.Next()
	cpu.Alloc(int(size))
	return nil
}

func TestCpu_New(t *testing.T) {
	assert := assert.New(t)

	cpu, err := New(Settings{Silent: true})
	assert.NoError(err)
	assert.Equal(STATE_OFF, cpu.State())
	assert.Equal(TABLE_SIZE, cpu.Table.Size())
	assert.False(cpu.MemoryEnabled())
	assert.Nil(cpu.Chain)

	cpu, err = New(Settings{AllowMemoryAllocation: true, Silent: true, TableSize: 16})
	assert.NoError(err)
	assert.True(cpu.MemoryEnabled())
	assert.Equal(16, cpu.Table.Size())
	assert.Equal(0, cpu.Blocks())
}

func TestCpu_Toggle(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := New(Settings{Silent: true})
	assert.Equal(STATE_OFF, cpu.State())

	cpu.Toggle()
	assert.Equal(STATE_ON, cpu.State())

	cpu.Toggle()
	assert.Equal(STATE_OFF, cpu.State())
}

func TestCpu_Run_NotPowered(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := New(Settings{Silent: true})
	cpu.Load(MAGIC_STOP)

	assert.ErrorIs(cpu.Run(), ErrNotPowered)
}

func TestCpu_Run_AllocScenario(t *testing.T) {
	assert := assert.New(t)

	cpu, err := New(Settings{
		AllowMemoryAllocation:   true,
		MaxMemoryAllocationPool: -1,
		Silent:                  true,
		TableSize:               16,
	})
	assert.NoError(err)

	// "AU" hashes to slot 5 in a 16-slot table.
	slot, err := cpu.Register("AU", HandlerFunc(allocHandler))
	assert.NoError(err)
	assert.Equal(Word(5), slot)

	cpu.Load(5, 8, MAGIC_STOP)
	cpu.Toggle()

	assert.NoError(cpu.Run())

	assert.Equal(1, cpu.Blocks())
	block, err := cpu.Chain.BlockAt(0)
	assert.NoError(err)
	assert.GreaterOrEqual(block.Size(), 8)

	// Halted at the stop marker without any fault raised.
	_, faulted := cpu.LastFault()
	assert.False(faulted)
	assert.Equal(STATE_ON, cpu.State())
}

func TestCpu_Run_DeadCodeExhaustion(t *testing.T) {
	assert := assert.New(t)

	cpu, err := New(Settings{Silent: true, TableSize: 16})
	assert.NoError(err)

	// Opcode 9 is unregistered and there is no stop marker: the loop
	// ends by stream exhaustion with exactly one end-of-bytecode fault.
	cpu.Load(9)
	cpu.Toggle()

	assert.NoError(cpu.Run())

	assert.Equal([]int{FAULT_EOB}, cpu.Faults.Codes())
}

func TestCpu_Run_HandlerOperandOverread(t *testing.T) {
	assert := assert.New(t)

	cpu, err := New(Settings{Silent: true, TableSize: 16})
	assert.NoError(err)

	slot, err := cpu.Register("AU", HandlerFunc(func(cpu *Cpu) error {
		cpu.Next()
		return nil
	}))
	assert.NoError(err)

	// The handler expects an operand the bytecode does not carry; the
	// run must still terminate, with one end-of-bytecode fault.
	cpu.Load(slot)
	cpu.Toggle()

	assert.NoError(cpu.Run())
	assert.Equal([]int{FAULT_EOB}, cpu.Faults.Codes())
}

func TestCpu_Run_MemoryDenied(t *testing.T) {
	assert := assert.New(t)

	cpu, err := New(Settings{AllowMemoryAllocation: false, Silent: true, TableSize: 16})
	assert.NoError(err)

	slot, err := cpu.Register("AU", HandlerFunc(allocHandler))
	assert.NoError(err)

	cpu.Load(slot, 8, MAGIC_STOP)
	cpu.Toggle()

	assert.NoError(cpu.Run())

	code, ok := cpu.LastFault()
	assert.True(ok)
	assert.Equal(FAULT_MEM_DENIED, code)
	assert.Equal(0, cpu.Blocks())
	assert.Nil(cpu.Chain)
}

func TestCpu_Run_WaitingDuringDispatch(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := New(Settings{Silent: true, TableSize: 16})

	var seen State
	slot, err := cpu.Register("AU", HandlerFunc(func(cpu *Cpu) error {
		seen = cpu.State()
		return nil
	}))
	assert.NoError(err)

	cpu.Load(slot, MAGIC_STOP)
	cpu.Toggle()
	assert.NoError(cpu.Run())

	assert.Equal(STATE_WAITING, seen)
	assert.Equal(STATE_ON, cpu.State())
}

func TestCpu_Run_HandlerError(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := New(Settings{Silent: true, TableSize: 16})

	errBroken := errors.New("broken host")
	slot, err := cpu.Register("AU", HandlerFunc(func(cpu *Cpu) error {
		return errBroken
	}))
	assert.NoError(err)

	cpu.Load(slot, MAGIC_STOP)
	cpu.Toggle()

	err = cpu.Run()
	assert.ErrorIs(err, errBroken)
	assert.ErrorIs(err, ErrInstruction(slot))
	assert.Equal(STATE_ON, cpu.State())
}

func TestCpu_Run_FaultDoesNotHalt(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := New(Settings{Silent: true, TableSize: 16})

	var calls int
	slot, err := cpu.Register("AU", HandlerFunc(func(cpu *Cpu) error {
		calls++
		cpu.Faults.Raise(744)
		return nil
	}))
	assert.NoError(err)

	// A recorded fault never unwinds: the second invocation still runs.
	cpu.Load(slot, slot, MAGIC_STOP)
	cpu.Toggle()
	assert.NoError(cpu.Run())

	assert.Equal(2, calls)
	assert.Equal([]int{744, 744}, cpu.Faults.Codes())
}

func TestCpu_Alloc_PoolCeiling(t *testing.T) {
	assert := assert.New(t)

	cpu, err := New(Settings{
		AllowMemoryAllocation:   true,
		MaxMemoryAllocationPool: 10,
		Silent:                  true,
	})
	assert.NoError(err)

	block := cpu.Alloc(8)
	assert.NotNil(block)
	assert.Equal(8, cpu.MemoryInUse())

	block = cpu.Alloc(8)
	assert.Nil(block)
	code, ok := cpu.LastFault()
	assert.True(ok)
	assert.Equal(FAULT_POOL, code)
	assert.Equal(1, cpu.Blocks())

	// A negative ceiling disables the check entirely.
	cpu2, _ := New(Settings{
		AllowMemoryAllocation:   true,
		MaxMemoryAllocationPool: -1,
		Silent:                  true,
	})
	assert.NotNil(cpu2.Alloc(1 << 16))
}

func TestCpu_Alloc_DefaultNoCeiling(t *testing.T) {
	assert := assert.New(t)

	// The zero value of the pool setting places no ceiling at all.
	cpu, err := New(Settings{AllowMemoryAllocation: true, Silent: true})
	assert.NoError(err)

	assert.NotNil(cpu.Alloc(8))
	assert.Equal(8, cpu.MemoryInUse())
	_, faulted := cpu.LastFault()
	assert.False(faulted)
}

func TestCpu_Close(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := New(Settings{AllowMemoryAllocation: true, Silent: true})
	cpu.Alloc(8)
	cpu.Load(MAGIC_STOP)

	cpu.Toggle()
	assert.ErrorIs(cpu.Close(), ErrNotOff)

	cpu.Toggle()
	assert.NoError(cpu.Close())
	assert.Equal(0, cpu.Blocks())
	assert.Nil(cpu.Chain)
	assert.Nil(cpu.Table)
}
