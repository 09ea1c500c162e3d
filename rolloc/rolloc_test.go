package rolloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChain_NewChunk(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	assert.Equal(0, ch.Blocks())

	b, err := ch.NewChunk(8)
	assert.NoError(err)
	assert.Equal(8, b.Size())
	assert.Equal(1, ch.Blocks())
	assert.Equal(8, ch.InUse())

	b2, err := ch.NewChunk(4)
	assert.NoError(err)
	assert.Equal(2, ch.Blocks())
	assert.Equal(12, ch.InUse())

	// Appended at the tail.
	at, err := ch.BlockAt(1)
	assert.NoError(err)
	assert.Same(b2, at)
}

func TestChain_NewChunk_SizeInvalid(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	_, err := ch.NewChunk(0)
	assert.ErrorIs(err, ErrSizeInvalid)
	_, err = ch.NewChunk(-3)
	assert.ErrorIs(err, ErrSizeInvalid)
	assert.Equal(0, ch.Blocks())
}

func TestChain_FindFirstReusable(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	assert.Nil(ch.FindFirstReusable())

	a, _ := ch.NewChunk(2)
	b, _ := ch.NewChunk(2)
	assert.Nil(ch.FindFirstReusable())

	b.Reusable = true
	assert.Same(b, ch.FindFirstReusable())

	a.Reusable = true
	assert.Same(a, ch.FindFirstReusable())
}

func TestChain_Alloc_Reuse(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()

	b, err := ch.Alloc(8, true)
	assert.NoError(err)
	assert.Equal(1, ch.Blocks())
	b.Cells[0] = 65
	b.Cells[7] = 66

	err = ch.Release(b)
	assert.NoError(err)
	assert.Equal(1, ch.Blocks())

	b2, err := ch.Alloc(8, true)
	assert.NoError(err)
	assert.Same(b, b2)
	assert.GreaterOrEqual(b2.Size(), 8)
	for _, cell := range b2.Cells {
		assert.Equal(0, cell)
	}
}

func TestChain_Alloc_ReuseClearsTag(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()

	b, _ := ch.Alloc(4, true)
	b.Tag = TAG_FILEDESC
	assert.NoError(ch.Release(b))

	b2, err := ch.Alloc(4, false)
	assert.NoError(err)
	assert.Same(b, b2)
	assert.Equal(TAG_NONE, b2.Tag)
	assert.False(b2.Reusable)
}

func TestChain_Alloc_ReusableTooSmall(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()

	small, _ := ch.Alloc(2, true)

	// The reusable block cannot satisfy the request; a fresh chunk is
	// appended instead of failing the allocation.
	big, err := ch.Alloc(16, false)
	assert.NoError(err)
	assert.NotSame(small, big)
	assert.Equal(16, big.Size())
	assert.Equal(2, ch.Blocks())
	assert.Equal(2, small.Size())
}

func TestChain_Realloc(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	b, _ := ch.NewChunk(2)
	b.Cells[0] = 7
	b.Cells[1] = 9

	err := ch.Realloc(b, 6)
	assert.NoError(err)
	assert.Equal(6, b.Size())
	assert.Equal(7, b.Cells[0])
	assert.Equal(9, b.Cells[1])
	assert.Equal(0, b.Cells[5])
}

func TestChain_Realloc_Unknown(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	ch.NewChunk(2)

	stray := &Block{Cells: make([]int, 2)}
	err := ch.Realloc(stray, 4)
	assert.ErrorIs(err, ErrBlockUnknown)
}

func TestChain_Release_Soft(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	b, _ := ch.Alloc(4, true)
	b.Cells[2] = 42

	assert.NoError(ch.Release(b))
	assert.Equal(1, ch.Blocks())
	assert.Equal(0, b.Cells[2])
}

func TestChain_Release_Unlink(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	a, _ := ch.NewChunk(1)
	b, _ := ch.NewChunk(2)
	c, _ := ch.NewChunk(3)

	assert.NoError(ch.Release(b))
	assert.Equal(2, ch.Blocks())
	assert.Equal(4, ch.InUse())

	// Ordinal positions shift after an unlink.
	at, err := ch.BlockAt(1)
	assert.NoError(err)
	assert.Same(c, at)

	// Unlinking the root is handled too.
	assert.NoError(ch.Release(a))
	at, err = ch.BlockAt(0)
	assert.NoError(err)
	assert.Same(c, at)
}

func TestChain_Release_Unknown(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	ch.NewChunk(1)

	stray := &Block{Cells: make([]int, 1)}
	assert.ErrorIs(ch.Release(stray), ErrBlockUnknown)
	assert.ErrorIs(ch.Release(nil), ErrBlockUnknown)
}

func TestChain_BlockAt(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	a, _ := ch.NewChunk(1)
	b, _ := ch.NewChunk(2)

	at, err := ch.BlockAt(0)
	assert.NoError(err)
	assert.Same(a, at)

	at, err = ch.BlockAt(1)
	assert.NoError(err)
	assert.Same(b, at)

	_, err = ch.BlockAt(2)
	assert.ErrorIs(err, ErrPositionInvalid)
	_, err = ch.BlockAt(-1)
	assert.ErrorIs(err, ErrPositionInvalid)
}

func TestChain_FirstTagged(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	ch.NewChunk(1)
	b, _ := ch.NewChunk(2)
	b.Tag = TAG_FILEDESC
	c, _ := ch.NewChunk(3)
	c.Tag = TAG_FILEDESC

	at, err := ch.FirstTagged(TAG_FILEDESC)
	assert.NoError(err)
	assert.Same(b, at)

	ch2 := NewChain()
	_, err = ch2.FirstTagged(TAG_FILEDESC)
	assert.ErrorIs(err, ErrTagUnknown)
}

func TestChain_Reset(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain()
	ch.NewChunk(4)
	ch.NewChunk(4)

	ch.Reset()
	assert.Equal(0, ch.Blocks())
	assert.Equal(0, ch.InUse())

	// A reset chain is still usable.
	_, err := ch.NewChunk(2)
	assert.NoError(err)
	assert.Equal(1, ch.Blocks())
}
