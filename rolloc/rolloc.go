// Package rolloc implements the free-list allocator that backs the
// emulated memory chain of a stax CPU.
//
// A Chain is an ordered, singly linked list of variable-size Blocks.
// Blocks are appended at the tail and addressed by their 0-based ordinal
// from the root. A Block flagged reusable may be zeroed and handed out
// again by a later allocation; releasing a non-reusable Block unlinks it
// from the chain.
package rolloc

import (
	"iter"
	"log"
)

// Tag marks special-purpose blocks in a chain.
type Tag int

//go:generate go tool stringer -linecomment -type=Tag
const (
	TAG_NONE     = Tag(0) // none
	TAG_FILEDESC = Tag(1) // filedesc
)

// Block is a single chunk of emulated memory. Each cell holds a full
// machine int so values beyond 255 survive a round trip through memory.
type Block struct {
	Cells    []int // Cell storage, zero-initialized.
	Reusable bool  // May be zeroed and reused by a later allocation.
	Tag      Tag   // Marks special-purpose blocks.

	next *Block
}

// Size returns the block's capacity in cells. A block's size never
// shrinks except through an explicit Realloc.
func (b *Block) Size() int {
	return len(b.Cells)
}

// Zero clears every cell in the block.
func (b *Block) Zero() {
	clear(b.Cells)
}

// Chain is the linked sequence of blocks owned by one CPU. The zero
// value is an empty chain ready for use.
type Chain struct {
	Verbose bool // Set to enable verbose logging.

	root *Block
}

// NewChain creates an empty memory chain.
func NewChain() (ch *Chain) {
	ch = &Chain{}

	return
}

// NewChunk appends a new zero-filled block of size cells at the tail of
// the chain. O(n) to find the tail; chains are expected to stay short.
func (ch *Chain) NewChunk(size int) (block *Block, err error) {
	if size <= 0 {
		err = ErrSizeInvalid
		return
	}

	block = &Block{Cells: make([]int, size)}

	if ch.root == nil {
		ch.root = block
	} else {
		tail := ch.root
		for tail.next != nil {
			tail = tail.next
		}
		tail.next = block
	}

	if ch.Verbose {
		log.Printf("stax: [chain]: new chunk of %d cells", size)
	}

	return
}

// FindFirstReusable returns the first block flagged reusable, or nil if
// no such block exists. O(n) scan from the root.
func (ch *Chain) FindFirstReusable() (block *Block) {
	for b := range ch.All() {
		if b.Reusable {
			return b
		}
	}

	return
}

// Alloc returns a zeroed block of at least size cells, flagged with the
// caller's reusable request. The first reusable block is recycled when
// its capacity suffices; otherwise a new chunk is appended. A recycled
// block that is too small is left alone rather than grown in place.
func (ch *Chain) Alloc(size int, reusable bool) (block *Block, err error) {
	if size <= 0 {
		err = ErrSizeInvalid
		return
	}

	block = ch.FindFirstReusable()
	if block != nil && block.Size() >= size {
		block.Zero()
		block.Reusable = reusable
		block.Tag = TAG_NONE

		if ch.Verbose {
			log.Printf("stax: [chain]: reused block of %d cells", block.Size())
		}
		return
	}

	block, err = ch.NewChunk(size)
	if err != nil {
		return
	}
	block.Reusable = reusable

	return
}

// Realloc resizes a block, located by identity, in place. The cell
// contents are preserved up to the smaller of the two sizes.
func (ch *Chain) Realloc(block *Block, size int) (err error) {
	if size <= 0 {
		return ErrSizeInvalid
	}

	for b := range ch.All() {
		if b != block {
			continue
		}
		cells := make([]int, size)
		copy(cells, b.Cells)
		b.Cells = cells
		return
	}

	return ErrBlockUnknown
}

// Release returns a block to the chain. A reusable block is zeroed and
// kept in place for a later Alloc; any other block is unlinked from the
// chain. Only blocks reachable from the root can be released.
func (ch *Chain) Release(block *Block) (err error) {
	if block == nil {
		return ErrBlockUnknown
	}

	if block.Reusable {
		block.Zero()
		return
	}

	if ch.root == block {
		ch.root = block.next
		block.next = nil
		return
	}

	for b := ch.root; b != nil; b = b.next {
		if b.next == block {
			b.next = block.next
			block.next = nil
			return
		}
	}

	return ErrBlockUnknown
}

// Reset drops every block in the chain. Ordinal addresses handed out
// before a Reset are meaningless afterwards.
func (ch *Chain) Reset() {
	ch.root = nil
}

// All iterates the chain's blocks in order from the root.
func (ch *Chain) All() iter.Seq[*Block] {
	return func(yield func(*Block) bool) {
		for b := ch.root; b != nil; b = b.next {
			if !yield(b) {
				return
			}
		}
	}
}

// BlockAt returns the block at the 0-based ordinal position from the
// root. The position is not stable across an unlinking Release.
func (ch *Chain) BlockAt(position int) (block *Block, err error) {
	if position < 0 {
		err = ErrPositionInvalid
		return
	}

	p := 0
	for b := range ch.All() {
		if p == position {
			if ch.Verbose {
				log.Printf("stax: [chain]: found block of %d cells at position %d", b.Size(), p)
			}
			block = b
			return
		}
		p++
	}

	err = ErrPositionInvalid
	return
}

// FirstTagged returns the first block carrying the given tag.
func (ch *Chain) FirstTagged(tag Tag) (block *Block, err error) {
	for b := range ch.All() {
		if b.Tag == tag {
			block = b
			return
		}
	}

	err = ErrTagUnknown
	return
}

// Blocks returns the number of blocks in the chain.
func (ch *Chain) Blocks() (count int) {
	for range ch.All() {
		count++
	}

	return
}

// InUse returns the total cell count held by the chain.
func (ch *Chain) InUse() (cells int) {
	for b := range ch.All() {
		cells += b.Size()
	}

	return
}
