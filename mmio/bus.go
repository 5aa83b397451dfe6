// Package mmio provides ordered 32-bit register access over a mapped
// peripheral block.
//
// Offsets are always expressed in 32-bit words from the start of the mapping.
// The mapping itself is supplied by a Bus; on Linux Map opens /dev/mem or
// /dev/gpiomem, tests use MemBus.
package mmio

import (
	"errors"
	"math"
)

var (
	ErrUnaligned = errors.New("mmio: offset or size not word aligned")
	ErrRange     = errors.New("mmio: access outside of mapped range")
)

// Bus is the raw read/write primitive over an established mapping.
type Bus interface {
	// Read32 returns the word at word offset off.
	Read32(off uint32) uint32

	// Write32 stores v at word offset off.
	Write32(off uint32, v uint32)
}

// Sizer is implemented by buses that know how many words they map.
type Sizer interface {
	Words() uint32
}

// Handle is a word offset into a Bus. The zero value is a valid offset; use
// Unmapped to mark a block that is not reachable.
type Handle uint32

// Unmapped is the sentinel for a register block that failed to map.
const Unmapped Handle = math.MaxUint32

// Mapped reports whether h refers to a reachable register.
func (h Handle) Mapped() bool { return h != Unmapped }

// Add returns the handle n words past h. Unmapped stays Unmapped.
func (h Handle) Add(n uint32) Handle {
	if h == Unmapped {
		return Unmapped
	}
	return h + Handle(n)
}

// Reg returns the handle of the register at byte offset off inside the block
// starting at h. Register offsets in data sheets are byte offsets.
func (h Handle) Reg(off uint32) Handle {
	return h.Add(off / 4)
}
