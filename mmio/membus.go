package mmio

import "sync"

// MemBus is a word-addressed in-memory Bus. Hooks let tests model hardware
// side effects such as self-clearing bits, FIFOs and status flags.
type MemBus struct {
	mu    sync.Mutex
	words map[uint32]uint32
	size  uint32

	// OnRead, if set, is called instead of reading the backing store. It
	// receives the stored value and returns the value seen by the caller.
	OnRead func(off uint32, stored uint32) uint32

	// OnWrite, if set, is called with the written value and returns the
	// value to store. Returning keep=false leaves the store unchanged.
	OnWrite func(off uint32, v uint32) (store uint32, keep bool)
}

// NewMemBus returns a MemBus covering size words. A size of zero means
// unbounded.
func NewMemBus(size uint32) *MemBus {
	return &MemBus{words: make(map[uint32]uint32), size: size}
}

// Words implements Sizer.
func (m *MemBus) Words() uint32 { return m.size }

// Read32 implements Bus.
func (m *MemBus) Read32(off uint32) uint32 {
	m.mu.Lock()
	v := m.words[off]
	hook := m.OnRead
	m.mu.Unlock()
	if hook != nil {
		return hook(off, v)
	}
	return v
}

// Write32 implements Bus.
func (m *MemBus) Write32(off uint32, v uint32) {
	if hook := m.OnWrite; hook != nil {
		store, keep := hook(off, v)
		if !keep {
			return
		}
		v = store
	}
	m.mu.Lock()
	m.words[off] = v
	m.mu.Unlock()
}

// Peek returns the stored word without running hooks.
func (m *MemBus) Peek(off uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[off]
}

// Poke stores a word without running hooks.
func (m *MemBus) Poke(off uint32, v uint32) {
	m.mu.Lock()
	m.words[off] = v
	m.mu.Unlock()
}
