//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapping is a Bus over memory mapped from a device file.
type Mapping struct {
	mem []byte
}

// Map maps size bytes of path starting at file offset off. For /dev/mem off
// is the physical peripheral address; /dev/gpiomem only maps the GPIO block
// and takes off 0.
func Map(path string, off int64, size int) (*Mapping, error) {
	if off%4 != 0 || size%4 != 0 {
		return nil, ErrUnaligned
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), off, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s at 0x%x: %w", path, off, err)
	}
	return &Mapping{mem: mem}, nil
}

func (m *Mapping) word(off uint32) *uint32 {
	i := int(off) * 4
	if i+4 > len(m.mem) {
		panic(ErrRange)
	}
	return (*uint32)(unsafe.Pointer(&m.mem[i]))
}

// Read32 implements Bus.
func (m *Mapping) Read32(off uint32) uint32 {
	return atomic.LoadUint32(m.word(off))
}

// Write32 implements Bus.
func (m *Mapping) Write32(off uint32, v uint32) {
	atomic.StoreUint32(m.word(off), v)
}

// Words implements Sizer.
func (m *Mapping) Words() uint32 { return uint32(len(m.mem) / 4) }

// Close unmaps the memory.
func (m *Mapping) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
