package mmio

import (
	"context"
	"log/slog"
	"sync/atomic"
)

var fenceWord uint32

// fence is a full memory barrier. Sequentially consistent atomics order every
// memory access around them, which is what the peripheral bus needs between
// accesses to different peripherals.
func fence() {
	atomic.AddUint32(&fenceWord, 0)
}

// Regs performs register accesses on a Bus.
//
// Read and Write are barriered. ReadNB and WriteNB are not, and may only be
// used when the next access goes to the same peripheral and is itself
// barriered. Switching to another peripheral after an unbarriered access is
// undefined on this hardware.
type Regs struct {
	bus Bus
	log *slog.Logger
}

// NewRegs returns register accessors over bus.
func NewRegs(bus Bus) *Regs {
	return &Regs{bus: bus}
}

// SetLogger enables tracing of every access at debug level. A nil logger
// turns tracing off.
func (r *Regs) SetLogger(l *slog.Logger) {
	r.log = l
}

// Bus returns the underlying bus.
func (r *Regs) Bus() Bus { return r.bus }

func (r *Regs) check(h Handle) {
	if h == Unmapped {
		panic("mmio: access to unmapped register block")
	}
}

func (r *Regs) trace(op string, h Handle, v uint32) {
	if r.log == nil || !r.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	r.log.Debug("mmio", slog.String("op", op), slog.Uint64("addr", uint64(h)*4), slog.Uint64("val", uint64(v)))
}

// Read reads h with a barrier before and after.
func (r *Regs) Read(h Handle) uint32 {
	r.check(h)
	fence()
	v := r.bus.Read32(uint32(h))
	fence()
	r.trace("read", h, v)
	return v
}

// ReadNB reads h without barriers.
func (r *Regs) ReadNB(h Handle) uint32 {
	r.check(h)
	v := r.bus.Read32(uint32(h))
	r.trace("read_nb", h, v)
	return v
}

// Write writes v to h with a barrier before and after.
func (r *Regs) Write(h Handle, v uint32) {
	r.check(h)
	r.trace("write", h, v)
	fence()
	r.bus.Write32(uint32(h), v)
	fence()
}

// WriteNB writes v to h without barriers.
func (r *Regs) WriteNB(h Handle, v uint32) {
	r.check(h)
	r.trace("write_nb", h, v)
	r.bus.Write32(uint32(h), v)
}

// SetBits replaces the bits of h selected by mask with those of value.
// This is a plain read-modify-write and is not atomic: a concurrent access to
// the same register between the read and the write is lost.
func (r *Regs) SetBits(h Handle, value, mask uint32) {
	v := r.Read(h)
	v = (v &^ mask) | (value & mask)
	r.Write(h, v)
}
