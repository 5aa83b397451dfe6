package bcm2835

import (
	"log/slog"
	"time"
)

// sleepThresholdUS is the delay above which DelayMicroseconds sleeps before
// busy-waiting. The remaining sleepSlackUS are spun to absorb scheduler
// latency.
const (
	sleepThresholdUS = 450
	sleepSlackUS     = 200
)

// ReadCounter returns the free running 1 MHz system timer. It returns 0 when
// the timer is not mapped; 0 is never a valid reading.
func (d *Driver) ReadCounter() uint64 {
	st := d.base[BlockST]
	if !st.Mapped() {
		return 0
	}
	hi := d.regs.Read(st.Reg(stCHI))
	lo := d.regs.Read(st.Reg(stCLO))
	hi2 := d.regs.Read(st.Reg(stCHI))
	if hi == hi2 {
		return uint64(hi)<<32 | uint64(lo)
	}
	// CLO wrapped between the reads.
	lo = d.regs.Read(st.Reg(stCLO))
	return uint64(hi2)<<32 | uint64(lo)
}

// DelayUntil busy-waits until the counter reaches offset+micros.
func (d *Driver) DelayUntil(offset, micros uint64) {
	compare := offset + micros
	for d.ReadCounter() < compare {
	}
}

// DelayMicroseconds waits at least micros microseconds. Long delays sleep
// for most of the interval and spin on the timer for the rest. Without a
// timer it falls back to sleeping.
func (d *Driver) DelayMicroseconds(micros uint64) {
	if d.debug {
		d.log.Debug("delay", slog.Uint64("us", micros))
		return
	}
	start := d.ReadCounter()
	if start == 0 {
		d.sleep(time.Duration(micros) * time.Microsecond)
		return
	}
	if micros > sleepThresholdUS {
		d.sleep(time.Duration(micros-sleepSlackUS) * time.Microsecond)
	}
	d.DelayUntil(start, micros)
}

// Delay sleeps for millis milliseconds.
func (d *Driver) Delay(millis uint32) {
	if d.debug {
		d.log.Debug("delay", slog.Uint64("ms", uint64(millis)))
		return
	}
	d.sleep(time.Duration(millis) * time.Millisecond)
}
