package bcm2835

import (
	"testing"
	"time"

	"bcmperiph/mmio"
)

// access is one register write, addressed in bytes from the peripheral base.
type access struct {
	addr uint32
	val  uint32
}

type auxEntry struct {
	word  uint32
	cntl0 uint32
}

// sim models the parts of the peripheral block the driver polls: the system
// timer, the SPI0 FIFO and status bits and the SPI1 shift queue. The device
// on both buses is slave, an echo by default. It overlaps bcm2835/loopback,
// which imports this package and so cannot serve its internal tests; sim
// also records register writes and steps the timer by hand.
type sim struct {
	bus *mmio.MemBus
	d   *Driver

	now     uint64
	tick    uint64
	stReads []uint32
	sleeps  []time.Duration

	slave  func(byte) byte
	spiRX  []byte
	auxTX  []auxEntry
	auxRX  []uint32
	writes []access
}

func newSim(t *testing.T, opts ...Option) *sim {
	return newSimLayout(t, FullLayout, opts...)
}

func newSimLayout(t *testing.T, layout Layout, opts ...Option) *sim {
	t.Helper()
	s := &sim{
		bus:   mmio.NewMemBus(0),
		now:   1000000,
		tick:  1,
		slave: func(b byte) byte { return b },
	}
	s.bus.OnRead = s.read
	s.bus.OnWrite = s.write
	s.d = New(append([]Option{WithSleep(s.sleep)}, opts...)...)
	if err := s.d.Init(s.bus, layout); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

// at translates a peripheral byte address into the bus word offset.
func (s *sim) at(addr uint32) uint32 { return addr / 4 }

func (s *sim) peek(addr uint32) uint32    { return s.bus.Peek(s.at(addr)) }
func (s *sim) poke(addr uint32, v uint32) { s.bus.Poke(s.at(addr), v) }

func (s *sim) sleep(d time.Duration) {
	s.sleeps = append(s.sleeps, d)
	s.now += uint64(d / time.Microsecond)
}

// writesTo returns the recorded writes to the given addresses, in order.
func (s *sim) writesTo(addrs ...uint32) []access {
	var out []access
	for _, w := range s.writes {
		for _, a := range addrs {
			if w.addr == a {
				out = append(out, w)
			}
		}
	}
	return out
}

func (s *sim) read(off uint32, stored uint32) uint32 {
	switch off * 4 {
	case offST + stCLO:
		if len(s.stReads) > 0 {
			return s.popST()
		}
		s.now += s.tick
		return uint32(s.now)
	case offST + stCHI:
		if len(s.stReads) > 0 {
			return s.popST()
		}
		return uint32(s.now >> 32)

	case offSPI0 + spi0CS:
		v := stored
		if len(s.spiRX) < 16 {
			v |= csTXD
		}
		if len(s.spiRX) > 0 {
			v |= csRXD
		}
		if stored&csTA != 0 {
			v |= csDone
		}
		return v
	case offSPI0 + spi0FIFO:
		if len(s.spiRX) == 0 {
			return 0
		}
		b := s.spiRX[0]
		s.spiRX = s.spiRX[1:]
		return uint32(b)

	case offSPI1 + auxSPISTAT:
		var v uint32
		if len(s.auxTX) > 0 {
			s.shiftAux()
			v |= statBusy
		}
		if len(s.auxRX) == 0 {
			v |= statRXEmpty
		}
		if len(s.auxTX) >= 4 {
			v |= statTXFull
		}
		if len(s.auxTX) == 0 {
			v |= statTXEmpty
		}
		return v
	case offSPI1 + auxSPIIO:
		if len(s.auxRX) == 0 {
			return 0
		}
		w := s.auxRX[0]
		s.auxRX = s.auxRX[1:]
		return w
	}
	return stored
}

func (s *sim) popST() uint32 {
	v := s.stReads[0]
	s.stReads = s.stReads[1:]
	return v
}

func (s *sim) write(off uint32, v uint32) (uint32, bool) {
	addr := off * 4
	s.writes = append(s.writes, access{addr, v})
	switch addr {
	case offSPI0 + spi0CS:
		if v&csClear != 0 {
			s.spiRX = nil
		}
		return v &^ (csClear | csTXD | csRXD | csDone | csRXR | csRXF), true
	case offSPI0 + spi0FIFO:
		if s.peek(offSPI0+spi0CS)&csTA != 0 {
			s.spiRX = append(s.spiRX, s.slave(byte(v)))
		}
		return 0, false

	case offSPI1 + auxSPICNTL0:
		if v&cntl0ClearFIFO != 0 {
			s.auxTX, s.auxRX = nil, nil
		}
		return v, true
	case offSPI1 + auxSPIIO, offSPI1 + auxSPITXHold:
		s.auxTX = append(s.auxTX, auxEntry{word: v, cntl0: s.peek(offSPI1 + auxSPICNTL0)})
		return 0, false
	}
	return v, true
}

// shiftAux moves the oldest queued entry through the shift register.
func (s *sim) shiftAux() {
	e := s.auxTX[0]
	s.auxTX = s.auxTX[1:]

	var bits, top uint32
	if e.cntl0&cntl0VarWidth != 0 {
		bits, top = e.word>>24, 16
	} else {
		bits, top = e.cntl0&cntl0ShiftLen, 24
	}
	var rx uint32
	for i := uint32(0); i < bits/8; i++ {
		rx = rx<<8 | uint32(s.slave(byte(e.word>>(top-8*i))))
	}
	s.auxRX = append(s.auxRX, rx)
}

// recorder returns a slave that logs every byte it receives and answers
// with reply.
func recorder(seen *[]byte, reply func(byte) byte) func(byte) byte {
	return func(b byte) byte {
		*seen = append(*seen, b)
		return reply(b)
	}
}
