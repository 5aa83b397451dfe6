// Package loopback models a BCM2835 peripheral block in memory with both SPI
// buses wired MISO to MOSI. It lets the daemon and its clients run without
// hardware.
package loopback

import (
	"sync"
	"time"

	"bcmperiph/bcm2835"
	"bcmperiph/mmio"
)

// Register byte offsets inside their blocks.
const (
	gpset0 = 0x1c
	gpset1 = 0x20
	gpclr0 = 0x28
	gpclr1 = 0x2c
	gplev0 = 0x34
	gplev1 = 0x38

	stCLO = 0x04
	stCHI = 0x08

	spiCS   = 0x00
	spiFIFO = 0x04

	auxCNTL0  = 0x00
	auxSTAT   = 0x08
	auxIO     = 0x20
	auxTXHold = 0x30
)

const (
	csClear = 0x30
	csTA    = 0x80
	csDone  = 0x10000
	csRXD   = 0x20000
	csTXD   = 0x40000
	csRXR   = 0x80000
	csRXF   = 0x100000

	cntl0ShiftLen  = 0x3f
	cntl0ClearFIFO = 0x200
	cntl0VarWidth  = 0x4000

	statBusy    = 0x40
	statRXEmpty = 0x80
	statTXEmpty = 0x200
	statTXFull  = 0x400

	spiFIFODepth = 16
	auxFIFODepth = 4
)

type auxEntry struct {
	word  uint32
	cntl0 uint32
}

// Device is the simulated peripheral block. Use Bus with
// bcm2835.Driver.Init and bcm2835.FullLayout.
type Device struct {
	bus   *mmio.MemBus
	start time.Time

	mu    sync.Mutex
	slave func(byte) byte
	spiRX []byte
	auxTX []auxEntry
	auxRX []uint32
}

// New returns a Device whose slaves echo every byte.
func New() *Device {
	d := &Device{
		bus:   mmio.NewMemBus(mmio.PeriphSize / 4),
		start: time.Now(),
		slave: func(b byte) byte { return b },
	}
	d.bus.OnRead = d.read
	d.bus.OnWrite = d.write
	return d
}

// Bus returns the register bus of the device.
func (d *Device) Bus() *mmio.MemBus { return d.bus }

// SetSlave replaces the function answering each byte shifted out on either
// bus.
func (d *Device) SetSlave(f func(byte) byte) {
	d.mu.Lock()
	d.slave = f
	d.mu.Unlock()
}

// SetLevel drives an input pin from outside.
func (d *Device) SetLevel(pin uint8, high bool) {
	reg, bit := levelReg(pin)
	v := d.bus.Peek(reg)
	if high {
		v |= bit
	} else {
		v &^= bit
	}
	d.bus.Poke(reg, v)
}

func word(b bcm2835.Block, off uint32) uint32 { return (b.Offset() + off) / 4 }

func levelReg(pin uint8) (uint32, uint32) {
	return word(bcm2835.BlockGPIO, gplev0) + uint32(pin/32), 1 << (pin % 32)
}

func (d *Device) micros() uint64 {
	return uint64(time.Since(d.start) / time.Microsecond)
}

func (d *Device) read(off uint32, stored uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch off {
	case word(bcm2835.BlockST, stCLO):
		return uint32(d.micros())
	case word(bcm2835.BlockST, stCHI):
		return uint32(d.micros() >> 32)

	case word(bcm2835.BlockSPI0, spiCS):
		v := stored
		if len(d.spiRX) < spiFIFODepth {
			v |= csTXD
		}
		if len(d.spiRX) > 0 {
			v |= csRXD
		}
		if stored&csTA != 0 {
			v |= csDone
		}
		return v
	case word(bcm2835.BlockSPI0, spiFIFO):
		if len(d.spiRX) == 0 {
			return 0
		}
		b := d.spiRX[0]
		d.spiRX = d.spiRX[1:]
		return uint32(b)

	case word(bcm2835.BlockSPI1, auxSTAT):
		var v uint32
		if len(d.auxTX) > 0 {
			d.shift()
			v |= statBusy
		}
		if len(d.auxRX) == 0 {
			v |= statRXEmpty
		}
		if len(d.auxTX) >= auxFIFODepth {
			v |= statTXFull
		}
		if len(d.auxTX) == 0 {
			v |= statTXEmpty
		}
		return v
	case word(bcm2835.BlockSPI1, auxIO):
		if len(d.auxRX) == 0 {
			return 0
		}
		w := d.auxRX[0]
		d.auxRX = d.auxRX[1:]
		return w
	}
	return stored
}

func (d *Device) write(off uint32, v uint32) (uint32, bool) {
	switch off {
	case word(bcm2835.BlockGPIO, gpset0), word(bcm2835.BlockGPIO, gpset1):
		lev := word(bcm2835.BlockGPIO, gplev0) + off - word(bcm2835.BlockGPIO, gpset0)
		d.bus.Poke(lev, d.bus.Peek(lev)|v)
		return 0, false
	case word(bcm2835.BlockGPIO, gpclr0), word(bcm2835.BlockGPIO, gpclr1):
		lev := word(bcm2835.BlockGPIO, gplev0) + off - word(bcm2835.BlockGPIO, gpclr0)
		d.bus.Poke(lev, d.bus.Peek(lev)&^v)
		return 0, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch off {
	case word(bcm2835.BlockSPI0, spiCS):
		if v&csClear != 0 {
			d.spiRX = nil
		}
		return v &^ (csClear | csTXD | csRXD | csDone | csRXR | csRXF), true
	case word(bcm2835.BlockSPI0, spiFIFO):
		if d.bus.Peek(word(bcm2835.BlockSPI0, spiCS))&csTA != 0 {
			d.spiRX = append(d.spiRX, d.slave(byte(v)))
		}
		return 0, false

	case word(bcm2835.BlockSPI1, auxCNTL0):
		if v&cntl0ClearFIFO != 0 {
			d.auxTX, d.auxRX = nil, nil
		}
		return v, true
	case word(bcm2835.BlockSPI1, auxIO), word(bcm2835.BlockSPI1, auxTXHold):
		d.auxTX = append(d.auxTX, auxEntry{word: v, cntl0: d.bus.Peek(word(bcm2835.BlockSPI1, auxCNTL0))})
		return 0, false
	}
	return v, true
}

// shift moves the oldest queued entry through the shift register. Variable
// width entries carry the bit count in bits 31..24 and data from bit 23 down;
// fixed width entries are left aligned in the whole word.
func (d *Device) shift() {
	e := d.auxTX[0]
	d.auxTX = d.auxTX[1:]

	var bits, top uint32
	if e.cntl0&cntl0VarWidth != 0 {
		bits, top = e.word>>24, 16
	} else {
		bits, top = e.cntl0&cntl0ShiftLen, 24
	}
	var rx uint32
	for i := uint32(0); i < bits/8; i++ {
		rx = rx<<8 | uint32(d.slave(byte(e.word>>(top-8*i))))
	}
	d.auxRX = append(d.auxRX, rx)
}
