package bcm2835

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"

	"bcmperiph/mmio"
)

// Mode is the SPI clock polarity and phase.
type Mode uint8

const (
	Mode0 Mode = 0 // CPOL=0 CPHA=0
	Mode1 Mode = 1 // CPOL=0 CPHA=1
	Mode2 Mode = 2 // CPOL=1 CPHA=0
	Mode3 Mode = 3 // CPOL=1 CPHA=1
)

// CS selects the chip select line driven by the primary bus.
type CS uint8

const (
	CS0    CS = 0
	CS1    CS = 1
	CS2    CS = 2 // both CS0 and CS1
	CSNone CS = 3 // drive no line, e.g. for a GPIO chip select
)

// Common clock dividers of the primary bus. The core clock is 250 MHz.
const (
	Divider65536 uint16 = 0
	Divider32768 uint16 = 32768
	Divider16384 uint16 = 16384
	Divider8192  uint16 = 8192
	Divider4096  uint16 = 4096
	Divider2048  uint16 = 2048
	Divider1024  uint16 = 1024
	Divider512   uint16 = 512
	Divider256   uint16 = 256
	Divider128   uint16 = 128
	Divider64    uint16 = 64
	Divider32    uint16 = 32
	Divider16    uint16 = 16
	Divider8     uint16 = 8
	Divider4     uint16 = 4
	Divider2     uint16 = 2
)

var spi0Pins = [...]uint8{7, 8, 9, 10, 11}

// SPI is the primary SPI controller (SPI0). It shifts one byte per FIFO
// entry and is driven entirely by polling its CS register.
type SPI struct {
	d *Driver
}

func (s *SPI) base() (mmio.Handle, error) {
	return s.d.need(BlockSPI0)
}

// Begin routes pins 7 to 11 to the controller and clears its state.
func (s *SPI) Begin() error {
	base, err := s.base()
	if err != nil {
		return err
	}
	for _, pin := range spi0Pins {
		if err := s.d.SelectFunction(pin, Alt0); err != nil {
			return fmt.Errorf("spi begin: %w", err)
		}
	}
	s.d.regs.Write(base.Reg(spi0CS), 0)
	s.d.regs.WriteNB(base.Reg(spi0CS), csClear)
	s.d.log.Debug("spi0 begin")
	return nil
}

// End returns the bus pins to inputs.
func (s *SPI) End() error {
	for _, pin := range spi0Pins {
		if err := s.d.SelectFunction(pin, Input); err != nil {
			return fmt.Errorf("spi end: %w", err)
		}
	}
	return nil
}

// SetClockDivider sets the raw clock divider. Only even values are honoured
// by the hardware; 0 divides by 65536.
func (s *SPI) SetClockDivider(div uint16) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	s.d.regs.Write(base.Reg(spi0CLK), uint32(div))
	return nil
}

// SpeedDivider returns the even divider closest to CoreClockHz/hz from
// below. Speeds below the slowest the divider can reach yield 0, dividing by
// 65536; speeds above half the core clock yield 2, where the plain
// CoreClockHz/hz&^1 would give 0 and run at the slowest rate instead.
func SpeedDivider(hz uint32) (uint16, error) {
	if hz == 0 {
		return 0, fmt.Errorf("spi speed 0: %w", ErrInvalidSpeed)
	}
	div := CoreClockHz / hz
	switch {
	case div > 0xFFFF:
		return Divider65536, nil
	case div < 2:
		return Divider2, nil
	}
	return uint16(div) &^ 1, nil
}

// SetSpeedHz sets the clock divider from a target frequency.
func (s *SPI) SetSpeedHz(hz uint32) error {
	div, err := SpeedDivider(hz)
	if err != nil {
		return err
	}
	s.d.log.Debug("spi0 speed", slog.Uint64("hz", uint64(hz)), slog.Uint64("div", uint64(div)))
	return s.SetClockDivider(div)
}

// SetDataMode sets clock polarity and phase.
func (s *SPI) SetDataMode(m Mode) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	s.d.regs.SetBits(base.Reg(spi0CS), uint32(m&3)<<2, csCPOL|csCPHA)
	return nil
}

// ChipSelect selects the line asserted during transfers.
func (s *SPI) ChipSelect(c CS) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	s.d.regs.SetBits(base.Reg(spi0CS), uint32(c&3), csCS)
	return nil
}

// SetChipSelectPolarity sets the active level of line c.
func (s *SPI) SetChipSelectPolarity(c CS, active gpio.Level) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	if c > CS2 {
		return fmt.Errorf("spi cs %d polarity: %w", c, ErrInvalidArg)
	}
	shift := cspolShift + uint32(c)
	v := uint32(0)
	if active {
		v = 1 << shift
	}
	s.d.regs.SetBits(base.Reg(spi0CS), v, 1<<shift)
	return nil
}

// Transfer shifts out one byte and returns the byte shifted in.
func (s *SPI) Transfer(b byte) (byte, error) {
	base, err := s.base()
	if err != nil {
		return 0, err
	}
	r := s.d.regs
	cs, fifo := base.Reg(spi0CS), base.Reg(spi0FIFO)

	r.SetBits(cs, csClear, csClear)
	r.SetBits(cs, csTA, csTA)
	for r.Read(cs)&csTXD == 0 {
	}
	r.WriteNB(fifo, uint32(s.d.correct(b)))
	for r.ReadNB(cs)&csDone == 0 {
	}
	ret := s.d.correct(byte(r.ReadNB(fifo)))
	r.SetBits(cs, 0, csTA)
	return ret, nil
}

// TransferN shifts out tx and stores the bytes shifted in into rx. rx may be
// nil to discard them, otherwise it must be at least len(tx) long. tx and rx
// may be the same slice.
func (s *SPI) TransferN(tx, rx []byte) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	if rx != nil && len(rx) < len(tx) {
		return fmt.Errorf("spi transfer %d bytes into %d: %w", len(tx), len(rx), ErrShortBuffer)
	}
	r := s.d.regs
	cs, fifo := base.Reg(spi0CS), base.Reg(spi0FIFO)

	r.SetBits(cs, csClear, csClear)
	r.SetBits(cs, csTA, csTA)

	n := len(tx)
	var txCnt, rxCnt int
	for txCnt < n || rxCnt < n {
		for r.Read(cs)&csTXD != 0 && txCnt < n {
			r.WriteNB(fifo, uint32(s.d.correct(tx[txCnt])))
			txCnt++
		}
		for r.Read(cs)&csRXD != 0 && rxCnt < n {
			v := s.d.correct(byte(r.ReadNB(fifo)))
			if rx != nil {
				rx[rxCnt] = v
			}
			rxCnt++
		}
	}
	for r.ReadNB(cs)&csDone == 0 {
	}
	r.SetBits(cs, 0, csTA)
	return nil
}

// TransferInPlace replaces each byte of buf with the byte shifted in for it.
func (s *SPI) TransferInPlace(buf []byte) error {
	return s.TransferN(buf, buf)
}

// WriteN shifts out tx and discards what comes back. The receive FIFO is
// drained as it fills so the transfer never stalls.
func (s *SPI) WriteN(tx []byte) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	r := s.d.regs
	cs, fifo := base.Reg(spi0CS), base.Reg(spi0FIFO)

	r.SetBits(cs, csClear, csClear)
	r.SetBits(cs, csTA, csTA)
	for _, b := range tx {
		for r.Read(cs)&csTXD == 0 {
		}
		r.WriteNB(fifo, uint32(s.d.correct(b)))
		for r.Read(cs)&csRXD != 0 {
			r.ReadNB(fifo)
		}
	}
	for r.Read(cs)&csDone == 0 {
		for r.Read(cs)&csRXD != 0 {
			r.ReadNB(fifo)
		}
	}
	r.SetBits(cs, 0, csTA)
	return nil
}

// Write16 shifts out v, high byte first, ignoring the bit order setting.
func (s *SPI) Write16(v uint16) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	r := s.d.regs
	cs, fifo := base.Reg(spi0CS), base.Reg(spi0FIFO)

	r.SetBits(cs, csClear, csClear)
	r.SetBits(cs, csTA, csTA)
	for r.Read(cs)&csTXD == 0 {
	}
	r.WriteNB(fifo, uint32(v>>8))
	r.WriteNB(fifo, uint32(v&0xFF))
	for r.ReadNB(cs)&csDone == 0 {
	}
	r.SetBits(cs, 0, csTA)
	return nil
}
