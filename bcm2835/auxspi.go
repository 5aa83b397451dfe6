package bcm2835

import (
	"fmt"
	"log/slog"

	"bcmperiph/mmio"
)

var auxSPIPins = [...]uint8{16, 19, 20, 21}

const auxSPIDefaultHz = 1000000

// CalcClockDivider returns the auxiliary SPI divider for hz. The rate is
// clamped to what the divider can express and rounded down.
func CalcClockDivider(hz uint32) uint16 {
	if hz < AuxSPIClockMin {
		hz = AuxSPIClockMin
	} else if hz > AuxSPIClockMax {
		hz = AuxSPIClockMax
	}
	div := (CoreClockHz+2*hz-1)/(2*hz) - 1
	if div > cntl0SpeedMax {
		return cntl0SpeedMax
	}
	return uint16(div)
}

// AuxSPI is the auxiliary SPI controller (SPI1). Its FIFO entries carry up to
// three bytes each with an explicit bit count, so transfers are packed into
// 24-bit groups.
type AuxSPI struct {
	d *Driver
}

func (a *AuxSPI) base() (mmio.Handle, error) {
	if _, err := a.d.need(BlockAux); err != nil {
		return mmio.Unmapped, err
	}
	return a.d.need(BlockSPI1)
}

// Begin routes pins 16, 19, 20 and 21 to the controller, selects 1 MHz,
// enables the peripheral and clears its FIFOs.
func (a *AuxSPI) Begin() error {
	base, err := a.base()
	if err != nil {
		return err
	}
	for _, pin := range auxSPIPins {
		if err := a.d.SelectFunction(pin, Alt4); err != nil {
			return fmt.Errorf("aux spi begin: %w", err)
		}
	}
	a.d.auxDivider = CalcClockDivider(auxSPIDefaultHz)

	r := a.d.regs
	r.SetBits(a.d.base[BlockAux].Reg(auxEnable), auxEnableSPI1, auxEnableSPI1)
	r.Write(base.Reg(auxSPICNTL1), 0)
	r.Write(base.Reg(auxSPICNTL0), cntl0ClearFIFO)
	a.d.log.Debug("aux spi begin", slog.Uint64("div", uint64(a.d.auxDivider)))
	return nil
}

// End disables the controller and returns its pins to inputs.
func (a *AuxSPI) End() error {
	if _, err := a.base(); err != nil {
		return err
	}
	a.d.regs.SetBits(a.d.base[BlockAux].Reg(auxEnable), 0, auxEnableSPI1)
	for _, pin := range auxSPIPins {
		if err := a.d.SelectFunction(pin, Input); err != nil {
			return fmt.Errorf("aux spi end: %w", err)
		}
	}
	return nil
}

// SetClockDivider sets the divider folded into every following transfer.
func (a *AuxSPI) SetClockDivider(div uint16) {
	a.d.auxDivider = div
}

// ClockDivider returns the cached divider.
func (a *AuxSPI) ClockDivider() uint16 { return a.d.auxDivider }

// SetSpeedHz sets the divider from a target frequency.
func (a *AuxSPI) SetSpeedHz(hz uint32) {
	a.d.auxDivider = CalcClockDivider(hz)
}

func (a *AuxSPI) speed() uint32 {
	return uint32(a.d.auxDivider) << cntl0SpeedShift
}

// reset drops CS and empties both FIFOs.
func (a *AuxSPI) reset(base mmio.Handle) {
	a.d.regs.Write(base.Reg(auxSPICNTL1), 0)
	a.d.regs.Write(base.Reg(auxSPICNTL0), cntl0ClearFIFO)
}

// Write16 shifts out v as a single 16 bit word.
func (a *AuxSPI) Write16(v uint16) error {
	base, err := a.base()
	if err != nil {
		return err
	}
	r := a.d.regs
	cntl0 := a.speed() | cntl0CS2N | cntl0Enable | cntl0MSBFOut | 16

	r.Write(base.Reg(auxSPICNTL0), cntl0)
	r.Write(base.Reg(auxSPICNTL1), cntl1MSBFIn)
	for r.Read(base.Reg(auxSPISTAT))&statTXFull != 0 {
	}
	r.Write(base.Reg(auxSPIIO), uint32(v)<<16)
	return nil
}

// pack loads up to three bytes of tx into a variable width FIFO entry: data
// left aligned in bits 23..0, bit count in bits 31..24.
func (a *AuxSPI) pack(tx []byte) (word uint32, n int) {
	n = min(len(tx), 3)
	for i := 0; i < n; i++ {
		word |= uint32(a.d.correct(tx[i])) << (8 * (2 - i))
	}
	word |= uint32(n*8) << 24
	return word, n
}

// unpack stores the n bytes of a received entry, which are right aligned.
func (a *AuxSPI) unpack(word uint32, rx []byte, n int) {
	for i := 0; i < n; i++ {
		b := a.d.correct(byte(word >> (8 * (n - 1 - i))))
		if rx != nil {
			rx[i] = b
		}
	}
}

// WriteN shifts out tx and discards what comes back.
func (a *AuxSPI) WriteN(tx []byte) error {
	base, err := a.base()
	if err != nil {
		return err
	}
	r := a.d.regs
	stat, io, hold := base.Reg(auxSPISTAT), base.Reg(auxSPIIO), base.Reg(auxSPITXHold)

	r.Write(base.Reg(auxSPICNTL0), a.speed()|cntl0CS2N|cntl0Enable|cntl0MSBFOut|cntl0VarWidth)
	r.Write(base.Reg(auxSPICNTL1), cntl1MSBFIn)

	for len(tx) > 0 {
		for r.Read(stat)&statTXFull != 0 {
		}
		word, n := a.pack(tx)
		tx = tx[n:]
		if len(tx) > 0 {
			r.Write(hold, word)
		} else {
			r.Write(io, word)
		}
		for r.Read(stat)&statBusy != 0 {
		}
		r.Read(io)
	}
	return nil
}

// TransferN shifts out tx and stores what comes back in rx. rx may be nil to
// discard it, otherwise it must be at least len(tx) long. Entries go through
// the hold register so CS stays asserted; the last one goes through IO to
// release it.
func (a *AuxSPI) TransferN(tx, rx []byte) error {
	base, err := a.base()
	if err != nil {
		return err
	}
	if rx != nil && len(rx) < len(tx) {
		return fmt.Errorf("aux spi transfer %d bytes into %d: %w", len(tx), len(rx), ErrShortBuffer)
	}
	r := a.d.regs
	stat, io, hold := base.Reg(auxSPISTAT), base.Reg(auxSPIIO), base.Reg(auxSPITXHold)

	r.Write(base.Reg(auxSPICNTL0), a.speed()|cntl0CS2N|cntl0Enable|cntl0MSBFOut|cntl0VarWidth)
	r.Write(base.Reg(auxSPICNTL1), cntl1MSBFIn)

	txLen, rxLen := len(tx), len(tx)
	var txPos, rxPos int
	receive := func() {
		n := min(rxLen, 3)
		var dst []byte
		if rx != nil {
			dst = rx[rxPos : rxPos+n]
		}
		a.unpack(r.Read(io), dst, n)
		rxPos += n
		rxLen -= n
	}
	for txLen > 0 || rxLen > 0 {
		for r.Read(stat)&statTXFull == 0 && txLen > 0 {
			word, n := a.pack(tx[txPos:])
			txPos += n
			txLen -= n
			if txLen > 0 {
				r.Write(hold, word)
			} else {
				r.Write(io, word)
			}
		}
		for r.Read(stat)&statRXEmpty == 0 && rxLen > 0 {
			receive()
		}
		for r.Read(stat)&statBusy == 0 && rxLen > 0 {
			receive()
		}
	}
	return nil
}

// TransferInPlace replaces each byte of buf with the byte shifted in for it.
func (a *AuxSPI) TransferInPlace(buf []byte) error {
	return a.TransferN(buf, buf)
}

// Transfer shifts one byte in fixed width mode and resets the controller
// afterwards.
func (a *AuxSPI) Transfer(b byte) (byte, error) {
	base, err := a.base()
	if err != nil {
		return 0, err
	}
	r := a.d.regs
	io := base.Reg(auxSPIIO)

	r.Write(base.Reg(auxSPICNTL1), cntl1MSBFIn)
	r.Write(base.Reg(auxSPICNTL0), a.speed()|cntl0CS2N|cntl0Enable|cntl0MSBFOut|cntl0CPHAIn|8)
	r.Write(io, uint32(a.d.correct(b))<<24)
	for r.Read(base.Reg(auxSPISTAT))&statBusy != 0 {
	}
	ret := a.d.correct(byte(r.Read(io) & 0xFF))
	a.reset(base)
	return ret, nil
}
