package bcm2835

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Pull is a pull resistor setting. The numeric values are the 2-bit field
// encoding of the BCM2711 pull registers.
type Pull uint8

const (
	PullOff   Pull = 0
	PullUp    Pull = 1
	PullDown  Pull = 2
	PullError Pull = 3
)

func (p Pull) String() string {
	switch p {
	case PullOff:
		return "off"
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	}
	return "error"
}

// Valid reports whether p can be written to hardware.
func (p Pull) Valid() bool { return p <= PullDown }

// legacy returns the GPPUD control value for p.
func (p Pull) legacy() uint32 {
	switch p {
	case PullDown:
		return 1
	case PullUp:
		return 2
	}
	return 0
}

// PullFrom converts a periph pull value. gpio.PullNoChange has no hardware
// equivalent and maps to PullError.
func PullFrom(p gpio.Pull) Pull {
	switch p {
	case gpio.Float:
		return PullOff
	case gpio.PullUp:
		return PullUp
	case gpio.PullDown:
		return PullDown
	}
	return PullError
}

// Periph converts p to its periph equivalent.
func (p Pull) Periph() gpio.Pull {
	switch p {
	case PullOff:
		return gpio.Float
	case PullUp:
		return gpio.PullUp
	case PullDown:
		return gpio.PullDown
	}
	return gpio.PullNoChange
}

// PullVariant selects how pull resistors are programmed.
type PullVariant uint8

const (
	// PullLegacy is the GPPUD/GPPUDCLK clocked sequence of BCM2835-BCM2837.
	PullLegacy PullVariant = iota
	// PullModern is the direct per-pin field of BCM2711.
	PullModern
)

func (v PullVariant) String() string {
	if v == PullModern {
		return "modern"
	}
	return "legacy"
}

// SetPull sets the pull resistor of pin.
func (d *Driver) SetPull(pin uint8, p Pull) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("pin %d pull %d: %w", pin, p, ErrInvalidPull)
	}
	switch d.pullVariant {
	case PullModern:
		d.setPullField(pin, p)
	default:
		d.setPullClocked(pin, p)
	}
	return nil
}

// setPullClocked runs the legacy sequence. The control signal needs 150
// cycles of setup and hold around the clock pulse.
func (d *Driver) setPullClocked(pin uint8, p Pull) {
	gp := d.base[BlockGPIO]
	off, bit := pinWord(gppudclk0, pin)
	d.regs.Write(gp.Reg(gppud), p.legacy())
	d.DelayMicroseconds(pudSetupUS)
	d.regs.Write(gp.Reg(off), bit)
	d.DelayMicroseconds(pudSetupUS)
	d.regs.Write(gp.Reg(gppud), 0)
	d.regs.Write(gp.Reg(off), 0)
}

func (d *Driver) setPullField(pin uint8, p Pull) {
	reg := d.base[BlockGPIO].Reg(gppuppdn0 + uint32(pin>>4)*4)
	shift := uint32(pin&0xf) << 1
	d.regs.SetBits(reg, uint32(p)<<shift, 3<<shift)
}

// Pull reads back the pull resistor of pin. The legacy hardware has no
// readback and always yields PullError with ErrPullUnreadable.
func (d *Driver) Pull(pin uint8) (Pull, error) {
	if err := d.gpio(pin); err != nil {
		return PullError, err
	}
	if d.pullVariant != PullModern {
		return PullError, ErrPullUnreadable
	}
	reg := d.base[BlockGPIO].Reg(gppuppdn0 + uint32(pin>>4)*4)
	shift := uint32(pin&0xf) << 1
	return Pull(d.regs.Read(reg)>>shift) & 3, nil
}

// SetPullControl writes the shared pull control value used by PullClock.
// On modern hardware the value is only remembered.
func (d *Driver) SetPullControl(p Pull) error {
	if _, err := d.need(BlockGPIO); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("pull %d: %w", p, ErrInvalidPull)
	}
	if d.pullVariant == PullModern {
		d.pullCompat = p
		return nil
	}
	d.regs.Write(d.base[BlockGPIO].Reg(gppud), p.legacy())
	return nil
}

// PullClock raises or drops the pull clock of pin. On modern hardware raising
// the clock applies the value last given to SetPullControl and dropping it
// does nothing.
func (d *Driver) PullClock(pin uint8, on bool) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	if d.pullVariant == PullModern {
		if on {
			d.setPullField(pin, d.pullCompat)
		}
		return nil
	}
	off, bit := pinWord(gppudclk0, pin)
	if !on {
		bit = 0
	}
	d.regs.Write(d.base[BlockGPIO].Reg(off), bit)
	return nil
}
