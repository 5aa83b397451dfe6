package bcm2835

import "fmt"

// PadGroup is a bank of GPIOs sharing drive strength, slew and hysteresis.
type PadGroup uint8

const (
	PadGroup0to27  PadGroup = 0
	PadGroup28to45 PadGroup = 1
	PadGroup46to53 PadGroup = 2
)

func (d *Driver) padReg(g PadGroup) (uint32, error) {
	if _, err := d.need(BlockPads); err != nil {
		return 0, err
	}
	if g > PadGroup46to53 {
		return 0, fmt.Errorf("pad group %d: %w", g, ErrInvalidArg)
	}
	return padsGPIO0 + uint32(g)*4, nil
}

// Pad returns the pad control bits of group g.
func (d *Driver) Pad(g PadGroup) (uint32, error) {
	off, err := d.padReg(g)
	if err != nil {
		return 0, err
	}
	return d.regs.Read(d.base[BlockPads].Reg(off)), nil
}

// SetPad writes the pad control bits of group g. The password is added here;
// the hardware drops writes without it.
func (d *Driver) SetPad(g PadGroup, bits uint32) error {
	off, err := d.padReg(g)
	if err != nil {
		return err
	}
	d.regs.Write(d.base[BlockPads].Reg(off), PadPassword|bits)
	return nil
}
