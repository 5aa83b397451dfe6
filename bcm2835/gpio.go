package bcm2835

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Function is the 3-bit function select value of a pin.
type Function uint8

const (
	Input  Function = 0
	Output Function = 1
	Alt0   Function = 4
	Alt1   Function = 5
	Alt2   Function = 6
	Alt3   Function = 7
	Alt4   Function = 3
	Alt5   Function = 2
)

var functionNames = [8]string{"in", "out", "alt5", "alt4", "alt0", "alt1", "alt2", "alt3"}

func (f Function) String() string {
	if f <= fselMask {
		return functionNames[f]
	}
	return fmt.Sprintf("Function(%d)", uint8(f))
}

// Detect selects one of the event detect registers.
type Detect uint8

const (
	DetectRising Detect = iota
	DetectFalling
	DetectHigh
	DetectLow
	DetectAsyncRising
	DetectAsyncFalling
)

var detectRegs = [...]uint32{
	DetectRising:       gpren0,
	DetectFalling:      gpfen0,
	DetectHigh:         gphen0,
	DetectLow:          gplen0,
	DetectAsyncRising:  gparen0,
	DetectAsyncFalling: gpafen0,
}

var detectNames = [...]string{"rising", "falling", "high", "low", "async-rising", "async-falling"}

func (e Detect) String() string {
	if int(e) < len(detectNames) {
		return detectNames[e]
	}
	return fmt.Sprintf("Detect(%d)", uint8(e))
}

// pinWord returns the byte offset of the 32-pin bank register holding pin,
// relative to the first bank register at reg0, and the pin's bit.
func pinWord(reg0 uint32, pin uint8) (uint32, uint32) {
	return reg0 + uint32(pin/32)*4, 1 << (pin % 32)
}

func (d *Driver) gpio(pin uint8) error {
	if _, err := d.need(BlockGPIO); err != nil {
		return err
	}
	return d.checkPin(pin)
}

// SelectFunction sets the function of pin without touching the other nine
// pins sharing its select register.
func (d *Driver) SelectFunction(pin uint8, f Function) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	if f > fselMask {
		return fmt.Errorf("pin %d function %d: %w", pin, f, ErrInvalidArg)
	}
	reg := d.base[BlockGPIO].Reg(gpfsel0 + uint32(pin/10)*4)
	shift := uint32(pin%10) * 3
	d.regs.SetBits(reg, uint32(f)<<shift, fselMask<<shift)
	return nil
}

// FunctionOf reads back the function of pin.
func (d *Driver) FunctionOf(pin uint8) (Function, error) {
	if err := d.gpio(pin); err != nil {
		return 0, err
	}
	reg := d.base[BlockGPIO].Reg(gpfsel0 + uint32(pin/10)*4)
	shift := uint32(pin%10) * 3
	return Function(d.regs.Read(reg)>>shift) & fselMask, nil
}

// Set drives pin high. Pin must be an output.
func (d *Driver) Set(pin uint8) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	off, bit := pinWord(gpset0, pin)
	d.regs.Write(d.base[BlockGPIO].Reg(off), bit)
	return nil
}

// Clear drives pin low.
func (d *Driver) Clear(pin uint8) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	off, bit := pinWord(gpclr0, pin)
	d.regs.Write(d.base[BlockGPIO].Reg(off), bit)
	return nil
}

// SetMulti drives every pin in mask (pins 0-31) high.
func (d *Driver) SetMulti(mask uint32) error {
	if _, err := d.need(BlockGPIO); err != nil {
		return err
	}
	d.regs.Write(d.base[BlockGPIO].Reg(gpset0), mask)
	return nil
}

// ClearMulti drives every pin in mask (pins 0-31) low.
func (d *Driver) ClearMulti(mask uint32) error {
	if _, err := d.need(BlockGPIO); err != nil {
		return err
	}
	d.regs.Write(d.base[BlockGPIO].Reg(gpclr0), mask)
	return nil
}

// Write drives pin to level.
func (d *Driver) Write(pin uint8, l gpio.Level) error {
	if l {
		return d.Set(pin)
	}
	return d.Clear(pin)
}

// WriteMulti drives every pin in mask to level.
func (d *Driver) WriteMulti(mask uint32, l gpio.Level) error {
	if l {
		return d.SetMulti(mask)
	}
	return d.ClearMulti(mask)
}

// WriteMask drives the pins in mask to the matching bits of value. Pins
// outside mask are not touched.
func (d *Driver) WriteMask(value, mask uint32) error {
	if err := d.SetMulti(value & mask); err != nil {
		return err
	}
	return d.ClearMulti(^value & mask)
}

// Level reads the current level of pin.
func (d *Driver) Level(pin uint8) (gpio.Level, error) {
	if err := d.gpio(pin); err != nil {
		return gpio.Low, err
	}
	off, bit := pinWord(gplev0, pin)
	return d.regs.Read(d.base[BlockGPIO].Reg(off))&bit != 0, nil
}

// EnableDetect turns on event detection of kind e for pin.
func (d *Driver) EnableDetect(pin uint8, e Detect) error {
	return d.detect(pin, e, true)
}

// DisableDetect turns off event detection of kind e for pin.
func (d *Driver) DisableDetect(pin uint8, e Detect) error {
	return d.detect(pin, e, false)
}

func (d *Driver) detect(pin uint8, e Detect, on bool) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	if int(e) >= len(detectRegs) {
		return fmt.Errorf("detect %d: %w", e, ErrInvalidArg)
	}
	off, bit := pinWord(detectRegs[e], pin)
	value := uint32(0)
	if on {
		value = bit
	}
	d.regs.SetBits(d.base[BlockGPIO].Reg(off), value, bit)
	return nil
}

// EventDetected reports whether an enabled event has latched for pin.
func (d *Driver) EventDetected(pin uint8) (bool, error) {
	if err := d.gpio(pin); err != nil {
		return false, err
	}
	off, bit := pinWord(gpeds0, pin)
	return d.regs.Read(d.base[BlockGPIO].Reg(off))&bit != 0, nil
}

// EventsDetected returns the latched events of pins 0-31 restricted to mask.
func (d *Driver) EventsDetected(mask uint32) (uint32, error) {
	if _, err := d.need(BlockGPIO); err != nil {
		return 0, err
	}
	return d.regs.Read(d.base[BlockGPIO].Reg(gpeds0)) & mask, nil
}

// ClearEvent acknowledges a latched event on pin.
func (d *Driver) ClearEvent(pin uint8) error {
	if err := d.gpio(pin); err != nil {
		return err
	}
	off, bit := pinWord(gpeds0, pin)
	d.regs.Write(d.base[BlockGPIO].Reg(off), bit)
	return nil
}

// ClearEvents acknowledges the latched events of every pin in mask.
func (d *Driver) ClearEvents(mask uint32) error {
	if _, err := d.need(BlockGPIO); err != nil {
		return err
	}
	d.regs.Write(d.base[BlockGPIO].Reg(gpeds0), mask)
	return nil
}
