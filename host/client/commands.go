package client

import (
	"fmt"

	"bcmperiph/bcm2835"
)

// query calls name and checks that the daemon answered with want.
func (c *Client) query(want, name string, args ...any) (Response, error) {
	resp, err := c.Call(name, args...)
	if err != nil {
		return resp, err
	}
	if resp.Name != want {
		return resp, fmt.Errorf("%s: expected %s, got %s", name, want, resp.Name)
	}
	return resp, nil
}

// Transfer clocks data out on the primary bus and returns what came back.
func (c *Client) Transfer(data []byte) ([]byte, error) {
	resp, err := c.query("spi_transfer_response", "spi_transfer", data)
	return resp.Bytes("data"), err
}

// Write clocks out at most service.MaxWrite bytes. The bytes clocked in are
// kept by the daemon for Read.
func (c *Client) Write(data []byte) error {
	_, err := c.Call("spi_write", data)
	return err
}

// Read returns up to n bytes kept by the last Write.
func (c *Client) Read(n int) ([]byte, error) {
	resp, err := c.query("spi_read_response", "spi_read", uint32(n))
	return resp.Bytes("data"), err
}

// SetSpeed sets the primary bus clock.
func (c *Client) SetSpeed(hz uint32) error {
	_, err := c.Call("spi_set_speed", hz)
	return err
}

// SetDivider sets the primary bus clock divider directly.
func (c *Client) SetDivider(div uint16) error {
	_, err := c.Call("spi_set_divider", div)
	return err
}

// SetMode sets the primary bus clock polarity and phase.
func (c *Client) SetMode(m bcm2835.Mode) error {
	_, err := c.Call("spi_set_mode", uint8(m))
	return err
}

// ChipSelect selects the chip select line and its active level.
func (c *Client) ChipSelect(cs bcm2835.CS, activeHigh bool) error {
	_, err := c.Call("spi_chip_select", uint8(cs), activeHigh)
	return err
}

// SetBitOrder sets the bit order of both buses.
func (c *Client) SetBitOrder(o bcm2835.BitOrder) error {
	_, err := c.Call("spi_set_bit_order", uint8(o))
	return err
}

// AuxTransfer clocks data out on the auxiliary bus.
func (c *Client) AuxTransfer(data []byte) ([]byte, error) {
	resp, err := c.query("aux_spi_transfer_response", "aux_spi_transfer", data)
	return resp.Bytes("data"), err
}

// AuxSetSpeed sets the auxiliary bus clock.
func (c *Client) AuxSetSpeed(hz uint32) error {
	_, err := c.Call("aux_spi_set_speed", hz)
	return err
}

// SelectFunction sets the function of a pin.
func (c *Client) SelectFunction(pin uint8, f bcm2835.Function) error {
	_, err := c.Call("gpio_fsel", pin, uint8(f))
	return err
}

// WritePin drives an output pin.
func (c *Client) WritePin(pin uint8, high bool) error {
	_, err := c.Call("gpio_write", pin, high)
	return err
}

// ReadPin returns the level of a pin.
func (c *Client) ReadPin(pin uint8) (bool, error) {
	resp, err := c.query("gpio_state", "gpio_read", pin)
	return resp.Uint("value") != 0, err
}

// SetPull sets the pull resistor of a pin.
func (c *Client) SetPull(pin uint8, p bcm2835.Pull) error {
	_, err := c.Call("gpio_set_pull", pin, uint8(p))
	return err
}

// GetPull reads back the pull resistor of a pin. Legacy hardware answers
// with a status error.
func (c *Client) GetPull(pin uint8) (bcm2835.Pull, error) {
	resp, err := c.query("gpio_pull", "gpio_get_pull", pin)
	if err != nil {
		return bcm2835.PullError, err
	}
	return bcm2835.Pull(resp.Uint("pull")), nil
}

// Clock returns the system timer of the daemon's host in microseconds.
func (c *Client) Clock() (uint64, error) {
	resp, err := c.query("clock", "get_clock")
	return uint64(resp.Uint("high"))<<32 | uint64(resp.Uint("low")), err
}

// Delay makes the daemon wait us microseconds.
func (c *Client) Delay(us uint32) error {
	_, err := c.Call("delay_us", us)
	return err
}
