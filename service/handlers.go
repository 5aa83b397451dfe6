package service

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"

	"bcmperiph/bcm2835"
	"bcmperiph/protocol"
)

// register declares the command set. identify_response and identify must
// keep ids 0 and 1 so a client can bootstrap before it has the dictionary.
func (s *Service) register() {
	r := s.reg
	r.RegisterResponse("identify_response", "offset=%u data=%*s")
	r.Register("identify", "offset=%u count=%c", s.handleIdentify)
	r.RegisterResponse("status", "code=%i")

	r.Register("spi_transfer", "data=%*s", s.handleSPITransfer)
	r.RegisterResponse("spi_transfer_response", "data=%*s")
	r.Register("spi_write", "data=%*s", s.handleSPIWrite)
	r.Register("spi_read", "count=%u", s.handleSPIRead)
	r.RegisterResponse("spi_read_response", "data=%*s")
	r.Register("spi_set_speed", "hz=%u", s.handleSPISetSpeed)
	r.Register("spi_set_divider", "divider=%hu", s.handleSPISetDivider)
	r.Register("spi_set_mode", "mode=%c", s.handleSPISetMode)
	r.Register("spi_chip_select", "cs=%c pol=%c", s.handleSPIChipSelect)
	r.Register("spi_set_bit_order", "order=%c", s.handleSPISetBitOrder)

	r.Register("aux_spi_transfer", "data=%*s", s.handleAuxTransfer)
	r.RegisterResponse("aux_spi_transfer_response", "data=%*s")
	r.Register("aux_spi_set_speed", "hz=%u", s.handleAuxSetSpeed)

	r.Register("gpio_fsel", "pin=%c func=%c", s.handleGPIOFsel)
	r.Register("gpio_write", "pin=%c value=%c", s.handleGPIOWrite)
	r.Register("gpio_read", "pin=%c", s.handleGPIORead)
	r.RegisterResponse("gpio_state", "pin=%c value=%c")
	r.Register("gpio_set_pull", "pin=%c pull=%c", s.handleGPIOSetPull)
	r.Register("gpio_get_pull", "pin=%c", s.handleGPIOGetPull)
	r.RegisterResponse("gpio_pull", "pin=%c pull=%c")

	r.Register("get_clock", "", s.handleGetClock)
	r.RegisterResponse("clock", "high=%u low=%u")
	r.Register("delay_us", "us=%u", s.handleDelay)
}

func (s *Service) handleIdentify(r *protocol.Reader) error {
	offset, err := r.Uint()
	if err != nil {
		return err
	}
	count, err := r.Byte()
	if err != nil {
		return err
	}
	dict, err := s.Dictionary()
	if err != nil {
		return err
	}
	chunk := Chunk(dict, offset, min(int(count), identifyChunk))
	return s.send(s.respond("identify_response").Uint(offset).Bytes(chunk))
}

func (s *Service) handleSPITransfer(r *protocol.Reader) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}
	rx := make([]byte, len(data))
	if err := s.drv.SPI().TransferN(data, rx); err != nil {
		return s.status("spi_transfer", err)
	}
	s.log.Debug("spi transfer", slog.Int("len", len(data)))
	return s.send(s.respond("spi_transfer_response").Bytes(rx))
}

// handleSPIWrite transfers a short buffer and keeps what was clocked in
// until the next spi_read.
func (s *Service) handleSPIWrite(r *protocol.Reader) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}
	if len(data) > MaxWrite {
		return s.status("spi_write", fmt.Errorf("%d bytes: %w", len(data), ErrTooLong))
	}
	rx := make([]byte, len(data))
	if err := s.drv.SPI().TransferN(data, rx); err != nil {
		return s.status("spi_write", err)
	}
	s.pending = rx
	return s.status("spi_write", nil)
}

func (s *Service) handleSPIRead(r *protocol.Reader) error {
	count, err := r.Uint()
	if err != nil {
		return err
	}
	n := min(int(count), len(s.pending))
	data := s.pending[:n]
	s.pending = nil
	return s.send(s.respond("spi_read_response").Bytes(data))
}

func (s *Service) handleSPISetSpeed(r *protocol.Reader) error {
	hz, err := r.Uint()
	if err != nil {
		return err
	}
	return s.status("spi_set_speed", s.drv.SPI().SetSpeedHz(hz))
}

func (s *Service) handleSPISetDivider(r *protocol.Reader) error {
	div, err := r.Uint()
	if err != nil {
		return err
	}
	if div > 0xFFFF {
		return s.status("spi_set_divider", fmt.Errorf("divider %d: %w", div, bcm2835.ErrInvalidArg))
	}
	return s.status("spi_set_divider", s.drv.SPI().SetClockDivider(uint16(div)))
}

func (s *Service) handleSPISetMode(r *protocol.Reader) error {
	mode, err := r.Byte()
	if err != nil {
		return err
	}
	if mode > byte(bcm2835.Mode3) {
		return s.status("spi_set_mode", fmt.Errorf("mode %d: %w", mode, bcm2835.ErrInvalidArg))
	}
	return s.status("spi_set_mode", s.drv.SPI().SetDataMode(bcm2835.Mode(mode)))
}

func (s *Service) handleSPIChipSelect(r *protocol.Reader) error {
	cs, err := r.Byte()
	if err != nil {
		return err
	}
	pol, err := r.Byte()
	if err != nil {
		return err
	}
	if cs > byte(bcm2835.CSNone) {
		return s.status("spi_chip_select", fmt.Errorf("cs %d: %w", cs, bcm2835.ErrInvalidArg))
	}
	bus := s.drv.SPI()
	if err := bus.ChipSelect(bcm2835.CS(cs)); err != nil {
		return s.status("spi_chip_select", err)
	}
	if cs != byte(bcm2835.CSNone) {
		err = bus.SetChipSelectPolarity(bcm2835.CS(cs), gpio.Level(pol != 0))
	}
	return s.status("spi_chip_select", err)
}

func (s *Service) handleSPISetBitOrder(r *protocol.Reader) error {
	order, err := r.Byte()
	if err != nil {
		return err
	}
	o := bcm2835.BitOrder(order)
	if o != bcm2835.MSBFirst && o != bcm2835.LSBFirst {
		return s.status("spi_set_bit_order", fmt.Errorf("order %d: %w", order, bcm2835.ErrInvalidArg))
	}
	s.drv.SetBitOrder(o)
	return s.status("spi_set_bit_order", nil)
}

func (s *Service) handleAuxTransfer(r *protocol.Reader) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}
	rx := make([]byte, len(data))
	if err := s.drv.AuxSPI().TransferN(data, rx); err != nil {
		return s.status("aux_spi_transfer", err)
	}
	return s.send(s.respond("aux_spi_transfer_response").Bytes(rx))
}

func (s *Service) handleAuxSetSpeed(r *protocol.Reader) error {
	hz, err := r.Uint()
	if err != nil {
		return err
	}
	s.drv.AuxSPI().SetSpeedHz(hz)
	return s.status("aux_spi_set_speed", nil)
}

func (s *Service) handleGPIOFsel(r *protocol.Reader) error {
	pin, err := r.Byte()
	if err != nil {
		return err
	}
	f, err := r.Byte()
	if err != nil {
		return err
	}
	return s.status("gpio_fsel", s.drv.SelectFunction(pin, bcm2835.Function(f)))
}

func (s *Service) handleGPIOWrite(r *protocol.Reader) error {
	pin, err := r.Byte()
	if err != nil {
		return err
	}
	v, err := r.Byte()
	if err != nil {
		return err
	}
	return s.status("gpio_write", s.drv.Write(pin, gpio.Level(v != 0)))
}

func (s *Service) handleGPIORead(r *protocol.Reader) error {
	pin, err := r.Byte()
	if err != nil {
		return err
	}
	l, err := s.drv.Level(pin)
	if err != nil {
		return s.status("gpio_read", err)
	}
	v := uint32(0)
	if l {
		v = 1
	}
	return s.send(s.respond("gpio_state").Uint(uint32(pin)).Uint(v))
}

func (s *Service) handleGPIOSetPull(r *protocol.Reader) error {
	pin, err := r.Byte()
	if err != nil {
		return err
	}
	p, err := r.Byte()
	if err != nil {
		return err
	}
	return s.status("gpio_set_pull", s.drv.SetPull(pin, bcm2835.Pull(p)))
}

func (s *Service) handleGPIOGetPull(r *protocol.Reader) error {
	pin, err := r.Byte()
	if err != nil {
		return err
	}
	p, err := s.drv.Pull(pin)
	if err != nil {
		return s.status("gpio_get_pull", err)
	}
	return s.send(s.respond("gpio_pull").Uint(uint32(pin)).Uint(uint32(p)))
}

func (s *Service) handleGetClock(r *protocol.Reader) error {
	now := s.drv.ReadCounter()
	return s.send(s.respond("clock").Uint(uint32(now >> 32)).Uint(uint32(now)))
}

func (s *Service) handleDelay(r *protocol.Reader) error {
	us, err := r.Uint()
	if err != nil {
		return err
	}
	s.drv.DelayMicroseconds(uint64(us))
	return s.status("delay_us", nil)
}
