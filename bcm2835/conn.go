package bcm2835

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

var (
	_ drivers.SPI = (*SPI)(nil)
	_ drivers.SPI = (*AuxSPI)(nil)
	_ spi.Port    = (*SPI)(nil)
	_ spi.Port    = (*AuxSPI)(nil)
	_ spi.Conn    = (*SPI)(nil)
	_ spi.Conn    = (*AuxSPI)(nil)
)

// txBuffers normalizes the buffers of a Tx call. A nil w sends zeros.
func txBuffers(w, r []byte) ([]byte, error) {
	if w == nil {
		return make([]byte, len(r)), nil
	}
	if r != nil && len(r) != len(w) {
		return nil, fmt.Errorf("tx %d bytes, rx %d bytes: %w", len(w), len(r), ErrShortBuffer)
	}
	return w, nil
}

func checkPacket(p spi.Packet) error {
	if p.BitsPerWord != 0 && p.BitsPerWord != 8 {
		return fmt.Errorf("%d bits per word: %w", p.BitsPerWord, ErrInvalidArg)
	}
	return nil
}

func (s *SPI) String() string { return "SPI0" }

// Duplex is always full.
func (s *SPI) Duplex() conn.Duplex { return conn.Full }

// Tx writes w and reads into r in the same transfer. Either may be nil.
func (s *SPI) Tx(w, r []byte) error {
	w, err := txBuffers(w, r)
	if err != nil {
		return err
	}
	if r == nil {
		return s.WriteN(w)
	}
	return s.TransferN(w, r)
}

// TxPackets runs each packet as its own transfer. CS is released between
// packets whatever KeepCS says.
func (s *SPI) TxPackets(pkts []spi.Packet) error {
	for _, p := range pkts {
		if err := checkPacket(p); err != nil {
			return err
		}
		if err := s.Tx(p.W, p.R); err != nil {
			return err
		}
	}
	return nil
}

// Connect configures the bus for a device rated at f and returns it as a
// connection. f of 0 keeps the current divider. Only 8 bit words and full
// duplex are supported.
func (s *SPI) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("spi0 connect: %d bits per word: %w", bits, ErrInvalidArg)
	}
	if mode&spi.HalfDuplex != 0 {
		return nil, fmt.Errorf("spi0 connect: half duplex: %w", ErrInvalidArg)
	}
	if f != 0 {
		if f < physic.Hertz {
			return nil, fmt.Errorf("spi0 connect %s: %w", f, ErrInvalidSpeed)
		}
		if err := s.SetSpeedHz(uint32(f / physic.Hertz)); err != nil {
			return nil, err
		}
	}
	if err := s.SetDataMode(Mode(mode & spi.Mode3)); err != nil {
		return nil, err
	}
	if mode&spi.NoCS != 0 {
		if err := s.ChipSelect(CSNone); err != nil {
			return nil, err
		}
	}
	if mode&spi.LSBFirst != 0 {
		s.d.SetBitOrder(LSBFirst)
	} else {
		s.d.SetBitOrder(MSBFirst)
	}
	return s, nil
}

func (a *AuxSPI) String() string { return "SPI1" }

// Duplex is always full.
func (a *AuxSPI) Duplex() conn.Duplex { return conn.Full }

// Tx writes w and reads into r in the same transfer. Either may be nil.
func (a *AuxSPI) Tx(w, r []byte) error {
	w, err := txBuffers(w, r)
	if err != nil {
		return err
	}
	if r == nil {
		return a.WriteN(w)
	}
	return a.TransferN(w, r)
}

// TxPackets runs each packet as its own transfer.
func (a *AuxSPI) TxPackets(pkts []spi.Packet) error {
	for _, p := range pkts {
		if err := checkPacket(p); err != nil {
			return err
		}
		if err := a.Tx(p.W, p.R); err != nil {
			return err
		}
	}
	return nil
}

// Connect configures the auxiliary bus for a device rated at f. The
// controller only runs in mode 0 with CS2.
func (a *AuxSPI) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("spi1 connect: %d bits per word: %w", bits, ErrInvalidArg)
	}
	if mode&(spi.Mode3|spi.HalfDuplex|spi.NoCS) != 0 {
		return nil, fmt.Errorf("spi1 connect: mode %s: %w", mode, ErrInvalidArg)
	}
	if f != 0 {
		a.SetSpeedHz(uint32(f / physic.Hertz))
	}
	if mode&spi.LSBFirst != 0 {
		a.d.SetBitOrder(LSBFirst)
	} else {
		a.d.SetBitOrder(MSBFirst)
	}
	return a, nil
}
