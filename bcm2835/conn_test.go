package bcm2835

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

func TestDriversSPI(t *testing.T) {
	s := newSim(t)
	var seen []byte
	s.slave = recorder(&seen, func(b byte) byte { return b + 1 })

	for _, bus := range []drivers.SPI{s.d.SPI(), s.d.AuxSPI()} {
		seen = nil
		r := make([]byte, 3)
		if err := bus.Tx(nil, r); err != nil {
			t.Fatalf("Tx(nil, r) failed: %v", err)
		}
		if !bytes.Equal(seen, []byte{0, 0, 0}) || !bytes.Equal(r, []byte{1, 1, 1}) {
			t.Errorf("Expected zeros out and ones back, sent %x got %x", seen, r)
		}

		seen = nil
		if err := bus.Tx([]byte{9, 8}, nil); err != nil {
			t.Fatalf("Tx(w, nil) failed: %v", err)
		}
		if !bytes.Equal(seen, []byte{9, 8}) {
			t.Errorf("Expected 09 08 on the wire, got %x", seen)
		}

		if err := bus.Tx([]byte{1, 2}, make([]byte, 3)); !errors.Is(err, ErrShortBuffer) {
			t.Errorf("Expected ErrShortBuffer on length mismatch, got %v", err)
		}

		got, err := bus.Transfer(0x41)
		if err != nil || got != 0x42 {
			t.Errorf("Expected 0x42, got 0x%02x, %v", got, err)
		}
	}
}

func TestConnectPrimary(t *testing.T) {
	s := newSim(t)

	c, err := s.d.SPI().Connect(physic.MegaHertz, spi.Mode3|spi.LSBFirst, 8)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Duplex() != conn.Full {
		t.Errorf("Expected full duplex, got %s", c.Duplex())
	}
	if c.String() != "SPI0" {
		t.Errorf("Expected SPI0, got %s", c.String())
	}
	if v := s.peek(offSPI0 + spi0CLK); v != 250 {
		t.Errorf("Expected divider 250, got %d", v)
	}
	if v := s.peek(offSPI0 + spi0CS); v&(csCPOL|csCPHA) != csCPOL|csCPHA {
		t.Errorf("Expected mode 3, got CS 0x%x", v)
	}
	if s.d.BitOrder() != LSBFirst {
		t.Errorf("Expected lsb first, got %s", s.d.BitOrder())
	}

	if _, err := s.d.SPI().Connect(0, spi.Mode0|spi.NoCS, 8); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if v := s.peek(offSPI0 + spi0CS); v&csCS != uint32(CSNone) {
		t.Errorf("Expected no chip select, got CS 0x%x", v)
	}
	if v := s.peek(offSPI0 + spi0CLK); v != 250 {
		t.Errorf("Expected divider kept at 250, got %d", v)
	}

	if _, err := s.d.SPI().Connect(physic.MegaHertz, spi.Mode0, 9); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("Expected ErrInvalidArg for 9 bits, got %v", err)
	}
	if _, err := s.d.SPI().Connect(physic.MegaHertz, spi.HalfDuplex, 8); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("Expected ErrInvalidArg for half duplex, got %v", err)
	}
}

func TestConnectAux(t *testing.T) {
	s := newSim(t)

	if _, err := s.d.AuxSPI().Connect(2*physic.MegaHertz, spi.Mode0, 8); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if got := s.d.AuxSPI().ClockDivider(); got != 62 {
		t.Errorf("Expected divider 62, got %d", got)
	}
	if _, err := s.d.AuxSPI().Connect(physic.MegaHertz, spi.Mode1, 8); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("Expected ErrInvalidArg for mode 1, got %v", err)
	}
}

func TestTxPackets(t *testing.T) {
	s := newSim(t)
	var seen []byte
	s.slave = recorder(&seen, func(b byte) byte { return b })

	r := make([]byte, 2)
	pkts := []spi.Packet{
		{W: []byte{1, 2, 3}, KeepCS: true},
		{W: []byte{4, 5}, R: r},
	}
	if err := s.d.SPI().TxPackets(pkts); err != nil {
		t.Fatalf("TxPackets failed: %v", err)
	}
	if !bytes.Equal(seen, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Expected 0102030405 on the wire, got %x", seen)
	}
	if !bytes.Equal(r, []byte{4, 5}) {
		t.Errorf("Expected 0405 back, got %x", r)
	}

	bad := []spi.Packet{{W: []byte{1}, BitsPerWord: 16}}
	if err := s.d.AuxSPI().TxPackets(bad); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("Expected ErrInvalidArg, got %v", err)
	}
}
