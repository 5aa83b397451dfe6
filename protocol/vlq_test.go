package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0x7f}},
		{95, []byte{0x5f}},
		{96, []byte{0x80, 0x60}},
		{-32, []byte{0x60}},
		{-33, []byte{0xff, 0x5f}},
		{1000, []byte{0x87, 0x68}},
		{-1000, []byte{0xf8, 0x18}},
		{math.MaxInt32, []byte{0x87, 0xff, 0xff, 0xff, 0x7f}},
		{math.MinInt32, []byte{0xf8, 0x80, 0x80, 0x80, 0x00}},
	}

	for _, tc := range testCases {
		got := AppendInt(nil, tc.value)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("AppendInt(%d): expected %x, got %x", tc.value, tc.want, got)
		}

		r := NewReader(got)
		v, err := r.Int()
		if err != nil {
			t.Errorf("Failed to decode %x: %v", got, err)
			continue
		}
		if v != tc.value {
			t.Errorf("Expected %d, got %d", tc.value, v)
		}
		if r.Len() != 0 {
			t.Errorf("Decoding %d left %d bytes", tc.value, r.Len())
		}
	}
}

func TestVLQUint(t *testing.T) {
	for _, want := range []uint32{0, 127, 128, 250000000, math.MaxUint32} {
		v, err := NewReader(AppendUint(nil, want)).Uint()
		if err != nil || v != want {
			t.Errorf("Expected %d, got %d (%v)", want, v, err)
		}
	}
}

func TestVLQErrors(t *testing.T) {
	if _, err := NewReader([]byte{0x80}).Int(); !errors.Is(err, ErrShortData) {
		t.Errorf("Expected ErrShortData, got %v", err)
	}
	if _, err := NewReader(nil).Uint(); !errors.Is(err, ErrShortData) {
		t.Errorf("Expected ErrShortData on empty input, got %v", err)
	}
	long := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := NewReader(long).Int(); !errors.Is(err, ErrInvalidVLQ) {
		t.Errorf("Expected ErrInvalidVLQ for a 6 byte value, got %v", err)
	}
	if _, err := NewReader(AppendUint(nil, 300)).Byte(); !errors.Is(err, ErrInvalidVLQ) {
		t.Errorf("Expected ErrInvalidVLQ for 300 as a byte, got %v", err)
	}
	if _, err := NewReader([]byte{0x05, 0x01}).Bytes(); !errors.Is(err, ErrShortData) {
		t.Errorf("Expected ErrShortData for a truncated string, got %v", err)
	}
}

func TestMessage(t *testing.T) {
	payload := NewMessage(12).
		Uint(250000000).
		Int(-5).
		Bytes([]byte{0xde, 0xad}).
		Text("spi").
		Payload()

	r := NewReader(payload)
	id, _ := r.Uint()
	if id != 12 {
		t.Errorf("Expected id 12, got %d", id)
	}
	if v, _ := r.Uint(); v != 250000000 {
		t.Errorf("Expected 250000000, got %d", v)
	}
	if v, _ := r.Int(); v != -5 {
		t.Errorf("Expected -5, got %d", v)
	}
	if b, _ := r.Bytes(); !bytes.Equal(b, []byte{0xde, 0xad}) {
		t.Errorf("Expected dead, got %x", b)
	}
	if s, _ := r.Text(); s != "spi" {
		t.Errorf("Expected spi, got %q", s)
	}
	if r.Len() != 0 {
		t.Errorf("Expected payload consumed, %d bytes left", r.Len())
	}
}
