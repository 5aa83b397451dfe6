package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidVLQ = errors.New("protocol: invalid VLQ encoding")
	ErrShortData  = errors.New("protocol: truncated data")
)

// maxVLQLen is the longest encoding of a 32 bit value.
const maxVLQLen = 5

// AppendInt appends the VLQ encoding of v to dst. The first byte carries the
// sign in bit 6, so small negative numbers stay short.
func AppendInt(dst []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		dst = append(dst, byte(v>>28)&0x7F|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		dst = append(dst, byte(v>>21)&0x7F|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		dst = append(dst, byte(v>>14)&0x7F|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		dst = append(dst, byte(v>>7)&0x7F|0x80)
	}
	return append(dst, byte(v)&0x7F)
}

// AppendUint appends the VLQ encoding of v.
func AppendUint(dst []byte, v uint32) []byte {
	return AppendInt(dst, int32(v))
}

// AppendBytes appends b prefixed by its length.
func AppendBytes(dst, b []byte) []byte {
	dst = AppendUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// Reader decodes VLQ values from a payload.
type Reader struct {
	buf []byte
}

// NewReader returns a Reader over b. b is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of undecoded bytes.
func (r *Reader) Len() int { return len(r.buf) }

// Int decodes a signed value.
func (r *Reader) Int() (int32, error) {
	if len(r.buf) == 0 {
		return 0, ErrShortData
	}
	c := uint32(r.buf[0])
	r.buf = r.buf[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for n := 1; c&0x80 != 0; n++ {
		if n == maxVLQLen {
			return 0, ErrInvalidVLQ
		}
		if len(r.buf) == 0 {
			return 0, ErrShortData
		}
		c = uint32(r.buf[0])
		r.buf = r.buf[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v), nil
}

// Uint decodes an unsigned value.
func (r *Reader) Uint() (uint32, error) {
	v, err := r.Int()
	return uint32(v), err
}

// Byte decodes a value that must fit in a byte.
func (r *Reader) Byte() (byte, error) {
	v, err := r.Uint()
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, fmt.Errorf("value %d does not fit a byte: %w", v, ErrInvalidVLQ)
	}
	return byte(v), nil
}

// Bytes decodes a length prefixed byte string. The result aliases the
// payload.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if uint32(len(r.buf)) < n {
		return nil, fmt.Errorf("%d byte string with %d left: %w", n, len(r.buf), ErrShortData)
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

// Text decodes a length prefixed string.
func (r *Reader) Text() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

// Message builds a command payload.
type Message struct {
	buf []byte
}

// NewMessage starts a payload for command id.
func NewMessage(id uint16) *Message {
	return &Message{buf: AppendUint(make([]byte, 0, 32), uint32(id))}
}

// Int appends a signed argument.
func (m *Message) Int(v int32) *Message {
	m.buf = AppendInt(m.buf, v)
	return m
}

// Uint appends an unsigned argument.
func (m *Message) Uint(v uint32) *Message {
	m.buf = AppendUint(m.buf, v)
	return m
}

// Bytes appends a byte string argument.
func (m *Message) Bytes(b []byte) *Message {
	m.buf = AppendBytes(m.buf, b)
	return m
}

// Text appends a string argument.
func (m *Message) Text(s string) *Message {
	m.buf = AppendBytes(m.buf, []byte(s))
	return m
}

// Payload returns the encoded payload.
func (m *Message) Payload() []byte { return m.buf }
