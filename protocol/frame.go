package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrFrameTooLong = errors.New("protocol: frame too long")

// EncodeFrame wraps payload into a frame with sequence byte seq.
func EncodeFrame(seq byte, payload []byte) ([]byte, error) {
	n := FrameMin + len(payload)
	if n > FrameMax {
		return nil, fmt.Errorf("%d byte frame, max %d: %w", n, FrameMax, ErrFrameTooLong)
	}
	f := make([]byte, 0, n)
	f = append(f, byte(n), seq)
	f = append(f, payload...)
	crc := CRC16(f)
	return append(f, byte(crc>>8), byte(crc), SyncByte), nil
}

// Frame is a received frame.
type Frame struct {
	Seq     byte
	Payload []byte
}

// IsAck reports whether f is a bare acknowledgement.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// Reader returns a Reader over the payload.
func (f Frame) Reader() *Reader { return NewReader(f.Payload) }

// Scanner splits a byte stream into frames. After a corrupt frame it drops
// input up to the next sync byte.
type Scanner struct {
	buf    []byte
	synced bool

	// OnResync, if set, is called when the scanner finds a sync byte after
	// dropping corrupt input.
	OnResync func()

	// Dropped counts rejected frames.
	Dropped int
}

// NewScanner returns a Scanner that expects a frame boundary first.
func NewScanner() *Scanner {
	return &Scanner{synced: true}
}

// Write buffers p. It never fails.
func (s *Scanner) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes not yet consumed.
func (s *Scanner) Buffered() int { return len(s.buf) }

func (s *Scanner) desync() {
	s.synced = false
	s.Dropped++
}

// Next returns the next complete frame, or false if more input is needed.
func (s *Scanner) Next() (Frame, bool) {
	for len(s.buf) > 0 {
		if !s.synced {
			i := bytes.IndexByte(s.buf, SyncByte)
			if i < 0 {
				s.buf = s.buf[:0]
				break
			}
			s.buf = s.buf[i+1:]
			s.synced = true
			if s.OnResync != nil {
				s.OnResync()
			}
			continue
		}
		if s.buf[0] == SyncByte {
			s.buf = s.buf[1:]
			continue
		}
		if len(s.buf) < FrameMin {
			break
		}

		n := int(s.buf[posLen])
		seq := s.buf[posSeq]
		if n < FrameMin || seq&^SeqMask != SeqDest {
			s.desync()
			continue
		}
		if len(s.buf) < n {
			break
		}
		if s.buf[n-1] != SyncByte {
			s.desync()
			continue
		}
		crc := uint16(s.buf[n-TrailerSize])<<8 | uint16(s.buf[n-TrailerSize+1])
		if crc != CRC16(s.buf[:n-TrailerSize]) {
			s.desync()
			continue
		}

		f := Frame{
			Seq:     seq,
			Payload: append([]byte(nil), s.buf[HeaderSize:n-TrailerSize]...),
		}
		s.buf = s.buf[n:]
		return f, true
	}
	return Frame{}, false
}
