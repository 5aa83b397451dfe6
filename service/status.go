package service

import (
	"errors"

	"bcmperiph/bcm2835"
	"bcmperiph/protocol"
)

// Status codes carried by the status response. Failures are negative errno
// values.
const (
	StatusOK          = 0
	StatusIO          = -5
	StatusNoDevice    = -19
	StatusInvalid     = -22
	StatusUnsupported = -95
)

// statusCode maps a handler error to the code reported to the client.
func statusCode(err error) int32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, bcm2835.ErrNotMapped):
		return StatusNoDevice
	case errors.Is(err, bcm2835.ErrPullUnreadable):
		return StatusUnsupported
	case errors.Is(err, ErrTooLong),
		errors.Is(err, bcm2835.ErrInvalidPin),
		errors.Is(err, bcm2835.ErrInvalidArg),
		errors.Is(err, bcm2835.ErrInvalidPull),
		errors.Is(err, bcm2835.ErrInvalidSpeed),
		errors.Is(err, bcm2835.ErrShortBuffer),
		errors.Is(err, protocol.ErrInvalidVLQ),
		errors.Is(err, protocol.ErrShortData):
		return StatusInvalid
	}
	return StatusIO
}

// StatusText describes a status code.
func StatusText(code int32) string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusIO:
		return "i/o error"
	case StatusNoDevice:
		return "peripheral not mapped"
	case StatusInvalid:
		return "invalid argument"
	case StatusUnsupported:
		return "not supported"
	}
	return "unknown status"
}
