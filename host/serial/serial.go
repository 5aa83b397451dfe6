// Package serial opens the serial link between the transfer daemon and its
// clients.
package serial

import (
	"io"
	"time"
)

// Port is a serial link. Reads return after the configured timeout with
// n == 0 and a nil error when nothing arrived.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not yet read.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. "/dev/ttyAMA0" or "/dev/ttyGS0"
	Device string

	Baud int

	// ReadTimeout bounds a single Read. Zero blocks.
	ReadTimeout time.Duration
}

// DefaultBaud is used when a configuration leaves Baud unset.
const DefaultBaud = 250000

// DefaultConfig returns the configuration for device with the default baud
// rate and a 100ms read timeout.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
