package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// NativePort wraps a tarm/serial port.
type NativePort struct {
	port  io.ReadWriteCloser
	flush func() error
	cfg   *Config
}

func newPort(rwc io.ReadWriteCloser, flush func() error, cfg *Config) *NativePort {
	return &NativePort{port: rwc, flush: flush, cfg: cfg}
}

// Open opens a native serial port.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("serial: config cannot be nil")
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return newPort(port, port.Flush, cfg), nil
}

// Read reads data from the serial port. tarm/serial reports an expired read
// timeout as io.EOF; that is returned as an empty read.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && p.cfg.ReadTimeout > 0 {
		return 0, nil
	}
	return n, err
}

// Write writes data to the serial port.
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port.
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input.
func (p *NativePort) Flush() error {
	if p.flush == nil {
		return nil
	}
	return p.flush()
}

// Config returns the configuration the port was opened with.
func (p *NativePort) Config() Config { return *p.cfg }
