// Package service exposes the peripheral driver as a command set over the
// framed protocol. A client downloads the command dictionary with identify,
// then issues bus and pin commands by id. Every handler runs under a single
// lock so the driver has exactly one owner.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"bcmperiph/bcm2835"
	"bcmperiph/protocol"
)

// Version is reported in the dictionary.
const Version = "bcmperiph-1.0"

// MaxWrite is the largest spi_write. Its response is kept for spi_read.
const MaxWrite = 8

// identifyChunk bounds the data of one identify_response.
const identifyChunk = 40

// ErrTooLong is reported for a spi_write over MaxWrite bytes.
var ErrTooLong = errors.New("service: data too long")

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for commands and link events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithConstants adds entries to the config section of the dictionary.
func WithConstants(c map[string]any) Option {
	return func(s *Service) {
		for k, v := range c {
			s.constants[k] = v
		}
	}
}

// Service owns a Driver and serves commands for it.
type Service struct {
	mu  sync.Mutex
	drv *bcm2835.Driver
	tr  *protocol.Transport
	reg *Registry
	log *slog.Logger

	constants map[string]any
	dict      dictCache

	// response of the last spi_write
	pending []byte
}

// New registers the command set for drv. drv must be initialised.
func New(drv *bcm2835.Driver, opts ...Option) *Service {
	s := &Service{
		drv: drv,
		reg: NewRegistry(),
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		constants: map[string]any{
			"BCM2835_VERSION": bcm2835.Version,
			"CORE_CLOCK_FREQ": bcm2835.CoreClockHz,
			"CLOCK_FREQ":      1000000,
			"MAX_PIN":         bcm2835.MaxPin,
			"SPI_WRITE_MAX":   MaxWrite,
			"PULL_VARIANT":    drv.PullVariant().String(),
		},
	}
	for _, o := range opts {
		o(s)
	}
	s.register()
	return s
}

// Registry returns the command registry.
func (s *Service) Registry() *Registry { return s.reg }

// Dictionary returns the encoded dictionary.
func (s *Service) Dictionary() ([]byte, error) {
	return s.dict.get(func() ([]byte, error) {
		return BuildDictionary(s.reg, Version, s.constants)
	})
}

// Attach binds the service to a link writing to w and returns the transport
// that must be fed the bytes read from it.
func (s *Service) Attach(w io.Writer) *protocol.Transport {
	tr := protocol.NewTransport(w, s.handle)
	tr.SetLogger(s.log)
	tr.SetResetCallback(func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	})
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()
	return tr
}

// Serve answers commands read from rw until ctx is done or rw fails. Read
// must return periodically for cancellation to be noticed; serial ports
// opened with a read timeout do.
func (s *Service) Serve(ctx context.Context, rw io.ReadWriter) error {
	tr := s.Attach(rw)
	s.log.Info("serving", slog.Int("commands", s.reg.Count()))
	defer func() {
		s.log.Info("link closed", slog.Int("dropped_frames", tr.Stats()))
	}()

	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rw.Read(buf)
		if n > 0 {
			if werr := tr.Receive(buf[:n]); werr != nil {
				return fmt.Errorf("serve: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
}

func (s *Service) handle(id uint16, r *protocol.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Dispatch(id, r)
}

// respond starts a response message. Called with s.mu held.
func (s *Service) respond(name string) *protocol.Message {
	c, ok := s.reg.Lookup(name)
	if !ok {
		panic("service: unregistered response " + name)
	}
	return protocol.NewMessage(c.ID)
}

func (s *Service) send(m *protocol.Message) error {
	if s.tr == nil {
		return errors.New("service: not attached")
	}
	return s.tr.Send(m)
}

// status reports the outcome of a command that has no data response.
func (s *Service) status(cmd string, err error) error {
	code := statusCode(err)
	if err != nil {
		s.log.Warn("command failed", slog.String("cmd", cmd), slog.Any("err", err))
	}
	return s.send(s.respond("status").Int(code))
}
