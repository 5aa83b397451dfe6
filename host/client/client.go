// Package client talks to the transfer daemon over a serial link. It
// downloads the command dictionary on connect and encodes calls by name.
package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/exp/slices"

	"bcmperiph/host/serial"
	"bcmperiph/protocol"
	"bcmperiph/service"
)

// Bootstrap ids, valid before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
)

// identifyChunk is the chunk size requested with identify.
const identifyChunk = 40

var (
	ErrNoDictionary = errors.New("client: dictionary not loaded")
	ErrUnknown      = errors.New("client: unknown command")
	ErrArgs         = errors.New("client: bad arguments")
)

// StatusError is a failure status reported by the daemon.
type StatusError struct {
	Cmd  string
	Code int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Cmd, service.StatusText(e.Code), e.Code)
}

type message struct {
	id     uint16
	name   string
	params []service.Param
}

// Response is a decoded message from the daemon. Byte strings decode to
// []byte, %i to int32 and every other format to uint32.
type Response struct {
	Name   string
	Fields map[string]any
}

// Uint returns an unsigned field, or 0.
func (r Response) Uint(name string) uint32 {
	v, _ := r.Fields[name].(uint32)
	return v
}

// Bytes returns a byte string field.
func (r Response) Bytes(name string) []byte {
	v, _ := r.Fields[name].([]byte)
	return v
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets how long a call waits for its acknowledgement and
// response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client is a connection to a daemon.
type Client struct {
	transport *protocol.HostTransport
	log       *slog.Logger
	timeout   time.Duration

	dictionary     *service.Dictionary
	dictionaryData []byte
	commands       map[string]message
	responses      map[uint16]message
}

// New wraps an open link. Call RetrieveDictionary before anything else.
func New(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: protocol.DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	c.transport = protocol.NewHostTransport(port)
	c.transport.SetLogger(c.log)
	c.transport.Timeout = c.timeout
	return c
}

// Dial opens a serial port and loads the dictionary.
func Dial(cfg *serial.Config, opts ...Option) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", cfg.Device, err)
	}
	c := New(port, opts...)
	if err := c.RetrieveDictionary(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the link.
func (c *Client) Close() error {
	return c.transport.Close()
}

// RetrieveDictionary downloads and parses the command dictionary.
func (c *Client) RetrieveDictionary() error {
	var buf bytes.Buffer
	for {
		chunk, err := c.identify(uint32(buf.Len()))
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", buf.Len(), err)
		}
		if len(chunk) == 0 {
			break
		}
		buf.Write(chunk)
	}
	c.log.Debug("dictionary retrieved", slog.Int("bytes", buf.Len()))

	raw, err := service.Inflate(buf.Bytes())
	if err != nil {
		return err
	}
	d, err := service.ParseDictionary(raw)
	if err != nil {
		return err
	}
	c.dictionaryData = raw
	c.dictionary = d
	c.commands = make(map[string]message, len(d.Commands))
	c.responses = make(map[uint16]message, len(d.Responses))
	for sig, id := range d.Commands {
		name, params := service.ParseSignature(sig)
		c.commands[name] = message{id: uint16(id), name: name, params: params}
	}
	for sig, id := range d.Responses {
		name, params := service.ParseSignature(sig)
		c.responses[uint16(id)] = message{id: uint16(id), name: name, params: params}
	}
	return nil
}

func (c *Client) identify(offset uint32) ([]byte, error) {
	f, err := c.transport.Call(protocol.NewMessage(identifyID).Uint(offset).Uint(identifyChunk))
	if err != nil {
		return nil, err
	}
	r := f.Reader()
	id, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if id != identifyResponseID {
		return nil, fmt.Errorf("unexpected response id %d", id)
	}
	got, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if got != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, got)
	}
	return r.Bytes()
}

// Dictionary returns the parsed dictionary, nil before RetrieveDictionary.
func (c *Client) Dictionary() *service.Dictionary { return c.dictionary }

// DictionaryRaw returns the JSON text of the dictionary.
func (c *Client) DictionaryRaw() []byte { return c.dictionaryData }

// Commands returns the names of all commands the daemon accepts, sorted.
func (c *Client) Commands() []string {
	names := make([]string, 0, len(c.commands))
	for n := range c.commands {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Params returns the parameters of a command.
func (c *Client) Params(name string) ([]service.Param, error) {
	m, ok := c.commands[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknown)
	}
	return m.params, nil
}

// Call sends command name with args in signature order and returns the
// response. A failure status is returned as a *StatusError.
func (c *Client) Call(name string, args ...any) (Response, error) {
	if c.dictionary == nil {
		return Response{}, ErrNoDictionary
	}
	cmd, ok := c.commands[name]
	if !ok {
		return Response{}, fmt.Errorf("%s: %w", name, ErrUnknown)
	}
	if len(args) != len(cmd.params) {
		return Response{}, fmt.Errorf("%s takes %d arguments, got %d: %w", name, len(cmd.params), len(args), ErrArgs)
	}
	m := protocol.NewMessage(cmd.id)
	for i, p := range cmd.params {
		if err := appendArg(m, p, args[i]); err != nil {
			return Response{}, fmt.Errorf("%s %s: %w", name, p.Name, err)
		}
	}

	f, err := c.transport.Call(m)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", name, err)
	}
	resp, err := c.decode(f)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", name, err)
	}
	if resp.Name == "status" {
		if code, _ := resp.Fields["code"].(int32); code != service.StatusOK {
			return resp, &StatusError{Cmd: name, Code: code}
		}
	}
	return resp, nil
}

func appendArg(m *protocol.Message, p service.Param, v any) error {
	if p.Format == "%*s" {
		switch b := v.(type) {
		case []byte:
			m.Bytes(b)
		case string:
			m.Text(b)
		default:
			return fmt.Errorf("%T for %s: %w", v, p.Format, ErrArgs)
		}
		return nil
	}
	switch n := v.(type) {
	case int:
		m.Int(int32(n))
	case int32:
		m.Int(n)
	case uint8:
		m.Uint(uint32(n))
	case uint16:
		m.Uint(uint32(n))
	case uint32:
		m.Uint(n)
	case bool:
		if n {
			m.Uint(1)
		} else {
			m.Uint(0)
		}
	default:
		return fmt.Errorf("%T for %s: %w", v, p.Format, ErrArgs)
	}
	return nil
}

func (c *Client) decode(f protocol.Frame) (Response, error) {
	r := f.Reader()
	id, err := r.Uint()
	if err != nil {
		return Response{}, err
	}
	msg, ok := c.responses[uint16(id)]
	if !ok {
		return Response{}, fmt.Errorf("response id %d: %w", id, ErrUnknown)
	}
	resp := Response{Name: msg.name, Fields: make(map[string]any, len(msg.params))}
	for _, p := range msg.params {
		var v any
		switch p.Format {
		case "%*s":
			b, err := r.Bytes()
			if err != nil {
				return Response{}, err
			}
			v = bytes.Clone(b)
		case "%i":
			v, err = r.Int()
		default:
			v, err = r.Uint()
		}
		if err != nil {
			return Response{}, fmt.Errorf("%s %s: %w", msg.name, p.Name, err)
		}
		resp.Fields[p.Name] = v
	}
	return resp, nil
}
