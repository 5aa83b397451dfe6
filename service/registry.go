package service

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"bcmperiph/protocol"
)

// ErrUnknownCommand is returned when dispatching an unregistered id.
var ErrUnknownCommand = errors.New("service: unknown command")

// Handler decodes its own arguments from r.
type Handler func(r *protocol.Reader) error

// Command is a registered message. Responses have a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "pin=%c value=%c"
	Handler Handler
}

// Signature returns the dictionary key of the command.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// Registry maps command ids to handlers. Ids are handed out in registration
// order.
type Registry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	byName   map[string]uint16
	nextID   uint16
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[uint16]*Command),
		byName:   make(map[string]uint16),
	}
}

// Register adds a command and returns its id. Registering a name twice
// returns the existing id.
func (r *Registry) Register(name, format string, h Handler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: h}
	r.byName[name] = id
	return id
}

// RegisterResponse adds a message sent by the service.
func (r *Registry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// Command returns the command with the given id.
func (r *Registry) Command(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[id]
	return c, ok
}

// Lookup returns the command with the given name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered messages.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of command id.
func (r *Registry) Dispatch(id uint16, rd *protocol.Reader) error {
	c, ok := r.Command(id)
	if !ok {
		return fmt.Errorf("id %d: %w", id, ErrUnknownCommand)
	}
	if c.Handler == nil {
		return fmt.Errorf("%s is a response: %w", c.Name, ErrUnknownCommand)
	}
	return c.Handler(rd)
}

// Commands returns all registered messages ordered by id.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Command) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// ParseSignature splits a dictionary key into the message name and its
// parameter names and formats.
func ParseSignature(sig string) (name string, params []Param) {
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return "", nil
	}
	for _, f := range fields[1:] {
		k, v, _ := strings.Cut(f, "=")
		params = append(params, Param{Name: k, Format: v})
	}
	return fields[0], params
}

// Param is one parameter of a message signature.
type Param struct {
	Name   string
	Format string // %c, %u, %i, %hu or %*s
}
