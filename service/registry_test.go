package service

import (
	"errors"
	"strings"
	"testing"

	"bcmperiph/protocol"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	var called bool
	id := reg.Register("test_command", "arg=%u", func(r *protocol.Reader) error {
		v, err := r.Uint()
		if err != nil {
			return err
		}
		called = v == 7
		return nil
	})
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	c, ok := reg.Command(id)
	if !ok || c.Name != "test_command" {
		t.Fatalf("Failed to retrieve registered command")
	}
	if c.Signature() != "test_command arg=%u" {
		t.Errorf("Expected signature 'test_command arg=%%u', got '%s'", c.Signature())
	}

	if err := reg.Dispatch(id, protocol.NewReader([]byte{7})); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}
	if err := reg.Dispatch(999, protocol.NewReader(nil)); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewRegistry()
	a := reg.Register("cmd", "", func(*protocol.Reader) error { return nil })
	b := reg.Register("cmd", "x=%u", func(*protocol.Reader) error { return nil })
	if a != b || reg.Count() != 1 {
		t.Errorf("Expected duplicate registration to return id %d, got %d (count %d)", a, b, reg.Count())
	}
}

func TestRegistryResponseNotDispatched(t *testing.T) {
	reg := NewRegistry()
	id := reg.RegisterResponse("status", "code=%i")
	if err := reg.Dispatch(id, protocol.NewReader(nil)); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected dispatching a response to fail, got %v", err)
	}
}

func TestRegistryCommandsOrdered(t *testing.T) {
	reg := NewRegistry()
	names := []string{"c", "a", "b", "e", "d"}
	for _, n := range names {
		reg.Register(n, "", nil)
	}
	for i, c := range reg.Commands() {
		if int(c.ID) != i || c.Name != names[i] {
			t.Errorf("Position %d: expected %s/%d, got %s/%d", i, names[i], i, c.Name, c.ID)
		}
	}
}

func TestParseSignature(t *testing.T) {
	name, params := ParseSignature("gpio_write pin=%c value=%c")
	if name != "gpio_write" || len(params) != 2 {
		t.Fatalf("Expected gpio_write with 2 params, got %s %v", name, params)
	}
	if params[1] != (Param{Name: "value", Format: "%c"}) {
		t.Errorf("Expected value=%%c, got %+v", params[1])
	}
	if name, params := ParseSignature("get_clock"); name != "get_clock" || params != nil {
		t.Errorf("Expected bare get_clock, got %s %v", name, params)
	}
}

func TestChunk(t *testing.T) {
	data := []byte("0123456789")
	tests := []struct {
		offset uint32
		count  int
		want   string
	}{
		{0, 4, "0123"},
		{8, 4, "89"},
		{10, 4, ""},
		{20, 4, ""},
		{3, 0, ""},
	}
	for _, tt := range tests {
		if got := string(Chunk(data, tt.offset, tt.count)); got != tt.want {
			t.Errorf("Chunk(%d, %d): expected %q, got %q", tt.offset, tt.count, tt.want, got)
		}
	}
}

func TestBuildDictionaryCompressed(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ping", "v=%u", func(r *protocol.Reader) error { return nil })
	data, err := BuildDictionary(reg, "test", map[string]any{"MAX_PIN": 53})
	if err != nil {
		t.Fatalf("BuildDictionary failed: %v", err)
	}
	if data[0] != 0x78 {
		t.Errorf("Expected a zlib header, got 0x%02x", data[0])
	}
	raw, err := Inflate(data)
	if err != nil {
		t.Fatalf("Inflate failed: %v", err)
	}
	if !strings.Contains(string(raw), `"ping v=%u"`) {
		t.Errorf("Expected ping in the dictionary, got %s", raw)
	}
	d, err := ParseDictionary(data)
	if err != nil {
		t.Fatalf("ParseDictionary failed: %v", err)
	}
	if d.Version != "test" || d.Config["MAX_PIN"] != float64(53) {
		t.Errorf("Expected version test and MAX_PIN 53, got %s %v", d.Version, d.Config)
	}
	if plain, _ := Inflate(raw); string(plain) != string(raw) {
		t.Error("Expected uncompressed data to pass through")
	}
}
