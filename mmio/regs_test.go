package mmio

import "testing"

func TestHandleAdd(t *testing.T) {
	h := Handle(0x100)
	if got := h.Add(3); got != 0x103 {
		t.Errorf("Expected 0x103, got 0x%x", got)
	}
	if got := h.Reg(0x1c); got != 0x107 {
		t.Errorf("Expected 0x107, got 0x%x", got)
	}
	if got := Unmapped.Add(5); got != Unmapped {
		t.Errorf("Expected Unmapped to stay Unmapped, got 0x%x", got)
	}
	if Unmapped.Mapped() {
		t.Error("Unmapped reports mapped")
	}
}

func TestSetBits(t *testing.T) {
	bus := NewMemBus(0)
	r := NewRegs(bus)

	bus.Poke(4, 0xF0F0F0F0)
	r.SetBits(4, 0x0000_00FF, 0x0000_0F0F)
	if got := bus.Peek(4); got != 0xF0F0F0FF {
		t.Errorf("Expected 0xF0F0F0FF, got 0x%08X", got)
	}

	r.SetBits(4, 0, 0xFFFF_0000)
	if got := bus.Peek(4); got != 0x0000F0FF {
		t.Errorf("Expected 0x0000F0FF, got 0x%08X", got)
	}
}

func TestReadWriteVariants(t *testing.T) {
	bus := NewMemBus(0)
	r := NewRegs(bus)

	r.Write(1, 11)
	r.WriteNB(2, 22)
	if r.Read(1) != 11 || r.ReadNB(2) != 22 {
		t.Errorf("Expected 11/22, got %d/%d", r.Read(1), r.ReadNB(2))
	}
}

func TestUnmappedAccessPanics(t *testing.T) {
	r := NewRegs(NewMemBus(0))
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on unmapped access")
		}
	}()
	r.Read(Unmapped)
}

func TestMemBusHooks(t *testing.T) {
	bus := NewMemBus(16)
	bus.OnWrite = func(off, v uint32) (uint32, bool) {
		// bit 4 is self-clearing
		return v &^ 0x10, true
	}
	bus.OnRead = func(off, stored uint32) uint32 {
		return stored | 0x1
	}

	bus.Write32(0, 0x30)
	if got := bus.Peek(0); got != 0x20 {
		t.Errorf("Expected stored 0x20, got 0x%x", got)
	}
	if got := bus.Read32(0); got != 0x21 {
		t.Errorf("Expected read 0x21, got 0x%x", got)
	}
	if bus.Words() != 16 {
		t.Errorf("Expected 16 words, got %d", bus.Words())
	}
}

func TestParseRanges(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want Peripheral
		ok   bool
	}{
		{
			name: "pi3",
			buf:  []byte{0x7e, 0, 0, 0, 0x3f, 0, 0, 0, 0x01, 0, 0, 0},
			want: Peripheral{Base: BCM2836Base, Size: 0x01000000},
			ok:   true,
		},
		{
			name: "pi4",
			buf:  []byte{0x7e, 0, 0, 0, 0, 0, 0, 0, 0xfe, 0, 0, 0, 0x01, 0x80, 0, 0},
			want: Peripheral{Base: BCM2711Base, Size: 0x01800000},
			ok:   true,
		},
		{
			name: "unknown base",
			buf:  []byte{0x7e, 0, 0, 0, 0x40, 0, 0, 0, 0x01, 0, 0, 0},
			ok:   false,
		},
		{
			name: "short",
			buf:  []byte{0x7e, 0, 0},
			ok:   false,
		},
	}

	for _, tc := range tests {
		got, ok := ParseRanges(tc.buf)
		if ok != tc.ok {
			t.Errorf("%s: expected ok=%v, got %v", tc.name, tc.ok, ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
	if p, _ := ParseRanges([]byte{0x7e, 0, 0, 0, 0, 0, 0, 0, 0xfe, 0, 0, 0, 0x01, 0x80, 0, 0}); !p.Modern() {
		t.Error("Expected BCM2711 to be modern")
	}
}
