package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"bcmperiph/bcm2835"
	"bcmperiph/bcm2835/loopback"
	"bcmperiph/service"
)

func connect(t *testing.T, opts ...bcm2835.Option) (*Client, *loopback.Device) {
	t.Helper()
	dev := loopback.New()
	drv := bcm2835.New(opts...)
	if err := drv.Init(dev.Bus(), bcm2835.FullLayout); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	drv.SPI().Begin()
	drv.AuxSPI().Begin()

	host, link := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go service.New(drv).Serve(ctx, link)

	c := New(host)
	t.Cleanup(func() {
		cancel()
		c.Close()
	})
	if err := c.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return c, dev
}

func TestRetrieveDictionary(t *testing.T) {
	c, _ := connect(t)
	if c.Dictionary().Version != service.Version {
		t.Errorf("Expected version %s, got %s", service.Version, c.Dictionary().Version)
	}
	names := c.Commands()
	if len(names) == 0 || names[0] != "aux_spi_set_speed" {
		t.Errorf("Expected sorted command names, got %v", names)
	}
	params, err := c.Params("spi_chip_select")
	if err != nil || len(params) != 2 || params[0].Name != "cs" {
		t.Errorf("Expected cs and pol params, got %v (%v)", params, err)
	}
}

func TestCallErrors(t *testing.T) {
	c, _ := connect(t)
	if _, err := c.Call("no_such_command"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Expected ErrUnknown, got %v", err)
	}
	if _, err := c.Call("gpio_write", 1); !errors.Is(err, ErrArgs) {
		t.Errorf("Expected ErrArgs for a missing argument, got %v", err)
	}
	if _, err := c.Call("spi_transfer", 3.5); !errors.Is(err, ErrArgs) {
		t.Errorf("Expected ErrArgs for a float, got %v", err)
	}
}

func TestCallBeforeDictionary(t *testing.T) {
	host, _ := net.Pipe()
	c := New(host)
	defer c.Close()
	if _, err := c.Call("get_clock"); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Expected ErrNoDictionary, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	c, dev := connect(t)
	dev.SetSlave(func(b byte) byte { return b ^ 0xff })
	got, err := c.Transfer([]byte{0x00, 0x12, 0xff})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0xff, 0xed, 0x00}) {
		t.Errorf("Expected ffed00, got %x", got)
	}

	got, err = c.AuxTransfer([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("AuxTransfer failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0xfe, 0xfd, 0xfc, 0xfb}) {
		t.Errorf("Expected fefdfcfb, got %x", got)
	}
}

func TestWriteRead(t *testing.T) {
	c, _ := connect(t)
	if err := c.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := c.Read(8)
	if err != nil || string(got) != "abc" {
		t.Errorf("Expected abc, got %q (%v)", got, err)
	}

	err = c.Write(make([]byte, service.MaxWrite+1))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != service.StatusInvalid {
		t.Errorf("Expected invalid status, got %v", err)
	}
}

func TestConfigure(t *testing.T) {
	c, _ := connect(t)
	steps := []struct {
		name string
		err  error
	}{
		{"speed", c.SetSpeed(8000000)},
		{"divider", c.SetDivider(64)},
		{"mode", c.SetMode(bcm2835.Mode1)},
		{"chip select", c.ChipSelect(bcm2835.CS1, false)},
		{"bit order", c.SetBitOrder(bcm2835.MSBFirst)},
		{"aux speed", c.AuxSetSpeed(2000000)},
		{"delay", c.Delay(10)},
	}
	for _, s := range steps {
		if s.err != nil {
			t.Errorf("%s failed: %v", s.name, s.err)
		}
	}
	if err := c.SetMode(bcm2835.Mode(5)); err == nil {
		t.Error("Expected mode 5 to be rejected")
	}
}

func TestGPIO(t *testing.T) {
	c, dev := connect(t, bcm2835.WithPullVariant(bcm2835.PullModern))
	if err := c.SelectFunction(22, bcm2835.Output); err != nil {
		t.Fatalf("SelectFunction failed: %v", err)
	}
	if err := c.WritePin(22, true); err != nil {
		t.Fatalf("WritePin failed: %v", err)
	}
	if high, err := c.ReadPin(22); err != nil || !high {
		t.Errorf("Expected pin 22 high, got %v (%v)", high, err)
	}
	dev.SetLevel(5, true)
	if high, _ := c.ReadPin(5); !high {
		t.Error("Expected pin 5 high")
	}

	if err := c.SetPull(5, bcm2835.PullDown); err != nil {
		t.Fatalf("SetPull failed: %v", err)
	}
	if p, err := c.GetPull(5); err != nil || p != bcm2835.PullDown {
		t.Errorf("Expected pull down, got %v (%v)", p, err)
	}
}

func TestGetPullLegacy(t *testing.T) {
	c, _ := connect(t)
	_, err := c.GetPull(5)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != service.StatusUnsupported {
		t.Errorf("Expected unsupported status, got %v", err)
	}
}

func TestClock(t *testing.T) {
	c, _ := connect(t)
	a, err := c.Clock()
	if err != nil {
		t.Fatalf("Clock failed: %v", err)
	}
	c.Delay(200)
	if b, _ := c.Clock(); b <= a {
		t.Errorf("Expected clock to advance, got %d -> %d", a, b)
	}
}
