package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"periph.io/x/conn/v3/gpio"

	"bcmperiph/bcm2835"
	"bcmperiph/config"
	"bcmperiph/mmio"
)

func loopbackConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("memory: {device: loopback, pull_variant: modern}\n" + extra))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg
}

func TestNewDriverLoopback(t *testing.T) {
	cfg := loopbackConfig(t, `
spi: {enabled: true, speed_hz: 1000000, mode: 3, chip_select: 1, bit_order: lsb}
aux_spi: {enabled: true, speed_hz: 250000}
pins:
  - {pin: 17, function: out, level: true}
  - {pin: 4, function: in, pull: down}
`)
	drv, mem, err := newDriver(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newDriver failed: %v", err)
	}
	defer mem.Close()
	if drv.PullVariant() != bcm2835.PullModern {
		t.Errorf("Expected configured modern pull variant, got %s", drv.PullVariant())
	}
	if drv.BitOrder() != bcm2835.LSBFirst {
		t.Errorf("Expected lsb bit order, got %s", drv.BitOrder())
	}

	if err := configure(drv, cfg); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if f, _ := drv.FunctionOf(17); f != bcm2835.Output {
		t.Errorf("Expected pin 17 output, got %s", f)
	}
	if l, _ := drv.Level(17); l != gpio.High {
		t.Errorf("Expected pin 17 high")
	}
	if p, _ := drv.Pull(4); p != bcm2835.PullDown {
		t.Errorf("Expected pin 4 pull down, got %s", p)
	}
	if f, _ := drv.FunctionOf(10); f != bcm2835.Alt0 {
		t.Errorf("Expected MOSI on alt0, got %s", f)
	}
	if f, _ := drv.FunctionOf(20); f != bcm2835.Alt4 {
		t.Errorf("Expected SPI1 MOSI on alt4, got %s", f)
	}
	if got, want := drv.AuxSPI().ClockDivider(), bcm2835.CalcClockDivider(250000); got != want {
		t.Errorf("Expected aux divider %d, got %d", want, got)
	}

	rx := make([]byte, 3)
	if err := drv.SPI().TransferN([]byte{1, 2, 3}, rx); err != nil || !bytes.Equal(rx, []byte{1, 2, 3}) {
		t.Errorf("Expected loopback echo, got %x (%v)", rx, err)
	}
}

func TestPeripheral(t *testing.T) {
	if p := peripheral(config.MemoryConfig{Device: config.DevMem, Base: mmio.BCM2711Base}); !p.Modern() {
		t.Errorf("Expected a configured BCM2711 base to be modern, got %#x", p.Base)
	}
	if p := peripheral(config.MemoryConfig{Device: config.Loopback}); p.Base != mmio.BCM2835Base {
		t.Errorf("Expected loopback at the BCM2835 base, got %#x", p.Base)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", slog.Int("n", 1))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected one JSON record, got %q", buf.String())
	}
	if rec["msg"] != "shown" {
		t.Errorf("Expected msg shown, got %v", rec["msg"])
	}
}

func TestDictionaryCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"dictionary"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), `"spi_transfer data=%*s"`) {
		t.Errorf("Expected spi_transfer in dictionary output, got %s", out.String())
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg := config.Default()
	serveOpts.loopback = true
	serveOpts.serial = "/dev/ttyUSB1"
	defer func() { serveOpts.loopback, serveOpts.serial = false, "" }()

	applyServeFlags(serveCmd, cfg)
	if cfg.Memory.Device != config.Loopback || !cfg.AuxSPI.Enabled {
		t.Errorf("Expected --loopback to select the simulated block, got %+v", cfg.Memory)
	}
	if cfg.Serial.Device != "/dev/ttyUSB1" {
		t.Errorf("Expected serial override, got %s", cfg.Serial.Device)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected overridden config to validate: %v", err)
	}
}
