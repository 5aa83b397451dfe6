package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bcmperiph/bcm2835"
)

const sample = `
memory:
  device: /dev/mem
  pull_variant: modern
spi:
  enabled: true
  speed_hz: 4000000
  mode: 1
  chip_select: 1
  active_high: true
  bit_order: lsb
aux_spi:
  enabled: true
  speed_hz: 500000
pins:
  - pin: 17
    function: out
    level: true
  - pin: 4
    function: in
    pull: up
serial:
  device: /dev/ttyAMA0
  baud: 115200
  read_timeout: 250ms
log:
  level: debug
  format: json
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Memory.PullVariant != "modern" {
		t.Errorf("Expected modern pull variant, got %q", cfg.Memory.PullVariant)
	}
	if cfg.SPI.SpeedHz != 4000000 || cfg.SPI.Mode != 1 || cfg.SPI.ChipSelect != 1 || !cfg.SPI.ActiveHigh {
		t.Errorf("Unexpected spi config %+v", cfg.SPI)
	}
	if cfg.SPI.Divider != 0 {
		t.Errorf("Expected no default divider when speed is set, got %d", cfg.SPI.Divider)
	}
	if len(cfg.Pins) != 2 || cfg.Pins[0].Level == nil || !*cfg.Pins[0].Level {
		t.Errorf("Unexpected pins %+v", cfg.Pins)
	}
	if cfg.Pins[1].Level != nil {
		t.Errorf("Expected pin 4 to leave its level alone")
	}
	if cfg.Serial.ReadTimeout != 250*time.Millisecond || cfg.Serial.Baud != 115200 {
		t.Errorf("Unexpected serial config %+v", cfg.Serial)
	}
	if lv, _ := cfg.Log.SlogLevel(); lv != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", lv)
	}
	if p := cfg.SerialPort(); p.Device != "/dev/ttyAMA0" || p.ReadTimeout != 250*time.Millisecond {
		t.Errorf("Unexpected serial port config %+v", p)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse of an empty document failed: %v", err)
	}
	if cfg.Memory.Device != DevMem {
		t.Errorf("Expected default device %s, got %s", DevMem, cfg.Memory.Device)
	}
	if cfg.SPI.Divider != bcm2835.Divider256 {
		t.Errorf("Expected default divider 256, got %d", cfg.SPI.Divider)
	}
	if cfg.AuxSPI.SpeedHz != 1000000 {
		t.Errorf("Expected default aux speed 1MHz, got %d", cfg.AuxSPI.SpeedHz)
	}
	if cfg.Serial.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Expected default read timeout 100ms, got %v", cfg.Serial.ReadTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected log defaults %+v", cfg.Log)
	}
	if !Default().SPI.Enabled {
		t.Error("Expected Default to enable the primary bus")
	}
}

func TestInvalid(t *testing.T) {
	tests := map[string]string{
		"device":      "memory: {device: /dev/null}",
		"variant":     "memory: {pull_variant: sideways}",
		"gpiomem spi": "memory: {device: /dev/gpiomem}\nspi: {enabled: true}",
		"mode":        "spi: {mode: 4}",
		"cs":          "spi: {chip_select: 5}",
		"bit order":   "spi: {bit_order: middle}",
		"pin":         "pins: [{pin: 54}]",
		"function":    "pins: [{pin: 3, function: alt9}]",
		"pull":        "pins: [{pin: 3, pull: sideways}]",
		"log level":   "log: {level: loud}",
		"log format":  "log: {format: xml}",
	}
	for name, doc := range tests {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestUnknownKey(t *testing.T) {
	if _, err := Parse([]byte("spi: {speed: 5}")); err == nil {
		t.Error("Expected an unknown key to be rejected")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spid.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyAMA0" {
		t.Errorf("Expected /dev/ttyAMA0, got %s", cfg.Serial.Device)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
