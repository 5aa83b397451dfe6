// Package config loads the transfer daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bcmperiph/bcm2835"
	"bcmperiph/host/serial"
)

// Memory devices understood by the daemon.
const (
	DevMem     = "/dev/mem"
	DevGPIOMem = "/dev/gpiomem"
	Loopback   = "loopback"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the daemon configuration.
type Config struct {
	Memory MemoryConfig `yaml:"memory"`
	SPI    SPIConfig    `yaml:"spi"`
	AuxSPI AuxSPIConfig `yaml:"aux_spi"`
	Pins   []PinConfig  `yaml:"pins"`
	Serial SerialConfig `yaml:"serial"`
	Log    LogConfig    `yaml:"log"`
}

// MemoryConfig selects how the peripheral block is reached.
type MemoryConfig struct {
	// Device is /dev/mem, /dev/gpiomem or loopback for a simulated block.
	Device string `yaml:"device"`
	// Base is the physical peripheral base. Zero reads the device tree.
	Base uint32 `yaml:"base"`
	// PullVariant is legacy or modern. Empty follows the detected SoC.
	PullVariant string `yaml:"pull_variant"`
}

// SPIConfig configures the primary bus.
type SPIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SpeedHz    uint32 `yaml:"speed_hz"`
	Divider    uint16 `yaml:"divider"` // used when SpeedHz is zero
	Mode       uint8  `yaml:"mode"`
	ChipSelect uint8  `yaml:"chip_select"`
	ActiveHigh bool   `yaml:"active_high"`
	BitOrder   string `yaml:"bit_order"`
}

// AuxSPIConfig configures the auxiliary bus.
type AuxSPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	SpeedHz uint32 `yaml:"speed_hz"`
}

// PinConfig sets up one pin at startup.
type PinConfig struct {
	Pin      uint8  `yaml:"pin"`
	Function string `yaml:"function"`
	Pull     string `yaml:"pull"`
	Level    *bool  `yaml:"level"`
}

// SerialConfig is the link to clients.
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, rejecting unknown keys, and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.SPI.Enabled = true
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults fills in missing values.
func applyDefaults(cfg *Config) {
	if cfg.Memory.Device == "" {
		cfg.Memory.Device = DevMem
	}
	if cfg.SPI.SpeedHz == 0 && cfg.SPI.Divider == 0 {
		cfg.SPI.Divider = bcm2835.Divider256
	}
	if cfg.SPI.BitOrder == "" {
		cfg.SPI.BitOrder = "msb"
	}
	if cfg.AuxSPI.SpeedHz == 0 {
		cfg.AuxSPI.SpeedHz = 1000000
	}
	if cfg.Serial.Device == "" {
		cfg.Serial.Device = "/dev/ttyGS0"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = serial.DefaultBaud
	}
	if cfg.Serial.ReadTimeout == 0 {
		cfg.Serial.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Memory.Device {
	case DevMem, DevGPIOMem, Loopback:
	default:
		return fmt.Errorf("memory device %q: %w", c.Memory.Device, ErrInvalid)
	}
	if c.Memory.PullVariant != "" {
		if _, err := bcm2835.ParsePullVariant(c.Memory.PullVariant); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if c.Memory.Device == DevGPIOMem && (c.SPI.Enabled || c.AuxSPI.Enabled) {
		return fmt.Errorf("%s only maps GPIO, spi needs %s: %w", DevGPIOMem, DevMem, ErrInvalid)
	}
	if c.SPI.Mode > uint8(bcm2835.Mode3) {
		return fmt.Errorf("spi mode %d: %w", c.SPI.Mode, ErrInvalid)
	}
	if c.SPI.ChipSelect > uint8(bcm2835.CSNone) {
		return fmt.Errorf("spi chip select %d: %w", c.SPI.ChipSelect, ErrInvalid)
	}
	if _, err := bcm2835.ParseBitOrder(c.SPI.BitOrder); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for _, p := range c.Pins {
		if p.Pin > bcm2835.MaxPin {
			return fmt.Errorf("pin %d: %w", p.Pin, ErrInvalid)
		}
		if p.Function != "" {
			if _, err := bcm2835.ParseFunction(p.Function); err != nil {
				return fmt.Errorf("pin %d: %w: %w", p.Pin, ErrInvalid, err)
			}
		}
		if p.Pull != "" {
			if _, err := bcm2835.ParsePull(p.Pull); err != nil {
				return fmt.Errorf("pin %d: %w: %w", p.Pin, ErrInvalid, err)
			}
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format %q: %w", c.Log.Format, ErrInvalid)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lv slog.Level
	err := lv.UnmarshalText([]byte(l.Level))
	return lv, err
}

// SerialPort returns the serial port configuration.
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}
