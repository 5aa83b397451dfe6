package main

import (
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/gpio"

	"bcmperiph/bcm2835"
	"bcmperiph/bcm2835/loopback"
	"bcmperiph/config"
	"bcmperiph/mmio"
)

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// peripheral returns where the register block lives, honouring a configured
// base address.
func peripheral(cfg config.MemoryConfig) mmio.Peripheral {
	if cfg.Device == config.Loopback {
		return mmio.Peripheral{Base: mmio.BCM2835Base, Size: mmio.PeriphSize}
	}
	if cfg.Base != 0 {
		return mmio.Peripheral{Base: cfg.Base, Size: mmio.PeriphSize}
	}
	return mmio.DetectPeripheral()
}

// openBus maps the configured memory device.
func openBus(cfg config.MemoryConfig, p mmio.Peripheral) (mmio.Bus, bcm2835.Layout, io.Closer, error) {
	switch cfg.Device {
	case config.Loopback:
		return loopback.New().Bus(), bcm2835.FullLayout, nopCloser{}, nil
	case config.DevGPIOMem:
		m, err := mmio.Map(config.DevGPIOMem, 0, int(bcm2835.GPIOMemLayout.Size))
		if err != nil {
			return nil, bcm2835.Layout{}, nil, err
		}
		return m, bcm2835.GPIOMemLayout, m, nil
	}
	m, err := mmio.Map(config.DevMem, int64(p.Base), mmio.PeriphSize)
	if err != nil {
		return nil, bcm2835.Layout{}, nil, err
	}
	return m, bcm2835.FullLayout, m, nil
}

// newDriver maps the peripheral block and initialises a driver for it. The
// returned closer releases the mapping.
func newDriver(cfg *config.Config, log *slog.Logger) (*bcm2835.Driver, io.Closer, error) {
	p := peripheral(cfg.Memory)
	variant := bcm2835.PullLegacy
	if p.Modern() {
		variant = bcm2835.PullModern
	}
	if cfg.Memory.PullVariant != "" {
		v, err := bcm2835.ParsePullVariant(cfg.Memory.PullVariant)
		if err != nil {
			return nil, nil, err
		}
		variant = v
	}
	order, err := bcm2835.ParseBitOrder(cfg.SPI.BitOrder)
	if err != nil {
		return nil, nil, err
	}

	bus, layout, closer, err := openBus(cfg.Memory, p)
	if err != nil {
		return nil, nil, err
	}
	log.Info("peripheral block",
		slog.String("device", cfg.Memory.Device),
		slog.String("base", fmt.Sprintf("%#x", p.Base)),
		slog.String("pull", variant.String()))

	drv := bcm2835.New(
		bcm2835.WithLogger(log.With(slog.String("component", "bcm2835"))),
		bcm2835.WithPullVariant(variant),
		bcm2835.WithBitOrder(order),
	)
	if err := drv.Init(bus, layout); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return drv, closer, nil
}

// configure applies the bus and pin settings of cfg.
func configure(drv *bcm2835.Driver, cfg *config.Config) error {
	if cfg.SPI.Enabled {
		spi := drv.SPI()
		if err := spi.Begin(); err != nil {
			return fmt.Errorf("spi begin: %w", err)
		}
		var err error
		if cfg.SPI.SpeedHz != 0 {
			err = spi.SetSpeedHz(cfg.SPI.SpeedHz)
		} else {
			err = spi.SetClockDivider(cfg.SPI.Divider)
		}
		if err != nil {
			return fmt.Errorf("spi clock: %w", err)
		}
		if err := spi.SetDataMode(bcm2835.Mode(cfg.SPI.Mode)); err != nil {
			return err
		}
		cs := bcm2835.CS(cfg.SPI.ChipSelect)
		if err := spi.ChipSelect(cs); err != nil {
			return err
		}
		if cs != bcm2835.CSNone {
			if err := spi.SetChipSelectPolarity(cs, gpio.Level(cfg.SPI.ActiveHigh)); err != nil {
				return err
			}
		}
	}
	if cfg.AuxSPI.Enabled {
		aux := drv.AuxSPI()
		if err := aux.Begin(); err != nil {
			return fmt.Errorf("aux spi begin: %w", err)
		}
		aux.SetSpeedHz(cfg.AuxSPI.SpeedHz)
	}
	for _, p := range cfg.Pins {
		if p.Function != "" {
			f, err := bcm2835.ParseFunction(p.Function)
			if err != nil {
				return err
			}
			if err := drv.SelectFunction(p.Pin, f); err != nil {
				return err
			}
		}
		if p.Pull != "" {
			pull, err := bcm2835.ParsePull(p.Pull)
			if err != nil {
				return err
			}
			if err := drv.SetPull(p.Pin, pull); err != nil {
				return err
			}
		}
		if p.Level != nil {
			if err := drv.Write(p.Pin, gpio.Level(*p.Level)); err != nil {
				return err
			}
		}
	}
	return nil
}
