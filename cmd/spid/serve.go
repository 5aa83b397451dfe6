package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bcmperiph/config"
	"bcmperiph/host/serial"
	"bcmperiph/service"
)

var (
	serveOpts = struct {
		serial   string
		baud     int
		loopback bool
		logLevel string
	}{}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve commands on the serial link",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.serial, "serial", "s", "", "serial device of the client link")
	serveCmd.Flags().IntVarP(&serveOpts.baud, "baud", "b", 0, "serial baud rate")
	serveCmd.Flags().BoolVar(&serveOpts.loopback, "loopback", false, "serve a simulated peripheral block with echoing SPI slaves")
	serveCmd.Flags().StringVarP(&serveOpts.logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if serveOpts.serial != "" {
		cfg.Serial.Device = serveOpts.serial
	}
	if serveOpts.baud != 0 {
		cfg.Serial.Baud = serveOpts.baud
	}
	if serveOpts.loopback {
		cfg.Memory.Device = config.Loopback
		cfg.SPI.Enabled = true
		cfg.AuxSPI.Enabled = true
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = serveOpts.logLevel
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	drv, mem, err := newDriver(cfg, log)
	if err != nil {
		return err
	}
	defer mem.Close()
	defer drv.Close()

	if err := configure(drv, cfg); err != nil {
		return err
	}

	port, err := serial.Open(cfg.SerialPort())
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		log.Warn("flush failed", slog.Any("err", err))
	}

	svc := service.New(drv, service.WithLogger(log.With(slog.String("component", "service"))))
	log.Info("listening", slog.String("serial", cfg.Serial.Device), slog.Int("baud", cfg.Serial.Baud))
	err = svc.Serve(ctx, port)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
