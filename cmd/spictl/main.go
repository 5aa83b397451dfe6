// Command spictl sends SPI and GPIO commands to a running spid.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bcmperiph/host/client"
	"bcmperiph/host/serial"
)

var (
	rootOpts = struct {
		device  string
		baud    int
		timeout time.Duration
		verbose bool
	}{}

	// conn is shared by every command of one process, and across lines of
	// the shell.
	conn *client.Client

	rootCmd = &cobra.Command{
		Use:           "spictl",
		Short:         "Control a BCM2835 SPI transfer daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if conn != nil || cmd.Annotations["offline"] != "" {
				return nil
			}
			return connect()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.device, "device", "d", "/dev/ttyUSB0", "serial device of the daemon link")
	rootCmd.PersistentFlags().IntVarP(&rootOpts.baud, "baud", "b", serial.DefaultBaud, "serial baud rate")
	rootCmd.PersistentFlags().DurationVarP(&rootOpts.timeout, "timeout", "t", 2*time.Second, "time to wait for each reply")
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "log link activity to stderr")
}

func connect() error {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if rootOpts.verbose {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	cfg := serial.DefaultConfig(rootOpts.device)
	cfg.Baud = rootOpts.baud
	c, err := client.Dial(cfg, client.WithLogger(log), client.WithTimeout(rootOpts.timeout))
	if err != nil {
		return fmt.Errorf("connect %s: %w", rootOpts.device, err)
	}
	conn = c
	return nil
}

func main() {
	err := rootCmd.Execute()
	if conn != nil {
		conn.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "spictl:", err)
		os.Exit(1)
	}
}
