// Command spid maps the BCM2835 peripheral block and serves SPI and GPIO
// commands over a serial link.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "spid",
		Short:         "BCM2835 SPI transfer daemon",
		Long:          "spid maps the BCM2835 peripheral registers and serves SPI transfers and GPIO control to clients on a serial link.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	rootCmd.AddCommand(serveCmd, detectCmd, dictCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spid:", err)
		os.Exit(1)
	}
}
