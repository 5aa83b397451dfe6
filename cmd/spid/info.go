package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"bcmperiph/bcm2835"
	"bcmperiph/mmio"
	"bcmperiph/service"
)

var (
	detectCmd = &cobra.Command{
		Use:   "detect",
		Short: "Print the peripheral block found in the device tree",
		Run: func(cmd *cobra.Command, args []string) {
			p := mmio.DetectPeripheral()
			variant := bcm2835.PullLegacy
			if p.Modern() {
				variant = bcm2835.PullModern
			}
			fmt.Fprintf(cmd.OutOrStdout(), "base 0x%08x size 0x%x pull %s\n", p.Base, p.Size, variant)
		},
	}

	dictCmd = &cobra.Command{
		Use:   "dictionary",
		Short: "Print the command dictionary served to clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := service.New(bcm2835.New()).Dictionary()
			if err != nil {
				return err
			}
			if dict, err = service.Inflate(dict); err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, dict, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (bcm2835 %d)\n", service.Version, bcm2835.Version)
		},
	}
)
