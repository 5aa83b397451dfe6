package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bcmperiph/bcm2835"
)

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}

var (
	dictCmd = &cobra.Command{
		Use:   "dictionary",
		Short: "Print the daemon's command dictionary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out bytes.Buffer
			if err := json.Indent(&out, conn.DictionaryRaw(), "", "  "); err != nil {
				return err
			}
			printf(cmd, "%s\n", out.Bytes())
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the commands the daemon accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range conn.Commands() {
				params, _ := conn.Params(name)
				parts := []string{name}
				for _, p := range params {
					parts = append(parts, p.Name+"="+p.Format)
				}
				printf(cmd, "%s\n", strings.Join(parts, " "))
			}
			return nil
		},
	}

	callCmd = &cobra.Command{
		Use:   "call NAME [ARG...]",
		Short: "Send any command by name; byte strings are given in hex",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := callArgs(conn, args[0], args[1:])
			if err != nil {
				return err
			}
			resp, err := conn.Call(args[0], vals...)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", formatResponse(resp))
			return nil
		},
	}

	transferCmd = &cobra.Command{
		Use:   "transfer HEX...",
		Short: "Full duplex transfer on the primary bus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := parseHex(args...)
			if err != nil {
				return err
			}
			rx, err := conn.Transfer(tx)
			if err != nil {
				return err
			}
			printf(cmd, "%x\n", rx)
			return nil
		},
	}

	writeCmd = &cobra.Command{
		Use:   "write HEX...",
		Short: "Write up to 8 bytes on the primary bus and keep the reply for read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := parseHex(args...)
			if err != nil {
				return err
			}
			return conn.Write(tx)
		},
	}

	readCmd = &cobra.Command{
		Use:   "read COUNT",
		Short: "Read the reply kept by the last write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseUint(args[0], 16)
			if err != nil {
				return err
			}
			rx, err := conn.Read(int(n))
			if err != nil {
				return err
			}
			printf(cmd, "%x\n", rx)
			return nil
		},
	}

	speedCmd = &cobra.Command{
		Use:   "speed HZ",
		Short: "Set the primary bus clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hz, err := parseUint(args[0], 32)
			if err != nil {
				return err
			}
			return conn.SetSpeed(uint32(hz))
		},
	}

	dividerCmd = &cobra.Command{
		Use:   "divider N",
		Short: "Set the primary bus clock divider (0 means 65536)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			div, err := parseUint(args[0], 16)
			if err != nil {
				return err
			}
			return conn.SetDivider(uint16(div))
		},
	}

	modeCmd = &cobra.Command{
		Use:   "mode 0-3",
		Short: "Set the primary bus clock polarity and phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseUint(args[0], 8)
			if err != nil {
				return err
			}
			return conn.SetMode(bcm2835.Mode(m))
		},
	}

	csCmd = &cobra.Command{
		Use:   "cs 0-3 [high|low]",
		Short: "Select the chip select line and its active level",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := parseUint(args[0], 8)
			if err != nil {
				return err
			}
			high := false
			if len(args) == 2 {
				if high, err = parseLevel(args[1]); err != nil {
					return err
				}
			}
			return conn.ChipSelect(bcm2835.CS(cs), high)
		},
	}

	orderCmd = &cobra.Command{
		Use:   "order msb|lsb",
		Short: "Set the bit order of both buses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := bcm2835.ParseBitOrder(args[0])
			if err != nil {
				return err
			}
			return conn.SetBitOrder(o)
		},
	}

	auxTransferCmd = &cobra.Command{
		Use:   "aux-transfer HEX...",
		Short: "Full duplex transfer on the auxiliary bus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := parseHex(args...)
			if err != nil {
				return err
			}
			rx, err := conn.AuxTransfer(tx)
			if err != nil {
				return err
			}
			printf(cmd, "%x\n", rx)
			return nil
		},
	}

	auxSpeedCmd = &cobra.Command{
		Use:   "aux-speed HZ",
		Short: "Set the auxiliary bus clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hz, err := parseUint(args[0], 32)
			if err != nil {
				return err
			}
			return conn.AuxSetSpeed(uint32(hz))
		},
	}

	fselCmd = &cobra.Command{
		Use:   "fsel PIN FUNCTION",
		Short: "Set a pin function (in, out, alt0-alt5)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parsePin(args[0])
			if err != nil {
				return err
			}
			f, err := bcm2835.ParseFunction(args[1])
			if err != nil {
				return err
			}
			return conn.SelectFunction(pin, f)
		},
	}

	setCmd = &cobra.Command{
		Use:   "set PIN LEVEL",
		Short: "Drive an output pin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parsePin(args[0])
			if err != nil {
				return err
			}
			high, err := parseLevel(args[1])
			if err != nil {
				return err
			}
			return conn.WritePin(pin, high)
		},
	}

	getCmd = &cobra.Command{
		Use:   "get PIN",
		Short: "Read the level of a pin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parsePin(args[0])
			if err != nil {
				return err
			}
			high, err := conn.ReadPin(pin)
			if err != nil {
				return err
			}
			if high {
				printf(cmd, "1\n")
			} else {
				printf(cmd, "0\n")
			}
			return nil
		},
	}

	pullCmd = &cobra.Command{
		Use:   "pull PIN [off|up|down]",
		Short: "Set or, without a mode, read a pin's pull resistor",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parsePin(args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				p, err := conn.GetPull(pin)
				if err != nil {
					return err
				}
				printf(cmd, "%s\n", p)
				return nil
			}
			p, err := bcm2835.ParsePull(args[1])
			if err != nil {
				return err
			}
			return conn.SetPull(pin, p)
		},
	}

	clockCmd = &cobra.Command{
		Use:   "clock",
		Short: "Print the daemon's system timer in microseconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := conn.Clock()
			if err != nil {
				return err
			}
			printf(cmd, "%d\n", now)
			return nil
		},
	}

	delayCmd = &cobra.Command{
		Use:   "delay US",
		Short: "Make the daemon wait, using its system timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			us, err := parseUint(args[0], 32)
			if err != nil {
				return err
			}
			return conn.Delay(uint32(us))
		},
	}
)

func init() {
	rootCmd.AddCommand(
		dictCmd, listCmd, callCmd,
		transferCmd, writeCmd, readCmd, speedCmd, dividerCmd, modeCmd, csCmd, orderCmd,
		auxTransferCmd, auxSpeedCmd,
		fselCmd, setCmd, getCmd, pullCmd,
		clockCmd, delayCmd,
		shellCmd,
	)
}
