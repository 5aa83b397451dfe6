package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

var errNestedShell = errors.New("already in a shell")

var inShell bool

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Read commands from stdin, one per line, over one connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inShell {
			return errNestedShell
		}
		inShell = true
		defer func() { inShell = false }()
		return runShell(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runShell executes each input line as a spictl command line. Errors are
// printed and the loop goes on; "quit", "exit" or end of input stop it.
func runShell(in io.Reader, out, errOut io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		switch words[0] {
		case "quit", "exit":
			return nil
		}
		rootCmd.SetArgs(words)
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintln(errOut, "error:", err)
		}
	}
}
