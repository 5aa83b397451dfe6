package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"bcmperiph/host/client"
)

// parseHex accepts hex bytes optionally separated by spaces, colons or
// commas, with or without a 0x prefix.
func parseHex(args ...string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", ",", "", "0x", "", "0X", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex data: %w", err)
	}
	return b, nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, err)
	}
	return v, nil
}

func parsePin(s string) (uint8, error) {
	v, err := parseUint(s, 8)
	return uint8(v), err
}

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "high", "on", "true":
		return true, nil
	case "0", "low", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("bad level %q", s)
}

// callArgs converts command line words to arguments for c.Call. Words may be
// positional or name=value.
func callArgs(c *client.Client, name string, words []string) ([]any, error) {
	params, err := c.Params(name)
	if err != nil {
		return nil, err
	}
	if len(words) != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", name, len(params), len(words))
	}
	args := make([]any, len(params))
	for i, p := range params {
		w := words[i]
		if k, v, ok := strings.Cut(w, "="); ok {
			if k != p.Name {
				return nil, fmt.Errorf("argument %d is %s, got %s", i+1, p.Name, k)
			}
			w = v
		}
		if p.Format == "%*s" {
			if args[i], err = parseHex(w); err != nil {
				return nil, err
			}
			continue
		}
		if p.Format == "%i" {
			v, err := strconv.ParseInt(w, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("bad number %q: %w", w, err)
			}
			args[i] = int32(v)
			continue
		}
		v, err := parseUint(w, 32)
		if err != nil {
			return nil, err
		}
		args[i] = uint32(v)
	}
	return args, nil
}

// formatResponse prints fields in name order with byte strings as hex.
func formatResponse(r client.Response) string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString(r.Name)
	for _, k := range names {
		switch v := r.Fields[k].(type) {
		case []byte:
			fmt.Fprintf(&b, " %s=%x", k, v)
		default:
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}
