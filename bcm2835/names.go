package bcm2835

import (
	"fmt"
	"strings"
)

// ParseFunction parses a function name as printed by Function.String.
func ParseFunction(s string) (Function, error) {
	s = strings.ToLower(s)
	for f := Function(0); f <= 7; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	switch s {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	}
	return 0, fmt.Errorf("function %q: %w", s, ErrInvalidArg)
}

// ParsePull parses off, up or down.
func ParsePull(s string) (Pull, error) {
	for p := PullOff; p <= PullDown; p++ {
		if p.String() == strings.ToLower(s) {
			return p, nil
		}
	}
	return PullError, fmt.Errorf("pull %q: %w", s, ErrInvalidPull)
}

// ParseBitOrder parses msb or lsb.
func ParseBitOrder(s string) (BitOrder, error) {
	switch strings.ToLower(s) {
	case "msb", "":
		return MSBFirst, nil
	case "lsb":
		return LSBFirst, nil
	}
	return MSBFirst, fmt.Errorf("bit order %q: %w", s, ErrInvalidArg)
}

// ParsePullVariant parses legacy or modern.
func ParsePullVariant(s string) (PullVariant, error) {
	switch strings.ToLower(s) {
	case "legacy":
		return PullLegacy, nil
	case "modern":
		return PullModern, nil
	}
	return PullLegacy, fmt.Errorf("pull variant %q: %w", s, ErrInvalidArg)
}
