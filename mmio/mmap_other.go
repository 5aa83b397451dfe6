//go:build !linux

package mmio

import "errors"

// Mapping is unavailable outside Linux.
type Mapping struct{}

// Map always fails outside Linux.
func Map(path string, off int64, size int) (*Mapping, error) {
	return nil, errors.New("mmio: memory mapping requires linux")
}

func (m *Mapping) Read32(off uint32) uint32     { panic(ErrRange) }
func (m *Mapping) Write32(off uint32, v uint32) { panic(ErrRange) }
func (m *Mapping) Words() uint32                { return 0 }
func (m *Mapping) Close() error                 { return nil }
