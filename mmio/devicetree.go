package mmio

import (
	"encoding/binary"
	"os"
)

// Peripheral physical base addresses of the supported SoC generations.
const (
	BCM2835Base = 0x20000000 // Pi 1, Zero
	BCM2836Base = 0x3F000000 // Pi 2, Pi 3
	BCM2711Base = 0xFE000000 // Pi 4
	PeriphSize  = 0x01000000
)

// DeviceTreeRanges is where the kernel exposes the SoC bus ranges.
const DeviceTreeRanges = "/proc/device-tree/soc/ranges"

// Peripheral describes where the peripheral block lives in physical memory.
type Peripheral struct {
	Base uint32
	Size uint32
}

// Modern reports whether the block belongs to a BCM2711, which uses the
// direct pull-up/down register layout.
func (p Peripheral) Modern() bool { return p.Base == BCM2711Base }

// ParseRanges decodes the first entry of a soc/ranges property. The child
// bus address must be 0x7e000000 and the parent address one of the known
// peripheral bases, otherwise ok is false.
func ParseRanges(buf []byte) (p Peripheral, ok bool) {
	if len(buf) < 12 {
		return Peripheral{}, false
	}
	be := binary.BigEndian
	base := be.Uint32(buf[4:8])
	size := be.Uint32(buf[8:12])
	if base == 0 {
		// BCM2711 uses two cells for the parent address.
		if len(buf) < 16 {
			return Peripheral{}, false
		}
		base = be.Uint32(buf[8:12])
		size = be.Uint32(buf[12:16])
	}
	if be.Uint32(buf[0:4]) != 0x7e000000 {
		return Peripheral{}, false
	}
	switch base {
	case BCM2835Base, BCM2836Base, BCM2711Base:
		return Peripheral{Base: base, Size: size}, true
	}
	return Peripheral{}, false
}

// DetectPeripheral reads DeviceTreeRanges. When the file is missing or holds
// an unknown layout it returns the BCM2835 defaults.
func DetectPeripheral() Peripheral {
	buf, err := os.ReadFile(DeviceTreeRanges)
	if err == nil {
		if p, ok := ParseRanges(buf); ok {
			return p
		}
	}
	return Peripheral{Base: BCM2835Base, Size: PeriphSize}
}
