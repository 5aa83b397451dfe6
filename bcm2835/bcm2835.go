// Package bcm2835 drives the GPIO, system timer and SPI peripherals of the
// BCM2835 family through a mapped register window.
//
// All hardware access is polled. A Driver assumes it is the only code touching
// the peripheral block; callers sharing a Driver across goroutines must
// serialize access themselves.
package bcm2835

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bcmperiph/mmio"
)

// Version of the register driver, encoded as major*10000 + minor*100 + patch.
const Version = 10075

var (
	ErrNotMapped      = errors.New("bcm2835: register block not mapped")
	ErrInvalidPin     = errors.New("bcm2835: invalid pin")
	ErrInvalidArg     = errors.New("bcm2835: invalid argument")
	ErrInvalidPull    = errors.New("bcm2835: invalid pull mode")
	ErrPullUnreadable = errors.New("bcm2835: pull state cannot be read back on this hardware")
	ErrInvalidSpeed   = errors.New("bcm2835: invalid clock speed")
	ErrShortBuffer    = errors.New("bcm2835: receive buffer shorter than transmit buffer")
)

// MaxPin is the highest GPIO number.
const MaxPin = 53

// Block identifies one of the register blocks the driver uses.
type Block uint8

const (
	BlockGPIO Block = iota
	BlockClock
	BlockPads
	BlockSPI0
	BlockST
	BlockAux
	BlockSPI1
	numBlocks
)

var blockNames = [numBlocks]string{"gpio", "clk", "pads", "spi0", "st", "aux", "spi1"}

func (b Block) String() string {
	if b < numBlocks {
		return blockNames[b]
	}
	return fmt.Sprintf("Block(%d)", uint8(b))
}

// Offset returns the byte offset of the block from the peripheral base.
func (b Block) Offset() uint32 {
	if b < numBlocks {
		return blocks[b].off
	}
	return 0
}

type blockInfo struct {
	off  uint32 // from the peripheral base
	span uint32 // bytes that must be inside the mapping
}

var blocks = [numBlocks]blockInfo{
	BlockGPIO:  {offGPIO, gpioEnd},
	BlockClock: {offClock, 4},
	BlockPads:  {offPads, padsEnd},
	BlockSPI0:  {offSPI0, spi0End},
	BlockST:    {offST, stEnd},
	BlockAux:   {offAux, auxEnd},
	BlockSPI1:  {offSPI1, auxSPIEnd},
}

// Layout describes where a Bus sits inside the peripheral address space.
type Layout struct {
	// Offset is the byte offset of the first mapped word from the
	// peripheral base.
	Offset uint32
	// Size is the number of mapped bytes. Zero means the size is taken from
	// the Bus when it implements mmio.Sizer, and unbounded otherwise.
	Size uint32
}

// FullLayout covers the whole peripheral window, as mapped from /dev/mem.
var FullLayout = Layout{Offset: 0, Size: mmio.PeriphSize}

// GPIOMemLayout is the single page exposed by /dev/gpiomem.
var GPIOMemLayout = Layout{Offset: offGPIO, Size: 4096}

// Option configures a Driver.
type Option func(*Driver)

// WithPullVariant selects the pull resistor protocol. It cannot change after
// construction.
func WithPullVariant(v PullVariant) Option {
	return func(d *Driver) { d.pullVariant = v }
}

// WithBitOrder sets the initial bit order for both buses.
func WithBitOrder(o BitOrder) Option {
	return func(d *Driver) { d.bitOrder = o }
}

// WithLogger sets the driver logger. Register tracing is enabled when the
// logger accepts debug records.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithSleep replaces time.Sleep in the delay functions.
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = sleep }
}

// WithDebug makes the delay functions log the request and return at once.
func WithDebug(debug bool) Option {
	return func(d *Driver) { d.debug = debug }
}

// Driver holds the resolved register handles and process-wide peripheral
// state.
type Driver struct {
	regs *mmio.Regs
	base [numBlocks]mmio.Handle

	pullVariant PullVariant
	pullCompat  Pull
	bitOrder    BitOrder
	auxDivider  uint16

	debug bool
	sleep func(time.Duration)
	log   *slog.Logger

	spi *SPI
	aux *AuxSPI
}

// New returns an uninitialized driver. Every block is Unmapped until Init.
func New(opts ...Option) *Driver {
	d := &Driver{
		pullCompat: PullOff,
		sleep:      time.Sleep,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(d)
	}
	d.unmap()
	d.spi = &SPI{d: d}
	d.aux = &AuxSPI{d: d}
	return d
}

func (d *Driver) unmap() {
	for i := range d.base {
		d.base[i] = mmio.Unmapped
	}
}

// Init resolves the register handles over bus. Blocks that are not fully
// covered by layout stay Unmapped; the GPIO block is required.
func (d *Driver) Init(bus mmio.Bus, layout Layout) error {
	d.unmap()
	size := uint64(layout.Size)
	if size == 0 {
		if s, ok := bus.(mmio.Sizer); ok && s.Words() != 0 {
			size = uint64(s.Words()) * 4
		} else {
			size = 1 << 32
		}
	}
	if layout.Offset%4 != 0 {
		return fmt.Errorf("init layout offset %#x: %w", layout.Offset, mmio.ErrUnaligned)
	}

	for i, b := range blocks {
		if b.off < layout.Offset || uint64(b.off-layout.Offset)+uint64(b.span) > size {
			d.log.Debug("block not mapped", slog.String("block", Block(i).String()))
			continue
		}
		d.base[i] = mmio.Handle((b.off - layout.Offset) / 4)
	}
	if !d.base[BlockGPIO].Mapped() {
		d.unmap()
		return fmt.Errorf("init: %s: %w", BlockGPIO, ErrNotMapped)
	}

	d.regs = mmio.NewRegs(bus)
	if d.log.Enabled(context.Background(), slog.LevelDebug) {
		d.regs.SetLogger(d.log)
	}
	d.log.Info("bcm2835 initialized",
		slog.Uint64("offset", uint64(layout.Offset)),
		slog.Uint64("size", size),
		slog.String("pull", d.pullVariant.String()))
	return nil
}

// Close forgets the register handles. Unmapping the memory is up to whoever
// created the Bus.
func (d *Driver) Close() error {
	d.unmap()
	d.regs = nil
	return nil
}

// RegBase returns the handle of a register block, or mmio.Unmapped.
func (d *Driver) RegBase(b Block) mmio.Handle {
	if b >= numBlocks {
		return mmio.Unmapped
	}
	return d.base[b]
}

// SPI returns the primary SPI bus.
func (d *Driver) SPI() *SPI { return d.spi }

// AuxSPI returns the auxiliary SPI bus.
func (d *Driver) AuxSPI() *AuxSPI { return d.aux }

// PullVariant returns the pull protocol chosen at construction.
func (d *Driver) PullVariant() PullVariant { return d.pullVariant }

func (d *Driver) need(b Block) (mmio.Handle, error) {
	h := d.base[b]
	if !h.Mapped() {
		return mmio.Unmapped, fmt.Errorf("%s: %w", b, ErrNotMapped)
	}
	return h, nil
}

func (d *Driver) checkPin(pin uint8) error {
	if pin > MaxPin {
		return fmt.Errorf("pin %d: %w", pin, ErrInvalidPin)
	}
	return nil
}
