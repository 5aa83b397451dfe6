package bcm2835

// Byte offsets of the register blocks from the peripheral base.
const (
	offST    = 0x003000
	offPads  = 0x100000
	offClock = 0x101000
	offGPIO  = 0x200000
	offSPI0  = 0x204000
	offAux   = 0x215000
	offSPI1  = 0x215080
)

// CoreClockHz is the VideoCore clock feeding both SPI dividers.
const CoreClockHz = 250000000

// GPIO register byte offsets.
const (
	gpfsel0    = 0x0000
	gpset0     = 0x001c
	gpclr0     = 0x0028
	gplev0     = 0x0034
	gpeds0     = 0x0040
	gpren0     = 0x004c
	gpfen0     = 0x0058
	gphen0     = 0x0064
	gplen0     = 0x0070
	gparen0    = 0x007c
	gpafen0    = 0x0088
	gppud      = 0x0094
	gppudclk0  = 0x0098
	gppuppdn0  = 0x00e4
	gpioEnd    = 0x00f4
	fselMask   = 0x7
	pudSetupUS = 10
)

// Pad control register byte offsets and bits.
const (
	padsGPIO0   = 0x002c
	padsEnd     = 0x0038
	PadPassword = 0x5A << 24

	PadSlewRateUnlimited = 0x10
	PadHysteresisEnabled = 0x08
	PadDrive2mA          = 0x00
	PadDrive4mA          = 0x01
	PadDrive6mA          = 0x02
	PadDrive8mA          = 0x03
	PadDrive10mA         = 0x04
	PadDrive12mA         = 0x05
	PadDrive14mA         = 0x06
	PadDrive16mA         = 0x07
)

// System timer register byte offsets.
const (
	stCS  = 0x0000
	stCLO = 0x0004
	stCHI = 0x0008
	stEnd = 0x000c
)

// SPI0 register byte offsets.
const (
	spi0CS   = 0x0000
	spi0FIFO = 0x0004
	spi0CLK  = 0x0008
	spi0DLEN = 0x000c
	spi0LTOH = 0x0010
	spi0DC   = 0x0014
	spi0End  = 0x0018
)

// SPI0 CS register bits.
const (
	csLenLong = 0x02000000
	csDMALen  = 0x01000000
	csCSPOL2  = 0x00800000
	csCSPOL1  = 0x00400000
	csCSPOL0  = 0x00200000
	csRXF     = 0x00100000
	csRXR     = 0x00080000
	csTXD     = 0x00040000
	csRXD     = 0x00020000
	csDone    = 0x00010000
	csLEN     = 0x00002000
	csREN     = 0x00001000
	csADCS    = 0x00000800
	csINTR    = 0x00000400
	csINTD    = 0x00000200
	csDMAEN   = 0x00000100
	csTA      = 0x00000080
	csCSPOL   = 0x00000040
	csClearRX = 0x00000020
	csClearTX = 0x00000010
	csClear   = csClearRX | csClearTX
	csCPOL    = 0x00000008
	csCPHA    = 0x00000004
	csCS      = 0x00000003

	cspolShift = 21
)

// AUX block register byte offsets and enable bits.
const (
	auxIRQ    = 0x0000
	auxEnable = 0x0004
	auxEnd    = 0x0008

	auxEnableUART = 0x01
	auxEnableSPI1 = 0x02
	auxEnableSPI2 = 0x04
)

// Auxiliary SPI register byte offsets.
const (
	auxSPICNTL0  = 0x0000
	auxSPICNTL1  = 0x0004
	auxSPISTAT   = 0x0008
	auxSPIPEEK   = 0x000c
	auxSPIIO     = 0x0020
	auxSPITXHold = 0x0030
	auxSPIEnd    = 0x0040
)

// Auxiliary SPI CNTL0 bits.
const (
	cntl0Speed      = 0xFFF00000
	cntl0SpeedMax   = 0xFFF
	cntl0SpeedShift = 20
	cntl0CS0N       = 0x000C0000
	cntl0CS1N       = 0x000A0000
	cntl0CS2N       = 0x00060000
	cntl0PostInput  = 0x00010000
	cntl0VarCS      = 0x00008000
	cntl0VarWidth   = 0x00004000
	cntl0DoutHold   = 0x00003000
	cntl0Enable     = 0x00000800
	cntl0CPHAIn     = 0x00000400
	cntl0ClearFIFO  = 0x00000200
	cntl0CPHAOut    = 0x00000100
	cntl0CPOL       = 0x00000080
	cntl0MSBFOut    = 0x00000040
	cntl0ShiftLen   = 0x0000003F
)

// Auxiliary SPI CNTL1 bits.
const (
	cntl1CSHigh  = 0x00000700
	cntl1TXEmpty = 0x00000080
	cntl1Idle    = 0x00000040
	cntl1MSBFIn  = 0x00000002
	cntl1KeepIn  = 0x00000001
)

// Auxiliary SPI STAT bits.
const (
	statTXFull   = 0x00000400
	statTXEmpty  = 0x00000200
	statRXFull   = 0x00000100
	statRXEmpty  = 0x00000080
	statBusy     = 0x00000040
	statBitCount = 0x0000003F
)

// Auxiliary SPI clock limits.
const (
	AuxSPIClockMin = 30500
	AuxSPIClockMax = 125000000
)
