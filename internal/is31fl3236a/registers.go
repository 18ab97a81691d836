package is31fl3236a

// Register map of the IS31FL3236A. Every register is a single byte; the PWM
// and LED control blocks are 36 consecutive registers indexed by channel.
const (
	regShutdown      = 0x00
	regPWMBase       = 0x01 // 0x01..0x24
	regUpdate        = 0x25
	regLEDCtrlBase   = 0x26 // 0x26..0x49
	regGlobalControl = 0x4A
	regFrequency     = 0x4B
	regReset         = 0x4C
)

const (
	shutdownActive = 0x01
	updateLatch    = 0x00
	resetCmd       = 0x00

	ledOff = 0x00
	ledOn  = 0x01

	freqSel3kHz  = 0x00
	freqSel22kHz = 0x01
)

const (
	// NumChannels is the number of PWM outputs on one chip.
	NumChannels = 36

	// DefaultAddress is the 7-bit bus address with AD tied to GND.
	DefaultAddress = 0x3C

	// Freq3kHz and Freq22kHz are the only output frequencies the chip supports.
	Freq3kHz  = 3000
	Freq22kHz = 22000

	// MaxDutyCycle is the largest logical duty cycle. The chip keeps the top
	// 8 bits only.
	MaxDutyCycle = 0xFFFF
)
