package is31fl3236a

import (
	"fmt"
	"sync"

	"is31ledd/internal/i2c"
)

// RegisterBus is the single-byte register access the driver needs.
// *i2c.Dev implements it.
type RegisterBus interface {
	ReadRegU8(reg byte) (byte, error)
	WriteReg(reg, value byte) error
}

type addresser interface {
	Addr() uint16
}

// Device is one IS31FL3236A. The bus is borrowed and must outlive the Device.
type Device struct {
	bus      RegisterBus
	addr     uint16
	channels Channels

	closeOnce sync.Once
	closeErr  error
}

// Open constructs a Device at addr on bus. An addr of 0 selects DefaultAddress.
func Open(bus *i2c.Bus, addr uint16) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("is31fl3236a: bus is nil")
	}
	if addr == 0 {
		addr = DefaultAddress
	}
	return New(bus.Dev(addr))
}

// New constructs a Device on an already addressed register bus and resets the
// chip into normal operation.
func New(bus RegisterBus) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("is31fl3236a: bus is nil")
	}
	d := &Device{bus: bus, addr: DefaultAddress}
	if a, ok := bus.(addresser); ok && a.Addr() != 0 {
		d.addr = a.Addr()
	}
	d.channels.dev = d

	if err := d.Reset(); err != nil {
		return nil, err
	}
	return d, nil
}

// Address is the 7-bit bus address of the chip.
func (d *Device) Address() uint16 { return d.addr }

// Channels returns the registry of the 36 channel handles.
func (d *Device) Channels() *Channels { return &d.channels }

// Reset soft-resets the chip and takes it out of shutdown. All PWM and LED
// control registers return to their power-on value (0).
func (d *Device) Reset() error {
	if err := d.writeReg(regReset, resetCmd); err != nil {
		return err
	}
	return d.writeReg(regShutdown, shutdownActive)
}

// Close resets the chip. Only the first call touches the bus; later calls
// return the first result.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.Reset()
	})
	return d.closeErr
}

// Frequency reports the PWM output frequency in Hz.
func (d *Device) Frequency() (int, error) {
	v, err := d.readReg(regFrequency)
	if err != nil {
		return 0, err
	}
	// Only 0x00 selects 3 kHz; any other value reads as 22 kHz.
	if v == freqSel3kHz {
		return Freq3kHz, nil
	}
	return Freq22kHz, nil
}

// SetFrequency selects the PWM output frequency for all channels. hz must be
// Freq3kHz or Freq22kHz.
func (d *Device) SetFrequency(hz int) error {
	var sel byte
	switch hz {
	case Freq3kHz:
		sel = freqSel3kHz
	case Freq22kHz:
		sel = freqSel22kHz
	default:
		return fmt.Errorf("%w: frequency %d Hz (want %d or %d)", ErrInvalidArgument, hz, Freq3kHz, Freq22kHz)
	}
	return d.writeReg(regFrequency, sel)
}

func (d *Device) readReg(reg byte) (byte, error) {
	v, err := d.bus.ReadRegU8(reg)
	if err != nil {
		return 0, fmt.Errorf("%w: read reg 0x%02X: %w", ErrBus, reg, err)
	}
	return v, nil
}

func (d *Device) writeReg(reg, value byte) error {
	if err := d.bus.WriteReg(reg, value); err != nil {
		return fmt.Errorf("%w: write reg 0x%02X=0x%02X: %w", ErrBus, reg, value, err)
	}
	return nil
}

// readArray and writeArray address element i of a NumChannels-long register
// block starting at base. Callers validate i.
func (d *Device) readArray(base byte, i int) (byte, error) {
	return d.readReg(base + byte(i))
}

func (d *Device) writeArray(base byte, i int, value byte) error {
	return d.writeReg(base+byte(i), value)
}
