// Package is31fl3236a drives the ISSI IS31FL3236A, a 36-channel 8-bit PWM LED
// driver on I2C.
//
// A Device owns the chip-wide state: the shutdown and reset sequence and the
// single PWM output frequency shared by every channel. Each output is exposed
// as a Channel obtained from Device.Channels; channels are created on first
// use and cached for the lifetime of the Device.
//
// Duty cycles are 16-bit logical values. Only the high byte reaches the chip,
// so a readback always has a zero low byte.
//
// A Device is not safe for concurrent use. Writing a duty cycle takes three
// register writes that must not interleave with another caller's.
//
//	dev, err := is31fl3236a.Open(bus, is31fl3236a.DefaultAddress)
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	ch, _ := dev.Channels().Get(4)
//	_ = ch.SetDutyCycle(0x8000)
package is31fl3236a
