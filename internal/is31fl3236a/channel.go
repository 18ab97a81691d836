package is31fl3236a

import "fmt"

// Channel is one PWM output. It holds no register state of its own; every
// call goes to the owning Device.
type Channel struct {
	dev   *Device
	index int
}

// Index is the channel number, 0..NumChannels-1.
func (c *Channel) Index() int { return c.index }

// Frequency reports the device-wide PWM frequency.
func (c *Channel) Frequency() (int, error) { return c.dev.Frequency() }

// SetFrequency always fails: the frequency is shared by all channels and can
// only be changed on the Device.
func (c *Channel) SetFrequency(int) error {
	return fmt.Errorf("%w: frequency cannot be set on individual channels", ErrUnsupported)
}

// DutyCycle returns the 16-bit duty cycle. The low byte is always zero.
func (c *Channel) DutyCycle() (uint16, error) {
	v, err := c.dev.readArray(regPWMBase, c.index)
	if err != nil {
		return 0, err
	}
	return uint16(v) << 8, nil
}

// Enabled reports whether the channel's LED control register is on.
func (c *Channel) Enabled() (bool, error) {
	v, err := c.dev.readArray(regLEDCtrlBase, c.index)
	if err != nil {
		return false, err
	}
	return v != ledOff, nil
}

// SetDutyCycle sets the duty cycle, 0..MaxDutyCycle. Zero switches the
// output off and leaves its PWM register untouched; any other value writes the
// high byte to the PWM register and switches the output on. Both paths end with
// the update register write that latches pending values on all channels.
func (c *Channel) SetDutyCycle(value int) error {
	if value < 0 || value > MaxDutyCycle {
		return fmt.Errorf("%w: duty cycle %d (want 0..0x%X)", ErrOutOfRange, value, MaxDutyCycle)
	}

	// PWM before LED control, latch last.
	if value == 0 {
		if err := c.dev.writeArray(regLEDCtrlBase, c.index, ledOff); err != nil {
			return err
		}
	} else {
		if err := c.dev.writeArray(regPWMBase, c.index, byte(value>>8)); err != nil {
			return err
		}
		if err := c.dev.writeArray(regLEDCtrlBase, c.index, ledOn); err != nil {
			return err
		}
	}
	return c.dev.writeReg(regUpdate, updateLatch)
}

// Channels is the fixed-size, lazily populated set of Channel handles of one
// Device.
type Channels struct {
	dev   *Device
	slots [NumChannels]*Channel
}

// Len is always NumChannels.
func (cs *Channels) Len() int { return NumChannels }

// Get returns the handle for index. Repeated calls with the same index return
// the same *Channel.
func (cs *Channels) Get(index int) (*Channel, error) {
	if index < 0 || index >= NumChannels {
		return nil, fmt.Errorf("%w: %d (want 0..%d)", ErrIndex, index, NumChannels-1)
	}
	if cs.slots[index] == nil {
		cs.slots[index] = &Channel{dev: cs.dev, index: index}
	}
	return cs.slots[index], nil
}
