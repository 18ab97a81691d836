package is31fl3236a

import (
	"errors"
	"testing"

	"is31ledd/internal/is31fl3236a/is31test"
)

func mustChannel(t *testing.T, dev *Device, index int) *Channel {
	t.Helper()
	ch, err := dev.Channels().Get(index)
	if err != nil {
		t.Fatalf("Get(%d): %v", index, err)
	}
	return ch
}

func TestChannels_GetCachesHandles(t *testing.T) {
	dev, bus := newTestDevice(t)
	cs := dev.Channels()

	if cs.Len() != NumChannels {
		t.Fatalf("len=%d want %d", cs.Len(), NumChannels)
	}
	for i := 0; i < cs.Len(); i++ {
		a := mustChannel(t, dev, i)
		b := mustChannel(t, dev, i)
		if a != b {
			t.Fatalf("index=%d returned different handles", i)
		}
		if a.Index() != i {
			t.Fatalf("index=%d Index()=%d", i, a.Index())
		}
	}
	if cs != dev.Channels() {
		t.Fatalf("Channels() returned a different registry")
	}
	checkWrites(t, bus)
	if reads := bus.ReadLog(); len(reads) != 0 {
		t.Fatalf("reads=%v want none", reads)
	}
}

func TestChannels_GetOutOfRange(t *testing.T) {
	dev, _ := newTestDevice(t)

	for _, idx := range []int{-1, NumChannels, 100} {
		ch, err := dev.Channels().Get(idx)
		if !errors.Is(err, ErrIndex) {
			t.Fatalf("index=%d err=%v want ErrIndex", idx, err)
		}
		if ch != nil {
			t.Fatalf("index=%d returned a handle", idx)
		}
	}
}

func TestSetDutyCycle_WriteOrder(t *testing.T) {
	dev, bus := newTestDevice(t)
	ch := mustChannel(t, dev, 5)

	if err := ch.SetDutyCycle(0x8000); err != nil {
		t.Fatalf("SetDutyCycle: %v", err)
	}
	checkWrites(t, bus,
		is31test.Write{Reg: regPWMBase + 5, Val: 0x80},
		is31test.Write{Reg: regLEDCtrlBase + 5, Val: 0x01},
		is31test.Write{Reg: regUpdate, Val: 0x00},
	)

	bus.ClearLog()
	if err := ch.SetDutyCycle(0); err != nil {
		t.Fatalf("SetDutyCycle(0): %v", err)
	}
	checkWrites(t, bus,
		is31test.Write{Reg: regLEDCtrlBase + 5, Val: 0x00},
		is31test.Write{Reg: regUpdate, Val: 0x00},
	)
	// The PWM register keeps the last duty.
	if got := bus.Reg(regPWMBase + 5); got != 0x80 {
		t.Fatalf("pwm=0x%02X want 0x80", got)
	}
}

func TestSetDutyCycle_RegisterAddresses(t *testing.T) {
	dev, bus := newTestDevice(t)

	if err := mustChannel(t, dev, 0).SetDutyCycle(0x0100); err != nil {
		t.Fatalf("ch0: %v", err)
	}
	if err := mustChannel(t, dev, NumChannels-1).SetDutyCycle(0xFFFF); err != nil {
		t.Fatalf("ch35: %v", err)
	}

	for reg, want := range map[byte]byte{0x01: 0x01, 0x26: 0x01, 0x24: 0xFF, 0x49: 0x01} {
		if got := bus.Reg(reg); got != want {
			t.Fatalf("reg 0x%02X=0x%02X want 0x%02X", reg, got, want)
		}
	}
}

func TestSetDutyCycle_RoundTripsHighByte(t *testing.T) {
	dev, bus := newTestDevice(t)
	ch := mustChannel(t, dev, 17)

	for d := 0; d <= MaxDutyCycle; d++ {
		if err := ch.SetDutyCycle(d); err != nil {
			t.Fatalf("duty=0x%04X err=%v", d, err)
		}
		got, err := ch.DutyCycle()
		if err != nil {
			t.Fatalf("duty=0x%04X readback err=%v", d, err)
		}
		if d == 0 {
			// Off keeps the previous PWM value.
			if bus.Reg(regLEDCtrlBase+17) != 0x00 {
				t.Fatalf("duty=0 enable=0x%02X want 0x00", bus.Reg(regLEDCtrlBase+17))
			}
			continue
		}
		if got != uint16(d&0xFF00) {
			t.Fatalf("duty=0x%04X readback=0x%04X want 0x%04X", d, got, d&0xFF00)
		}
		if bus.Reg(regLEDCtrlBase+17) != 0x01 {
			t.Fatalf("duty=0x%04X enable=0x%02X want 0x01", d, bus.Reg(regLEDCtrlBase+17))
		}
	}
}

func TestSetDutyCycle_ZeroFromReset(t *testing.T) {
	dev, _ := newTestDevice(t)
	ch := mustChannel(t, dev, 2)

	if err := ch.SetDutyCycle(0); err != nil {
		t.Fatalf("SetDutyCycle(0): %v", err)
	}
	got, err := ch.DutyCycle()
	if err != nil || got != 0 {
		t.Fatalf("duty=0x%04X err=%v want 0", got, err)
	}
	on, err := ch.Enabled()
	if err != nil || on {
		t.Fatalf("enabled=%v err=%v want false", on, err)
	}
}

func TestSetDutyCycle_OutOfRangeWritesNothing(t *testing.T) {
	dev, bus := newTestDevice(t)
	ch := mustChannel(t, dev, 0)

	for _, v := range []int{-1, 0x10000, 1 << 20} {
		if err := ch.SetDutyCycle(v); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("value=%d err=%v want ErrOutOfRange", v, err)
		}
	}
	checkWrites(t, bus)
}

func TestSetDutyCycle_BusErrorStopsSequence(t *testing.T) {
	dev, bus := newTestDevice(t)
	ch := mustChannel(t, dev, 9)
	bus.FailWrites(regLEDCtrlBase+9, nil)

	if err := ch.SetDutyCycle(0x4000); !errors.Is(err, ErrBus) {
		t.Fatalf("err=%v want ErrBus", err)
	}
	checkWrites(t, bus, is31test.Write{Reg: regPWMBase + 9, Val: 0x40})
}

func TestChannel_Frequency(t *testing.T) {
	dev, bus := newTestDevice(t)
	ch := mustChannel(t, dev, 30)

	if err := dev.SetFrequency(Freq3kHz); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	hz, err := ch.Frequency()
	if err != nil || hz != Freq3kHz {
		t.Fatalf("hz=%d err=%v want %d", hz, err, Freq3kHz)
	}

	bus.ClearLog()
	for _, hz := range []int{Freq3kHz, Freq22kHz, 0, -5} {
		if err := ch.SetFrequency(hz); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("hz=%d err=%v want ErrUnsupported", hz, err)
		}
	}
	checkWrites(t, bus)
}
