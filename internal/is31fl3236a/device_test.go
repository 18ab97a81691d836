package is31fl3236a

import (
	"errors"
	"reflect"
	"testing"

	"is31ledd/internal/is31fl3236a/is31test"
)

func newTestDevice(t *testing.T) (*Device, *is31test.Bus) {
	t.Helper()
	bus := &is31test.Bus{}
	dev, err := New(bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bus.ClearLog()
	return dev, bus
}

func checkWrites(t *testing.T, bus *is31test.Bus, want ...is31test.Write) {
	t.Helper()
	got := bus.WriteLog()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("writes=%v want %v", got, want)
	}
}

var resetWrites = []is31test.Write{
	{Reg: regReset, Val: 0x00},
	{Reg: regShutdown, Val: 0x01},
}

func TestNew_IssuesResetSequence(t *testing.T) {
	bus := &is31test.Bus{}
	dev, err := New(bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	checkWrites(t, bus, resetWrites...)
	if reads := bus.ReadLog(); len(reads) != 0 {
		t.Fatalf("reads=%v want none", reads)
	}
	if dev.Address() != DefaultAddress {
		t.Fatalf("addr=0x%02X want 0x%02X", dev.Address(), DefaultAddress)
	}
}

func TestNew_UsesBusAddress(t *testing.T) {
	dev, err := New(&is31test.Bus{Address: 0x3F})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dev.Address() != 0x3F {
		t.Fatalf("addr=0x%02X want 0x3F", dev.Address())
	}
}

func TestNew_NilBus(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("New(nil) expected error")
	}
	if _, err := Open(nil, 0); err == nil {
		t.Fatalf("Open(nil) expected error")
	}
}

func TestNew_BusErrorPropagates(t *testing.T) {
	bus := &is31test.Bus{}
	bus.FailWrites(regShutdown, nil)
	_, err := New(bus)
	if !errors.Is(err, ErrBus) || !errors.Is(err, is31test.ErrNACK) {
		t.Fatalf("err=%v want ErrBus wrapping ErrNACK", err)
	}
	// The reset write went out; nothing is retried.
	checkWrites(t, bus, is31test.Write{Reg: regReset, Val: 0x00})
}

func TestFrequency_RoundTrip(t *testing.T) {
	dev, bus := newTestDevice(t)

	for _, tc := range []struct {
		hz  int
		reg byte
	}{
		{Freq3kHz, 0x00},
		{Freq22kHz, 0x01},
		{Freq3kHz, 0x00},
	} {
		if err := dev.SetFrequency(tc.hz); err != nil {
			t.Fatalf("SetFrequency(%d): %v", tc.hz, err)
		}
		if got := bus.Reg(regFrequency); got != tc.reg {
			t.Fatalf("hz=%d reg=0x%02X want 0x%02X", tc.hz, got, tc.reg)
		}
		hz, err := dev.Frequency()
		if err != nil {
			t.Fatalf("Frequency: %v", err)
		}
		if hz != tc.hz {
			t.Fatalf("readback=%d want %d", hz, tc.hz)
		}
	}
}

func TestFrequency_AnyNonZeroReadsAs22kHz(t *testing.T) {
	dev, bus := newTestDevice(t)

	for _, v := range []byte{0x01, 0x02, 0x7F, 0xFF} {
		bus.SetReg(regFrequency, v)
		hz, err := dev.Frequency()
		if err != nil {
			t.Fatalf("reg=0x%02X err=%v", v, err)
		}
		if hz != Freq22kHz {
			t.Fatalf("reg=0x%02X hz=%d want %d", v, hz, Freq22kHz)
		}
	}
}

func TestSetFrequency_RejectsUnsupported(t *testing.T) {
	dev, bus := newTestDevice(t)
	if err := dev.SetFrequency(Freq22kHz); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	bus.ClearLog()

	for _, hz := range []int{0, -1, 9600, 3001, 220000} {
		if err := dev.SetFrequency(hz); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("hz=%d err=%v want ErrInvalidArgument", hz, err)
		}
	}
	checkWrites(t, bus)
	if got := bus.Reg(regFrequency); got != 0x01 {
		t.Fatalf("reg=0x%02X want 0x01 (unchanged)", got)
	}
}

func TestFrequency_ReadError(t *testing.T) {
	dev, bus := newTestDevice(t)
	bus.FailReads(regFrequency, nil)

	if _, err := dev.Frequency(); !errors.Is(err, ErrBus) {
		t.Fatalf("err=%v want ErrBus", err)
	}
}

func TestReset_Idempotent(t *testing.T) {
	dev, bus := newTestDevice(t)

	for i := 0; i < 2; i++ {
		if err := dev.Reset(); err != nil {
			t.Fatalf("Reset #%d: %v", i+1, err)
		}
	}
	checkWrites(t, bus, append(append([]is31test.Write(nil), resetWrites...), resetWrites...)...)
}

func TestClose_ResetsOnce(t *testing.T) {
	dev, bus := newTestDevice(t)

	for i := 0; i < 2; i++ {
		if err := dev.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
	checkWrites(t, bus, resetWrites...)
}

func TestClose_RunsAfterFailedCalls(t *testing.T) {
	bus := &is31test.Bus{}
	func() {
		dev, err := New(bus)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer dev.Close()
		bus.ClearLog()

		ch, err := dev.Channels().Get(3)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if err := ch.SetDutyCycle(-1); err == nil {
			t.Fatalf("SetDutyCycle(-1) expected error")
		}
		if err := dev.SetFrequency(1); err == nil {
			t.Fatalf("SetFrequency(1) expected error")
		}
	}()

	checkWrites(t, bus, resetWrites...)
}
