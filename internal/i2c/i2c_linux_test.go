//go:build linux

package i2c

import (
	"errors"
	"os"
	"testing"
)

func openNullBus(t *testing.T) *Bus {
	t.Helper()
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile /dev/null: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return &Bus{f: f, path: "/dev/null"}
}

func TestDevTx_InvalidAddr(t *testing.T) {
	b := openNullBus(t)

	for _, addr := range []uint16{0, 0x80} {
		d := b.Dev(addr)
		err := d.WriteReg(0x00, 0x01)
		if !errors.Is(err, ErrInvalidAddr) {
			t.Fatalf("addr=0x%X err=%v want ErrInvalidAddr", addr, err)
		}
	}
}

func TestDevTx_EmptyIsNoop(t *testing.T) {
	b := openNullBus(t)
	d := b.Dev(0x3C)

	n, err := d.tx(nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if n != 0 {
		t.Fatalf("n=%d want 0", n)
	}
}

func TestDevTx_ClosedBus(t *testing.T) {
	b := openNullBus(t)
	d := b.Dev(0x3C)
	b.f = nil

	if _, err := d.ReadRegU8(0x4B); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("err=%v want ErrNoDevice", err)
	}
}

func TestBusDev_Addr(t *testing.T) {
	b := openNullBus(t)
	if got := b.Dev(0x3F).Addr(); got != 0x3F {
		t.Fatalf("addr=0x%X want 0x3F", got)
	}
	if got := b.Path(); got != "/dev/null" {
		t.Fatalf("path=%q want /dev/null", got)
	}

	var nilBus *Bus
	if nilBus.Dev(0x3C) != nil {
		t.Fatalf("nil bus should return nil dev")
	}
}
