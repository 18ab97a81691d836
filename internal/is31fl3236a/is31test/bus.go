// Package is31test provides an in-memory IS31FL3236A register file for tests.
package is31test

import (
	"errors"
	"sync"
)

// ErrNACK is the default injected transport failure.
var ErrNACK = errors.New("is31test: nack")

// Write is one recorded register write.
type Write struct {
	Reg byte
	Val byte
}

// Bus implements is31fl3236a.RegisterBus over a 256-byte register file and
// records every write in order. Fields may be set before use; after that use
// the methods.
type Bus struct {
	mu sync.Mutex

	Regs    [256]byte
	Address uint16

	FailWrite map[byte]error
	FailRead  map[byte]error

	writes []Write
	reads  []byte
}

func (b *Bus) ReadRegU8(reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = append(b.reads, reg)
	if err := b.FailRead[reg]; err != nil {
		return 0, err
	}
	return b.Regs[reg], nil
}

func (b *Bus) WriteReg(reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailWrite[reg]; err != nil {
		return err
	}
	b.writes = append(b.writes, Write{Reg: reg, Val: value})
	b.Regs[reg] = value
	return nil
}

func (b *Bus) Addr() uint16 { return b.Address }

// Reg returns the current value of reg.
func (b *Bus) Reg(reg byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Regs[reg]
}

// SetReg sets reg without recording a write.
func (b *Bus) SetReg(reg, value byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Regs[reg] = value
}

// WriteLog returns the writes recorded since the last ClearLog.
func (b *Bus) WriteLog() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Write(nil), b.writes...)
}

// ReadLog returns the registers read since the last ClearLog.
func (b *Bus) ReadLog() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.reads...)
}

func (b *Bus) ClearLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = nil
	b.reads = nil
}

// FailWrites makes every write to reg fail with err (ErrNACK when nil).
func (b *Bus) FailWrites(reg byte, err error) {
	if err == nil {
		err = ErrNACK
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrite == nil {
		b.FailWrite = make(map[byte]error)
	}
	b.FailWrite[reg] = err
}

// FailReads makes every read of reg fail with err (ErrNACK when nil).
func (b *Bus) FailReads(reg byte, err error) {
	if err == nil {
		err = ErrNACK
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailRead == nil {
		b.FailRead = make(map[byte]error)
	}
	b.FailRead[reg] = err
}
