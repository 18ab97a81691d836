//go:build linux

package sdb

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "is31ledd-sdb"

// Line is an SDB output requested from a GPIO character device.
type Line struct {
	mu   sync.Mutex
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// Open requests lineSpec on chipPath as an output, initially low (shutdown).
func Open(chipPath, lineSpec string) (*Line, error) {
	offset, name, err := parseLine(lineSpec)
	if err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("sdb: open %s: %w", chipPath, err)
	}
	if name != "" {
		offset, err = chip.FindLine(name)
		if err != nil {
			_ = chip.Close()
			return nil, fmt.Errorf("sdb: line %q not found on %s: %w", name, chipPath, err)
		}
	}
	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("sdb: request line %d on %s: %w", offset, chipPath, err)
	}
	return &Line{chip: chip, line: line}, nil
}

func (l *Line) set(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return fmt.Errorf("sdb: line closed")
	}
	return l.line.SetValue(v)
}

// Enable drives SDB high so the chip follows its shutdown register.
func (l *Line) Enable() error { return l.set(1) }

// Shutdown drives SDB low.
func (l *Line) Shutdown() error { return l.set(0) }

// Close drives SDB low and releases the line.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return nil
	}
	_ = l.line.SetValue(0)
	err := l.line.Close()
	l.line = nil
	if l.chip != nil {
		_ = l.chip.Close()
		l.chip = nil
	}
	return err
}
