//go:build !linux

package sdb

import "fmt"

type Line struct{}

func Open(chipPath, lineSpec string) (*Line, error) {
	return nil, fmt.Errorf("sdb: gpio unsupported on this platform")
}

func (l *Line) Enable() error   { return fmt.Errorf("sdb: gpio unsupported") }
func (l *Line) Shutdown() error { return fmt.Errorf("sdb: gpio unsupported") }
func (l *Line) Close() error    { return nil }
