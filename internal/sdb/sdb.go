// Package sdb drives the IS31FL3236A SDB (hardware shutdown) input from a
// GPIO line. SDB low holds the chip in shutdown regardless of its registers.
package sdb

import (
	"fmt"
	"strconv"
	"strings"
)

// Pin is what the LED service needs from the SDB line.
type Pin interface {
	Enable() error
	Shutdown() error
	Close() error
}

// parseLine splits a line spec into a numeric offset or a line name.
// "17" is offset 17, "GPIO17" is looked up by name.
func parseLine(spec string) (offset int, name string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, "", fmt.Errorf("sdb: line is empty")
	}
	if n, err := strconv.Atoi(spec); err == nil {
		if n < 0 {
			return 0, "", fmt.Errorf("sdb: invalid line offset %d", n)
		}
		return n, "", nil
	}
	return -1, spec, nil
}
