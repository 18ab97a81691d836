package i2c

import "errors"

var (
	// ErrNoDevice is returned by transfers on a nil Dev or a closed Bus.
	ErrNoDevice = errors.New("i2c device is nil")

	// ErrInvalidAddr is returned for addresses outside the 7-bit range.
	ErrInvalidAddr = errors.New("invalid i2c addr")

	ErrUnsupported = errors.New("i2c: unsupported OS (need linux)")
)
