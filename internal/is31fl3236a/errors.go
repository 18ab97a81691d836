package is31fl3236a

import "errors"

// Errors returned by the driver. Test with errors.Is; bus failures also wrap
// the transport error.
var (
	ErrBus             = errors.New("is31fl3236a: bus error")
	ErrInvalidArgument = errors.New("is31fl3236a: invalid argument")
	ErrOutOfRange      = errors.New("is31fl3236a: out of range")
	ErrIndex           = errors.New("is31fl3236a: channel index out of range")
	ErrUnsupported     = errors.New("is31fl3236a: unsupported")
)
