//go:build !linux

package i2c

type Bus struct{}

type Dev struct{ addr uint16 }

func Open(path string) (*Bus, error) { return nil, ErrUnsupported }

func (b *Bus) Path() string { return "" }

func (b *Bus) Close() error { return nil }

func (b *Bus) Dev(addr uint16) *Dev { return nil }

func (d *Dev) Addr() uint16 {
	if d == nil {
		return 0
	}
	return d.addr
}

func (d *Dev) Write(p []byte) error               { return ErrUnsupported }
func (d *Dev) Read(p []byte) error                { return ErrUnsupported }
func (d *Dev) WriteRead(w, r []byte) error        { return ErrUnsupported }
func (d *Dev) ReadReg(reg byte, dst []byte) error { return ErrUnsupported }
func (d *Dev) ReadRegU8(reg byte) (byte, error)   { return 0, ErrUnsupported }
func (d *Dev) WriteReg(reg, value byte) error     { return ErrUnsupported }
