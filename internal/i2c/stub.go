//go:build !linux

package i2c

import "errors"

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// Open returns an error on non-Linux platforms.
func Open(busNum int) (*RealBus, error) {
	return nil, errors.New("i2c: not supported on this platform (requires Linux)")
}

// ReadByte is not implemented on non-Linux platforms.
func (b *RealBus) ReadByte(addr uint16) (byte, error) {
	return 0, errors.New("i2c: not supported")
}

// WriteByte is not implemented on non-Linux platforms.
func (b *RealBus) WriteByte(addr uint16, v byte) error {
	return errors.New("i2c: not supported")
}

// ReadWordReg is not implemented on non-Linux platforms.
func (b *RealBus) ReadWordReg(addr uint16, reg byte) (uint16, error) {
	return 0, errors.New("i2c: not supported")
}

// WriteWordReg is not implemented on non-Linux platforms.
func (b *RealBus) WriteWordReg(addr uint16, reg byte, v uint16) error {
	return errors.New("i2c: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error {
	return nil
}
