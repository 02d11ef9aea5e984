//go:build linux

package i2c

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl request from linux/i2c-dev.h.
const i2cSlave = 0x0703

// RealBus is a Linux /dev/i2c-N bus. One file descriptor carries every
// device on the bus, so each transfer sets the slave address first and the
// whole select-and-transfer pair runs under one lock.
type RealBus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16 // last slave address selected
}

// Open opens the numbered I2C bus (e.g. 1 for /dev/i2c-1).
func Open(busNum int) (*RealBus, error) {
	path := fmt.Sprintf("/dev/i2c-%d", busNum)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &RealBus{f: f, addr: 0xFFFF}, nil
}

func (b *RealBus) selectSlave(addr uint16) error {
	if addr == b.addr {
		return nil
	}
	if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("select slave 0x%02x: %w", addr, err)
	}
	b.addr = addr
	return nil
}

// ReadByte reads the single data byte of a byte-wide device.
func (b *RealBus) ReadByte(addr uint16) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selectSlave(addr); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if _, err := b.f.Read(buf); err != nil {
		return 0, fmt.Errorf("read byte 0x%02x: %w", addr, err)
	}
	return buf[0], nil
}

// WriteByte writes the single data byte of a byte-wide device.
func (b *RealBus) WriteByte(addr uint16, v byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selectSlave(addr); err != nil {
		return err
	}
	if _, err := b.f.Write([]byte{v}); err != nil {
		return fmt.Errorf("write byte 0x%02x: %w", addr, err)
	}
	return nil
}

// ReadWordReg reads a big-endian 16-bit register.
func (b *RealBus) ReadWordReg(addr uint16, reg byte) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selectSlave(addr); err != nil {
		return 0, err
	}
	if _, err := b.f.Write([]byte{reg}); err != nil {
		return 0, fmt.Errorf("select reg 0x%02x/0x%02x: %w", addr, reg, err)
	}
	buf := make([]byte, 2)
	if _, err := b.f.Read(buf); err != nil {
		return 0, fmt.Errorf("read reg 0x%02x/0x%02x: %w", addr, reg, err)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// WriteWordReg writes a big-endian 16-bit register.
func (b *RealBus) WriteWordReg(addr uint16, reg byte, v uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selectSlave(addr); err != nil {
		return err
	}
	if _, err := b.f.Write([]byte{reg, byte(v >> 8), byte(v)}); err != nil {
		return fmt.Errorf("write reg 0x%02x/0x%02x: %w", addr, reg, err)
	}
	return nil
}

// Close releases the bus file descriptor.
func (b *RealBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}
