package i2c

import (
	"fmt"
	"sync"
)

// FakeBus is a test double that models byte-wide devices and 16-bit register
// devices as in-memory maps. Safe for concurrent use, like the real bus.
type FakeBus struct {
	mu sync.Mutex

	// Bytes holds the current data byte per byte-wide device address.
	Bytes map[uint16]byte

	// Words holds 16-bit registers keyed by address then register.
	Words map[uint16]map[byte]uint16

	// Writes records every byte written, in order, per address.
	Writes map[uint16][]byte

	// FailWrites makes the next N byte writes fail (transient-error testing).
	FailWrites int

	// WriteErr, if set, is returned by every byte write (permanent failure).
	WriteErr error

	Closed bool
}

// NewFakeBus creates an empty fake bus.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		Bytes:  make(map[uint16]byte),
		Words:  make(map[uint16]map[byte]uint16),
		Writes: make(map[uint16][]byte),
	}
}

// ReadByte returns the current data byte of the addressed device.
func (f *FakeBus) ReadByte(addr uint16) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Bytes[addr], nil
}

// WriteByte stores the data byte and records the write.
func (f *FakeBus) WriteByte(addr uint16, v byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	if f.FailWrites > 0 {
		f.FailWrites--
		return fmt.Errorf("fake i2c: injected write failure at 0x%02x", addr)
	}
	f.Bytes[addr] = v
	f.Writes[addr] = append(f.Writes[addr], v)
	return nil
}

// ReadWordReg returns a scripted 16-bit register value.
func (f *FakeBus) ReadWordReg(addr uint16, reg byte) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Words[addr][reg], nil
}

// WriteWordReg stores a 16-bit register value.
func (f *FakeBus) WriteWordReg(addr uint16, reg byte, v uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Words[addr] == nil {
		f.Words[addr] = make(map[byte]uint16)
	}
	f.Words[addr][reg] = v
	return nil
}

// SetWord scripts a register value for subsequent reads (e.g. an ADC
// conversion result).
func (f *FakeBus) SetWord(addr uint16, reg byte, v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Words[addr] == nil {
		f.Words[addr] = make(map[byte]uint16)
	}
	f.Words[addr][reg] = v
}

// WriteLog returns a copy of the byte writes seen by the addressed device.
func (f *FakeBus) WriteLog(addr uint16) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.Writes[addr]))
	copy(out, f.Writes[addr])
	return out
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
