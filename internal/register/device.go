// Package register owns the byte-wide I/O expanders (PCF8574) that drive the
// gate relays and status LEDs. A Device is the unit of locking: every access
// to any bit of the expander goes through one read-modify-write critical
// section, so concurrent writers (gates sharing an expander, LED pairs) can
// never corrupt each other's bits.
package register

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/dust-collector/internal/i2c"
)

// ErrOffline is returned once a device has exhausted its write retries.
// Owners must treat the hardware as gone: gates sharing the device fault.
var ErrOffline = errors.New("register: device offline")

// Retry policy for transient bus failures.
const (
	maxWriteAttempts = 3
	retryBackoff     = 10 * time.Millisecond
)

// Config describes one expander.
type Config struct {
	Name string
	Addr uint16

	// SafeByte is the documented safe-default raw byte: all actuation bits
	// inactive. Written at Init and restored at Close.
	SafeByte byte

	// ActiveLow is the output pin polarity: when true the expander drives
	// LOW to energize, so an asserted bit is raw 0.
	ActiveLow bool
}

// Bits is the in-flight view of the register inside an Update transform.
// Get/Set work in logical terms (asserted = energized) regardless of pin
// polarity; the raw byte is never exposed for external mutation.
type Bits struct {
	raw       byte
	activeLow bool
}

// Get reports whether the bit is asserted (energized).
func (b *Bits) Get(bit int) bool {
	high := b.raw&(1<<bit) != 0
	if b.activeLow {
		return !high
	}
	return high
}

// Set asserts or clears the bit.
func (b *Bits) Set(bit int, on bool) {
	high := on
	if b.activeLow {
		high = !on
	}
	if high {
		b.raw |= 1 << bit
	} else {
		b.raw &^= 1 << bit
	}
}

// Device serializes access to one expander. The shadow byte always equals the
// last value successfully written to the hardware.
type Device struct {
	bus i2c.Bus
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	shadow  byte
	offline bool

	// onOffline is invoked (outside the lock, at most once) when the device
	// goes offline so owners can fault their gates.
	onOffline func(error)
}

// New creates a Device. No hardware I/O happens until Init.
func New(bus i2c.Bus, cfg Config, log *slog.Logger) *Device {
	if log == nil {
		log = slog.Default()
	}
	return &Device{
		bus:    bus,
		cfg:    cfg,
		log:    log.With("device", cfg.Name, "addr", fmt.Sprintf("0x%02x", cfg.Addr)),
		shadow: cfg.SafeByte,
	}
}

// OnOffline registers the offline notification callback. Must be called
// before the device is shared between goroutines.
func (d *Device) OnOffline(fn func(error)) { d.onOffline = fn }

// Name returns the configured device name.
func (d *Device) Name() string { return d.cfg.Name }

// Init forces the expander to its safe-default byte. Callers must allow the
// documented settle delay before issuing the first command.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeLocked(d.cfg.SafeByte); err != nil {
		return fmt.Errorf("init %s: %w", d.cfg.Name, err)
	}
	d.log.Info("register init: safe byte written", "byte", fmt.Sprintf("0x%02x", d.cfg.SafeByte))
	return nil
}

// Update runs fn on the current register state and writes the result, all
// inside one critical section. fn returning an error aborts with no write.
// An unchanged byte produces no bus traffic. The lock spans only this single
// read-modify-write — never a timer wait — so unrelated writers sharing the
// device are held up for microseconds, not actuation times.
func (d *Device) Update(fn func(b *Bits) error) error {
	var notify func(error)
	var notifyErr error

	d.mu.Lock()
	if d.offline {
		d.mu.Unlock()
		return ErrOffline
	}
	bits := Bits{raw: d.shadow, activeLow: d.cfg.ActiveLow}
	if err := fn(&bits); err != nil {
		d.mu.Unlock()
		return err
	}
	var err error
	if bits.raw != d.shadow {
		err = d.writeLocked(bits.raw)
		if err != nil && d.offline && d.onOffline != nil {
			notify = d.onOffline
			notifyErr = err
		}
	}
	d.mu.Unlock()

	if notify != nil {
		notify(notifyErr)
	}
	return err
}

// SetBit asserts or clears a single bit.
func (d *Device) SetBit(bit int, on bool) error {
	return d.Update(func(b *Bits) error {
		b.Set(bit, on)
		return nil
	})
}

// ClearBits clears every given bit in one write.
func (d *Device) ClearBits(bits ...int) error {
	return d.Update(func(b *Bits) error {
		for _, bit := range bits {
			b.Set(bit, false)
		}
		return nil
	})
}

// Bit reports whether a bit is currently asserted in the shadow byte.
func (d *Device) Bit(bit int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return false, ErrOffline
	}
	b := Bits{raw: d.shadow, activeLow: d.cfg.ActiveLow}
	return b.Get(bit), nil
}

// Byte returns the shadow byte, for diagnostics only.
func (d *Device) Byte() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shadow
}

// Offline reports whether the device has been marked offline.
func (d *Device) Offline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offline
}

// Close restores the safe-default byte, best effort.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return ErrOffline
	}
	if d.shadow == d.cfg.SafeByte {
		return nil
	}
	if err := d.writeLocked(d.cfg.SafeByte); err != nil {
		return fmt.Errorf("restore safe byte on %s: %w", d.cfg.Name, err)
	}
	return nil
}

// writeLocked writes v to the hardware with bounded retries, updating the
// shadow only on success. Caller holds d.mu. Retry backoff is short enough
// (10/20ms) that holding the lock across it is cheaper than letting another
// writer interleave against a stale shadow.
func (d *Device) writeLocked(v byte) error {
	var err error
	backoff := retryBackoff
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = d.bus.WriteByte(d.cfg.Addr, v)
		if err == nil {
			d.shadow = v
			return nil
		}
		d.log.Warn("register write failed", "attempt", attempt, "error", err)
		if attempt < maxWriteAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	d.offline = true
	d.log.Error("register write retries exhausted, marking device offline", "error", err)
	return fmt.Errorf("%w: %v", ErrOffline, err)
}
