//go:build !linux

package gpio

import "errors"

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(pin int, activeHigh bool) (Output, error) {
	return nil, errors.New("gpio: not supported")
}

// Input is not implemented on non-Linux platforms.
func (c *Chip) Input(pin int, activeLow bool) (Input, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
