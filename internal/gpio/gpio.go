// Package gpio provides GPIO line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Input reads a single logical input line (limit switch, current switch).
type Input interface {
	// Value returns the logical state of the line (polarity already applied).
	Value() (bool, error)

	// Close releases the line.
	Close() error
}

// Output drives a single logical output line (collector SSR, LED strip).
type Output interface {
	// Set drives the line to the logical state (polarity already applied).
	Set(on bool) error

	// Close releases the line.
	Close() error
}

// Pin defaults (BCM numbering) for the workshop wiring.
const (
	DefaultPinCollectorSSR = 25 // solid-state relay for the collector motor
	DefaultPinLEDStrip     = 5  // LED strip enable, follows the collector
)

// DefaultChip is the GPIO chip device name on a Raspberry Pi.
const DefaultChip = "gpiochip0"
