package sensor

import (
	"fmt"

	"github.com/sweeney/dust-collector/internal/gpio"
)

// ContactReader senses machines through digital current-switch contacts on
// GPIO lines. A closed contact reads 1.0, open reads 0.0 — pair it with
// thresholds straddling 0.5.
type ContactReader struct {
	machines []string
	inputs   []gpio.Input
}

// NewContactReader binds machine names to their input lines, in order.
func NewContactReader(machines []string, inputs []gpio.Input) (*ContactReader, error) {
	if len(machines) != len(inputs) {
		return nil, fmt.Errorf("contact reader: %d machines but %d inputs", len(machines), len(inputs))
	}
	return &ContactReader{machines: machines, inputs: inputs}, nil
}

// Read samples every contact.
func (c *ContactReader) Read() ([]Reading, error) {
	out := make([]Reading, 0, len(c.machines))
	for i, name := range c.machines {
		on, err := c.inputs[i].Value()
		if err != nil {
			return nil, fmt.Errorf("contact %s: %w", name, err)
		}
		v := 0.0
		if on {
			v = 1.0
		}
		out = append(out, Reading{Machine: name, Value: v})
	}
	return out, nil
}

// Close closes every line.
func (c *ContactReader) Close() error {
	var first error
	for _, in := range c.inputs {
		if err := in.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
