//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip owns the GPIO character device and every line requested through it.
type Chip struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// OpenChip opens the named GPIO chip (DefaultChip on a Raspberry Pi).
func OpenChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: c}, nil
}

// Output requests an output line, driven inactive initially.
func (c *Chip) Output(pin int, activeHigh bool) (Output, error) {
	initial := 0
	if !activeHigh {
		initial = 1
	}
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	c.lines = append(c.lines, line)
	return &realOutput{line: line, activeHigh: activeHigh}, nil
}

// Input requests an input line with pull-down, matching Pi boot defaults so
// behavior is consistent with external optocoupler modules.
func (c *Chip) Input(pin int, activeLow bool) (Input, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	c.lines = append(c.lines, line)
	return &realInput{line: line, activeLow: activeLow}, nil
}

// Close reconfigures every line to input with pull-down (Pi boot defaults)
// before closing, then releases the chip. This leaves outputs de-energized
// for the next boot.
func (c *Chip) Close() error {
	var errs []error
	for _, line := range c.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

type realOutput struct {
	line       *gpiocdev.Line
	activeHigh bool
}

func (o *realOutput) Set(on bool) error {
	v := 0
	if on == o.activeHigh {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	return nil
}

func (o *realOutput) Close() error { return nil } // owned by Chip

type realInput struct {
	line      *gpiocdev.Line
	activeLow bool
}

func (i *realInput) Value() (bool, error) {
	raw, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read input: %w", err)
	}
	on := raw != 0
	if i.activeLow {
		on = !on
	}
	return on, nil
}

func (i *realInput) Close() error { return nil } // owned by Chip
