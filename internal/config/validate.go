package config

import "fmt"

// Validate checks the configuration for wiring mistakes that would be
// dangerous at runtime: duplicate relay bits, inverted thresholds, gates that
// could never confirm.
func (c *Config) Validate() error {
	if len(c.Machines) == 0 {
		return fmt.Errorf("no machines configured")
	}

	names := make(map[string]bool)
	relayBits := make(map[int]string)
	ledBits := make(map[int]string)
	adcChannels := make(map[int]string)

	for _, m := range c.Machines {
		if m.Name == "" {
			return fmt.Errorf("machine with empty name")
		}
		if names[m.Name] {
			return fmt.Errorf("machine %q: duplicate name", m.Name)
		}
		names[m.Name] = true

		switch m.Source {
		case "adc":
			if m.Channel < 0 || m.Channel > 3 {
				return fmt.Errorf("machine %q: adc channel %d out of range 0-3", m.Name, m.Channel)
			}
			if prev, dup := adcChannels[m.Channel]; dup {
				return fmt.Errorf("machine %q: adc channel %d already used by %q", m.Name, m.Channel, prev)
			}
			adcChannels[m.Channel] = m.Name
			if m.OnThreshold <= m.OffThreshold {
				return fmt.Errorf("machine %q: on threshold %v must exceed off threshold %v",
					m.Name, m.OnThreshold, m.OffThreshold)
			}
		case "gpio":
			// Contact inputs report 0/1, thresholds come from defaults.
		default:
			return fmt.Errorf("machine %q: unknown source %q (want adc or gpio)", m.Name, m.Source)
		}

		g := m.Gate
		if g.OpenBit < 0 || g.OpenBit > 7 || g.CloseBit < 0 || g.CloseBit > 7 {
			return fmt.Errorf("machine %q: gate bits must be 0-7", m.Name)
		}
		if g.OpenBit == g.CloseBit {
			return fmt.Errorf("machine %q: gate open and close bits are both %d", m.Name, g.OpenBit)
		}
		for bit, dir := range map[int]string{g.OpenBit: "open", g.CloseBit: "close"} {
			if prev, dup := relayBits[bit]; dup {
				return fmt.Errorf("machine %q: %s bit %d already used by %s", m.Name, dir, bit, prev)
			}
			relayBits[bit] = fmt.Sprintf("%s/%s", m.Name, dir)
		}

		for _, led := range []int{g.GreenLED, g.RedLED} {
			if led == -1 {
				continue
			}
			if led < 0 || led > 7 {
				return fmt.Errorf("machine %q: led bit %d out of range 0-7", m.Name, led)
			}
			if prev, dup := ledBits[led]; dup {
				return fmt.Errorf("machine %q: led bit %d already used by %q", m.Name, led, prev)
			}
			ledBits[led] = m.Name
		}

		switch g.Confirm {
		case "timer":
			if g.Actuation.Std() <= 0 {
				return fmt.Errorf("machine %q: timer confirmation needs a positive actuation time", m.Name)
			}
		case "switch":
			if g.SwitchOpenPin <= 0 || g.SwitchClosePin <= 0 {
				return fmt.Errorf("machine %q: switch confirmation needs switch_open_pin and switch_close_pin", m.Name)
			}
		default:
			return fmt.Errorf("machine %q: unknown confirm mode %q (want timer or switch)", m.Name, g.Confirm)
		}

		if g.Timeout.Std() <= g.DeadTime.Std() {
			return fmt.Errorf("machine %q: gate timeout %v must exceed dead time %v",
				m.Name, g.Timeout.Std(), g.DeadTime.Std())
		}
	}

	if c.Collector.LampBit != -1 {
		if c.Collector.LampBit < 0 || c.Collector.LampBit > 7 {
			return fmt.Errorf("collector lamp bit %d out of range 0-7", c.Collector.LampBit)
		}
		if prev, dup := ledBits[c.Collector.LampBit]; dup {
			return fmt.Errorf("collector lamp bit %d already used by %q", c.Collector.LampBit, prev)
		}
	}

	if c.Poll.Std() <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}
