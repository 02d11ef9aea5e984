package config

import (
	"time"

	"github.com/sweeney/dust-collector/internal/gpio"
	"github.com/sweeney/dust-collector/internal/i2c"
)

// Defaults matching the reference panel wiring.
const (
	DefaultPoll      = 100 * time.Millisecond
	DefaultHeartbeat = 15 * time.Minute

	DefaultOnDwell  = 300 * time.Millisecond
	DefaultOffDwell = 900 * time.Millisecond

	DefaultDeadTime  = 200 * time.Millisecond
	DefaultActuation = 6 * time.Second
	DefaultTimeout   = 7 * time.Second
)

func (c *Config) applyDefaults() {
	if c.I2C.Bus == 0 {
		c.I2C.Bus = 1
	}
	if c.I2C.LEDAddr == 0 {
		c.I2C.LEDAddr = i2c.DefaultLEDAddr
	}
	if c.I2C.RelayAddr == 0 {
		c.I2C.RelayAddr = i2c.DefaultRelayAddr
	}
	if c.I2C.ADCAddr == 0 {
		c.I2C.ADCAddr = i2c.DefaultADCAddr
	}
	if c.GPIOChip == "" {
		c.GPIOChip = gpio.DefaultChip
	}
	if c.Poll == 0 {
		c.Poll = Duration(DefaultPoll)
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = Duration(DefaultHeartbeat)
	}
	if c.Collector.SSRPin == 0 {
		c.Collector.SSRPin = gpio.DefaultPinCollectorSSR
	}
	if c.Collector.StripPin == 0 {
		c.Collector.StripPin = gpio.DefaultPinLEDStrip
	}

	for i := range c.Machines {
		m := &c.Machines[i]
		if m.Source == "" {
			m.Source = "adc"
		}
		if m.Source == "gpio" && m.OnThreshold == 0 && m.OffThreshold == 0 {
			// Contacts report 0 or 1; split the difference.
			m.OnThreshold = 0.5
			m.OffThreshold = 0.5
		}
		if m.OnDwell == 0 {
			m.OnDwell = Duration(DefaultOnDwell)
		}
		if m.OffDwell == 0 {
			m.OffDwell = Duration(DefaultOffDwell)
		}
		if m.Gate.Confirm == "" {
			m.Gate.Confirm = "timer"
		}
		if m.Gate.DeadTime == 0 {
			m.Gate.DeadTime = Duration(DefaultDeadTime)
		}
		if m.Gate.Actuation == 0 {
			m.Gate.Actuation = Duration(DefaultActuation)
		}
		if m.Gate.Timeout == 0 {
			m.Gate.Timeout = Duration(DefaultTimeout)
		}
	}
}
