// Package config loads the dust-collector daemon configuration from a YAML
// file, with optional overrides from the environment (a .env file is honored
// when present). Wiring details — I2C addresses, relay bits, sensor channels —
// live here so the same binary runs on every shop's panel.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to accept "300ms" style YAML values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// I2C describes the I2C bus and the expanders hanging off it.
type I2C struct {
	Bus            int    `yaml:"bus"`
	LEDAddr        uint16 `yaml:"led_addr"`
	RelayAddr      uint16 `yaml:"relay_addr"`
	ADCAddr        uint16 `yaml:"adc_addr"`
	LEDActiveLow   bool   `yaml:"led_active_low"`
	RelayActiveLow bool   `yaml:"relay_active_low"`
}

// Machine describes one watched machine: its current (or contact) source and
// the blast gate serving its drop.
type Machine struct {
	Name string `yaml:"name"`

	// Source is "adc" (current sensor on an ADS1115 channel) or "gpio"
	// (dry contact on a GPIO pin).
	Source  string `yaml:"source"`
	Channel int    `yaml:"channel"`
	Pin     int    `yaml:"pin"`

	OnThreshold  float64  `yaml:"on_threshold"`
	OffThreshold float64  `yaml:"off_threshold"`
	OnDwell      Duration `yaml:"on_dwell"`
	OffDwell     Duration `yaml:"off_dwell"`

	Gate Gate `yaml:"gate"`
}

// Gate describes the H-bridge bits and indicators for one blast gate.
type Gate struct {
	OpenBit  int `yaml:"open_bit"`
	CloseBit int `yaml:"close_bit"`

	// GreenLED/RedLED are bits on the LED expander; -1 disables.
	GreenLED int `yaml:"green_led"`
	RedLED   int `yaml:"red_led"`

	// Confirm is "timer" (fixed actuation time) or "switch" (limit
	// switches on the two pins below).
	Confirm        string `yaml:"confirm"`
	SwitchOpenPin  int    `yaml:"switch_open_pin"`
	SwitchClosePin int    `yaml:"switch_close_pin"`

	DeadTime  Duration `yaml:"dead_time"`
	Actuation Duration `yaml:"actuation"`
	Timeout   Duration `yaml:"timeout"`
}

// UnmarshalYAML implements yaml.Unmarshaler. LED bits default to -1
// (disabled) rather than 0, since bit 0 is a valid LED position.
func (g *Gate) UnmarshalYAML(value *yaml.Node) error {
	type rawGate Gate
	raw := rawGate{GreenLED: -1, RedLED: -1}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*g = Gate(raw)
	return nil
}

// Collector describes the dust collector relay and its run lamp.
type Collector struct {
	SSRPin     int  `yaml:"ssr_pin"`
	StripPin   int  `yaml:"strip_pin"` // -1 disables the LED strip
	ActiveHigh bool `yaml:"active_high"`
	LampBit    int  `yaml:"lamp_bit"` // bit on the LED expander; -1 disables
}

// UnmarshalYAML implements yaml.Unmarshaler. The lamp bit defaults to -1
// (disabled) rather than 0.
func (l *Collector) UnmarshalYAML(value *yaml.Node) error {
	type rawCollector Collector
	raw := rawCollector{LampBit: -1}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*l = Collector(raw)
	return nil
}

// Config is the full daemon configuration.
type Config struct {
	I2C       I2C       `yaml:"i2c"`
	GPIOChip  string    `yaml:"gpio_chip"`
	Machines  []Machine `yaml:"machines"`
	Collector Collector `yaml:"collector"`

	Poll      Duration `yaml:"poll"`
	Heartbeat Duration `yaml:"heartbeat"`

	Broker   string `yaml:"broker"` // empty disables MQTT
	HTTPAddr string `yaml:"http"`   // empty disables the status server
}

// Environment override variables. Set in the environment or a .env file next
// to the binary.
const (
	EnvBroker   = "DUST_BROKER"
	EnvHTTPAddr = "DUST_HTTP"
	EnvI2CBus   = "DUST_I2C_BUS"
)

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults, and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	// Pre-seed the lamp sentinel so an omitted collector block reads as
	// "no lamp" rather than lamp bit 0.
	cfg := &Config{Collector: Collector{LampBit: -1}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	// Missing .env is fine; explicit environment always wins over the file.
	_ = godotenv.Load()

	if v := os.Getenv(EnvBroker); v != "" {
		c.Broker = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv(EnvI2CBus); v != "" {
		var bus int
		if _, err := fmt.Sscanf(v, "%d", &bus); err == nil {
			c.I2C.Bus = bus
		}
	}
}
