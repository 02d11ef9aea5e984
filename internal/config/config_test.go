package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
i2c:
  bus: 1
  relay_active_low: true
machines:
  - name: tablesaw
    source: adc
    channel: 0
    on_threshold: 1.0
    off_threshold: 0.3
    gate:
      open_bit: 0
      close_bit: 1
      green_led: 0
      red_led: 1
  - name: lathe
    source: adc
    channel: 1
    on_threshold: 0.040
    off_threshold: 0.025
    on_dwell: 500ms
    gate:
      open_bit: 2
      close_bit: 3
      green_led: 2
      red_led: 3
      confirm: switch
      switch_open_pin: 17
      switch_close_pin: 27
collector:
  lamp_bit: 7
broker: tcp://192.168.1.200:1883
http: ":8080"
`

func TestParseSample(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.I2C.Bus != 1 {
		t.Errorf("bus: got %d", cfg.I2C.Bus)
	}
	if !cfg.I2C.RelayActiveLow {
		t.Error("relay_active_low should be true")
	}
	if cfg.I2C.RelayAddr != 0x21 {
		t.Errorf("relay addr default: got %#x, want 0x21", cfg.I2C.RelayAddr)
	}
	if len(cfg.Machines) != 2 {
		t.Fatalf("machines: got %d", len(cfg.Machines))
	}

	saw := cfg.Machines[0]
	if saw.Name != "tablesaw" || saw.OnThreshold != 1.0 || saw.OffThreshold != 0.3 {
		t.Errorf("tablesaw: %+v", saw)
	}
	if saw.OnDwell.Std() != 300*time.Millisecond {
		t.Errorf("tablesaw on dwell default: got %v", saw.OnDwell.Std())
	}
	if saw.OffDwell.Std() != 900*time.Millisecond {
		t.Errorf("tablesaw off dwell default: got %v", saw.OffDwell.Std())
	}
	if saw.Gate.Confirm != "timer" {
		t.Errorf("tablesaw confirm default: got %q", saw.Gate.Confirm)
	}
	if saw.Gate.DeadTime.Std() != 200*time.Millisecond {
		t.Errorf("dead time default: got %v", saw.Gate.DeadTime.Std())
	}

	lathe := cfg.Machines[1]
	if lathe.OnDwell.Std() != 500*time.Millisecond {
		t.Errorf("lathe on dwell: got %v", lathe.OnDwell.Std())
	}
	if lathe.Gate.Confirm != "switch" || lathe.Gate.SwitchOpenPin != 17 || lathe.Gate.SwitchClosePin != 27 {
		t.Errorf("lathe gate: %+v", lathe.Gate)
	}

	if cfg.Collector.SSRPin != 25 {
		t.Errorf("ssr pin default: got %d", cfg.Collector.SSRPin)
	}
	if cfg.Collector.LampBit != 7 {
		t.Errorf("lamp bit: got %d", cfg.Collector.LampBit)
	}
	if cfg.Poll.Std() != 100*time.Millisecond {
		t.Errorf("poll default: got %v", cfg.Poll.Std())
	}
}

func TestParseOmittedLEDsDisabled(t *testing.T) {
	yaml := `
machines:
  - name: saw
    source: adc
    channel: 0
    on_threshold: 1.0
    off_threshold: 0.3
    gate:
      open_bit: 0
      close_bit: 1
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := cfg.Machines[0].Gate
	if g.GreenLED != -1 || g.RedLED != -1 {
		t.Errorf("omitted leds should be -1, got %d/%d", g.GreenLED, g.RedLED)
	}
	if cfg.Collector.LampBit != -1 {
		t.Errorf("omitted lamp bit should be -1, got %d", cfg.Collector.LampBit)
	}
}

func TestValidateErrors(t *testing.T) {
	base := `
machines:
  - name: saw
    source: adc
    channel: 0
    on_threshold: 1.0
    off_threshold: 0.3
    gate:
      open_bit: 0
      close_bit: 1
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no machines", `broker: tcp://x:1883`, "no machines"},
		{
			"duplicate name",
			base + `
  - name: saw
    source: adc
    channel: 1
    on_threshold: 1.0
    off_threshold: 0.3
    gate:
      open_bit: 2
      close_bit: 3
`,
			"duplicate name",
		},
		{
			"duplicate relay bit",
			base + `
  - name: lathe
    source: adc
    channel: 1
    on_threshold: 1.0
    off_threshold: 0.3
    gate:
      open_bit: 1
      close_bit: 2
`,
			"already used",
		},
		{
			"same open and close bit",
			strings.Replace(base, "close_bit: 1", "close_bit: 0", 1),
			"both 0",
		},
		{
			"inverted thresholds",
			strings.Replace(base, "off_threshold: 0.3", "off_threshold: 1.5", 1),
			"must exceed",
		},
		{
			"bad source",
			strings.Replace(base, "source: adc", "source: modbus", 1),
			"unknown source",
		},
		{
			"switch without pin",
			strings.Replace(base, "close_bit: 1", "close_bit: 1\n      confirm: switch", 1),
			"switch_open_pin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvBroker, "tcp://override:1883")
	t.Setenv(EnvHTTPAddr, ":9090")
	t.Setenv(EnvI2CBus, "3")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Broker != "tcp://override:1883" {
		t.Errorf("broker override: got %s", cfg.Broker)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("http override: got %s", cfg.HTTPAddr)
	}
	if cfg.I2C.Bus != 3 {
		t.Errorf("bus override: got %d", cfg.I2C.Bus)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dust.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Machines) != 2 {
		t.Errorf("machines: got %d", len(cfg.Machines))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/dust.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBadDuration(t *testing.T) {
	yaml := strings.Replace(sampleYAML, "on_dwell: 500ms", "on_dwell: soon", 1)
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Error("expected error for unparseable duration")
	}
}
