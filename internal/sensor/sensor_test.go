package sensor

import (
	"errors"
	"testing"

	"github.com/sweeney/dust-collector/internal/gpio"
	"github.com/sweeney/dust-collector/internal/i2c"
)

func TestADS1115ReadsConfiguredChannels(t *testing.T) {
	fake := i2c.NewFakeBus()
	// Full-scale positive on the conversion register: 32767 counts.
	fake.SetWord(0x48, adsRegConversion, 0x7FFF)

	a, err := NewADS1115(fake, 0x48, []ADS1115Channel{
		{Machine: "tablesaw", Channel: 0},
		{Machine: "lathe", Channel: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rs, err := a.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(rs))
	}
	if rs[0].Machine != "tablesaw" || rs[1].Machine != "lathe" {
		t.Errorf("unexpected machines: %+v", rs)
	}
	// 32767/32768 of ±4.096V full scale
	if rs[0].Value < 4.0 || rs[0].Value > 4.096 {
		t.Errorf("unexpected voltage: %f", rs[0].Value)
	}

	// The written config must select single-ended mode for the last channel.
	cfg, _ := fake.ReadWordReg(0x48, adsRegConfig)
	if cfg&adsConfigMuxSingle == 0 {
		t.Errorf("config 0x%04x missing single-ended mux", cfg)
	}
	if cfg&adsConfigModeSingle == 0 {
		t.Errorf("config 0x%04x missing single-shot mode", cfg)
	}
}

func TestADS1115NegativeCountsClampBelowZero(t *testing.T) {
	fake := i2c.NewFakeBus()
	fake.SetWord(0x48, adsRegConversion, 0xFFFF) // -1 count

	a, _ := NewADS1115(fake, 0x48, []ADS1115Channel{{Machine: "lathe", Channel: 1}})
	rs, err := a.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs[0].Value >= 0 {
		t.Errorf("expected negative voltage for negative counts, got %f", rs[0].Value)
	}
}

func TestADS1115RejectsBadChannel(t *testing.T) {
	fake := i2c.NewFakeBus()
	if _, err := NewADS1115(fake, 0x48, []ADS1115Channel{{Machine: "saw", Channel: 4}}); err == nil {
		t.Error("expected error for channel 4")
	}
}

func TestContactReader(t *testing.T) {
	saw := gpio.NewFakeInput(true)
	drill := gpio.NewFakeInput(false)

	c, err := NewContactReader([]string{"tablesaw", "drill"}, []gpio.Input{saw, drill})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rs, err := c.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs[0].Value != 1.0 || rs[1].Value != 0.0 {
		t.Errorf("unexpected readings: %+v", rs)
	}
}

func TestContactReaderLengthMismatch(t *testing.T) {
	if _, err := NewContactReader([]string{"saw"}, nil); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestCompositeMergesSources(t *testing.T) {
	a := NewFakeReader([][]Reading{{{Machine: "tablesaw", Value: 1.0}}})
	b := NewFakeReader([][]Reading{{{Machine: "lathe", Value: 0.1}}})

	rs, err := Composite{a, b}.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 2 || rs[0].Machine != "tablesaw" || rs[1].Machine != "lathe" {
		t.Errorf("unexpected readings: %+v", rs)
	}
}

func TestCompositeFirstErrorWins(t *testing.T) {
	bad := NewFakeReader(nil)
	bad.ReadErr = errors.New("simulated error")
	good := NewFakeReader([][]Reading{{{Machine: "lathe", Value: 0.1}}})

	if _, err := (Composite{bad, good}).Read(); err == nil {
		t.Error("expected error from composite")
	}
}

func TestFakeReaderScriptRepeatsLast(t *testing.T) {
	f := NewFakeReader([][]Reading{
		{{Machine: "saw", Value: 0.0}},
		{{Machine: "saw", Value: 2.0}},
	})

	r1, _ := f.Read()
	r2, _ := f.Read()
	r3, _ := f.Read()
	if r1[0].Value != 0.0 || r2[0].Value != 2.0 || r3[0].Value != 2.0 {
		t.Errorf("unexpected script playback: %v %v %v", r1, r2, r3)
	}
}
