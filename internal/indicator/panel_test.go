package indicator

import (
	"errors"
	"testing"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/i2c"
	"github.com/sweeney/dust-collector/internal/register"
)

const ledAddr = 0x20

func newTestPanel(t *testing.T, lampBit int) (*Panel, *i2c.FakeBus) {
	t.Helper()
	fake := i2c.NewFakeBus()
	dev := register.New(fake, register.Config{Name: "leds", Addr: ledAddr, SafeByte: 0x00}, nil)
	if err := dev.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	p := NewPanel(dev, []GateLEDs{
		{Machine: "tablesaw", GreenBit: 0, RedBit: 1},
		{Machine: "lathe", GreenBit: 2, RedBit: 3},
	}, lampBit, nil)
	return p, fake
}

func TestBootShowsAllClosed(t *testing.T) {
	p, fake := newTestPanel(t, NoLamp)
	p.Boot()
	// Red bits 1 and 3 lit, greens dark.
	if v := fake.Bytes[ledAddr]; v != 0x0A {
		t.Errorf("expected 0x0A after boot, got 0x%02x", v)
	}
}

func TestGateLifecycleLEDs(t *testing.T) {
	p, fake := newTestPanel(t, NoLamp)
	p.Boot()

	// Machine starts: lathe pair shows motion (both lit).
	p.Handle(bus.NewMachine(bus.MachineOn, "test", "lathe", 1.0))
	if v := fake.Bytes[ledAddr]; v != 0x0E {
		t.Errorf("expected 0x0E during motion, got 0x%02x", v)
	}

	// Gate opens: green only.
	p.Handle(bus.NewMachine(bus.GateOpened, "test", "lathe", 0))
	if v := fake.Bytes[ledAddr]; v != 0x06 {
		t.Errorf("expected 0x06 when open, got 0x%02x", v)
	}

	// Gate closes again: red only. Tablesaw pair untouched throughout.
	p.Handle(bus.NewMachine(bus.GateClosed, "test", "lathe", 0))
	if v := fake.Bytes[ledAddr]; v != 0x0A {
		t.Errorf("expected 0x0A when closed, got 0x%02x", v)
	}
}

func TestFaultDarkensPair(t *testing.T) {
	p, fake := newTestPanel(t, NoLamp)
	p.Boot()
	p.Handle(bus.NewMachine(bus.GateFault, "test", "lathe", 0))
	if v := fake.Bytes[ledAddr]; v != 0x02 {
		t.Errorf("expected only tablesaw red lit, got 0x%02x", v)
	}
}

func TestCollectorLamp(t *testing.T) {
	p, fake := newTestPanel(t, 7)
	p.Handle(bus.NewEvent(bus.CollectorOn, "test"))
	if v := fake.Bytes[ledAddr]; v != 0x80 {
		t.Errorf("expected lamp bit, got 0x%02x", v)
	}
	p.Handle(bus.NewEvent(bus.CollectorOff, "test"))
	if v := fake.Bytes[ledAddr]; v != 0x00 {
		t.Errorf("expected lamp off, got 0x%02x", v)
	}
}

func TestLampDisabled(t *testing.T) {
	p, fake := newTestPanel(t, NoLamp)
	p.Handle(bus.NewEvent(bus.CollectorOn, "test"))
	if v := fake.Bytes[ledAddr]; v != 0x00 {
		t.Errorf("expected no write with lamp disabled, got 0x%02x", v)
	}
}

func TestUnknownMachineIgnored(t *testing.T) {
	p, fake := newTestPanel(t, NoLamp)
	p.Handle(bus.NewMachine(bus.GateOpened, "test", "mystery", 0))
	if v := fake.Bytes[ledAddr]; v != 0x00 {
		t.Errorf("expected no write for unknown machine, got 0x%02x", v)
	}
}

func TestLEDFailureDoesNotPanic(t *testing.T) {
	p, fake := newTestPanel(t, NoLamp)
	fake.WriteErr = errors.New("bus gone")
	p.Handle(bus.NewMachine(bus.GateOpened, "test", "lathe", 0)) // logged only
}
