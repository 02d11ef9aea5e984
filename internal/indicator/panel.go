// Package indicator drives the status LED expander: a green/red pair per
// gate and an optional collector lamp. This is deliberately a policy layer —
// it composes the register device's atomic bit operations and the device
// itself knows nothing about pairs or colors. LEDs share the expander's
// read-modify-write discipline but carry no interlock.
package indicator

import (
	"context"
	"log/slog"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/register"
)

// GateLEDs binds a machine's gate to its LED pair.
type GateLEDs struct {
	Machine  string
	GreenBit int // lit when the gate is open
	RedBit   int // lit when the gate is closed
}

// NoLamp disables the collector lamp bit.
const NoLamp = -1

// Panel owns the status expander policy.
type Panel struct {
	dev     *register.Device
	leds    map[string]GateLEDs
	lampBit int
	log     *slog.Logger
}

// NewPanel creates a panel for the given LED map. lampBit may be NoLamp.
func NewPanel(dev *register.Device, leds []GateLEDs, lampBit int, log *slog.Logger) *Panel {
	if log == nil {
		log = slog.Default()
	}
	p := &Panel{
		dev:     dev,
		leds:    make(map[string]GateLEDs, len(leds)),
		lampBit: lampBit,
		log:     log,
	}
	for _, l := range leds {
		p.leds[l.Machine] = l
	}
	return p
}

// Boot shows every gate as closed (red), the assumed boot state.
func (p *Panel) Boot() {
	for machine := range p.leds {
		p.setPair(machine, false, true)
	}
}

// Run consumes events until the context is cancelled or the subscription
// closes. LED failures are logged and never escalate — indicators must not
// block control decisions.
func (p *Panel) Run(ctx context.Context, sub *bus.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			p.Handle(e)
		}
	}
}

// Handle processes one event. Both LEDs lit means the gate is in motion;
// both dark means it faulted.
func (p *Panel) Handle(e bus.Event) {
	switch e.Type {
	case bus.MachineOn, bus.MachineOff:
		p.setPair(e.Machine, true, true)
	case bus.GateOpened:
		p.setPair(e.Machine, true, false)
	case bus.GateClosed:
		p.setPair(e.Machine, false, true)
	case bus.GateFault:
		p.setPair(e.Machine, false, false)
	case bus.CollectorOn:
		p.setLamp(true)
	case bus.CollectorOff:
		p.setLamp(false)
	}
}

// setPair updates both LEDs of a pair in one register write.
func (p *Panel) setPair(machine string, green, red bool) {
	l, ok := p.leds[machine]
	if !ok {
		return
	}
	err := p.dev.Update(func(b *register.Bits) error {
		b.Set(l.GreenBit, green)
		b.Set(l.RedBit, red)
		return nil
	})
	if err != nil {
		p.log.Warn("led update failed", "machine", machine, "error", err)
	}
}

func (p *Panel) setLamp(on bool) {
	if p.lampBit == NoLamp {
		return
	}
	if err := p.dev.SetBit(p.lampBit, on); err != nil {
		p.log.Warn("collector lamp update failed", "error", err)
	}
}
