package control

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/gate"
)

// GateControllerSource is the event source tag on gate.* events.
const GateControllerSource = "gate-controller"

// GateController maps machine events onto gate commands. A gate
// mid-transition is never re-commanded; instead the latest desired position
// is remembered and applied once the gate reaches a terminal state. A
// faulted gate is never commanded again automatically.
type GateController struct {
	bus *bus.Bus
	log *slog.Logger

	mu      sync.Mutex
	gates   map[string]*gate.Gate
	desired map[string]bool // pending desired open state per machine
}

// NewGateController wires the given gates (keyed by the machine each one
// serves) and hooks their terminal-state notifications.
func NewGateController(b *bus.Bus, gates []*gate.Gate, log *slog.Logger) *GateController {
	if log == nil {
		log = slog.Default()
	}
	c := &GateController{
		bus:     b,
		log:     log,
		gates:   make(map[string]*gate.Gate, len(gates)),
		desired: make(map[string]bool),
	}
	for _, g := range gates {
		c.gates[g.Name()] = g
		g.OnTerminal(c.onTerminal)
	}
	return c
}

// Run consumes machine events until the context is cancelled or the
// subscription closes.
func (c *GateController) Run(ctx context.Context, sub *bus.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			c.Handle(e)
		}
	}
}

// Handle processes one event.
func (c *GateController) Handle(e bus.Event) {
	switch e.Type {
	case bus.MachineOn:
		c.command(e.Machine, true)
	case bus.MachineOff:
		c.command(e.Machine, false)
	}
}

func (c *GateController) command(machine string, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.gates[machine]; !ok {
		c.log.Warn("no gate for machine", "machine", machine)
		return
	}
	c.desired[machine] = open
	c.applyLocked(machine)
}

// applyLocked drives the pending desired position if the gate is in a
// terminal state. Mid-transition the command waits for onTerminal.
func (c *GateController) applyLocked(machine string) {
	g := c.gates[machine]
	want, pending := c.desired[machine]
	if !pending {
		return
	}

	st := g.State()
	if !st.Terminal() {
		return
	}
	if st == gate.Fault {
		c.log.Error("gate faulted, dropping command", "gate", machine, "error", g.Err())
		delete(c.desired, machine)
		return
	}
	if (want && st == gate.Open) || (!want && st == gate.Closed) {
		delete(c.desired, machine)
		return
	}

	var err error
	if want {
		err = g.Open()
	} else {
		err = g.Close()
	}
	if err != nil {
		c.log.Error("gate command failed", "gate", machine, "open", want, "error", err)
		delete(c.desired, machine)
	}
}

// onTerminal publishes the terminal state to the bus and applies any command
// that arrived mid-transition.
func (c *GateController) onTerminal(name string, st gate.State, faultErr error) {
	switch st {
	case gate.Open:
		c.bus.Publish(bus.NewMachine(bus.GateOpened, GateControllerSource, name, 0))
	case gate.Closed:
		c.bus.Publish(bus.NewMachine(bus.GateClosed, GateControllerSource, name, 0))
	case gate.Fault:
		c.log.Error("gate fault reported", "gate", name, "error", faultErr)
		c.bus.Publish(bus.NewMachine(bus.GateFault, GateControllerSource, name, 0))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(name)
}

// States returns the current state of every gate, keyed by machine.
func (c *GateController) States() map[string]gate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]gate.State, len(c.gates))
	for name, g := range c.gates {
		out[name] = g.State()
	}
	return out
}
