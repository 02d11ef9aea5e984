// Package bus provides the in-process broadcast event bus that connects the
// machine watcher, the gate/collector controllers, and external bridges.
// Events are a closed set of typed variants — subscribers filter with a plain
// switch instead of inspecting loose payload maps.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an event variant.
type Type string

const (
	// MachineOn / MachineOff are published by the machine watcher once a
	// sensor reading has passed the debounce filter. Machine carries the
	// machine name, Value the raw reading at the transition.
	MachineOn  Type = "machine.on"
	MachineOff Type = "machine.off"

	// CollectorOn / CollectorOff are published by the machine manager on
	// transitions of the aggregate "any machine active" flag.
	CollectorOn  Type = "collector.on"
	CollectorOff Type = "collector.off"

	// GateOpened / GateClosed / GateFault are published by the gate
	// controller when a gate reaches a terminal state. Machine carries the
	// machine name the gate serves.
	GateOpened Type = "gate.opened"
	GateClosed Type = "gate.closed"
	GateFault  Type = "gate.fault"
)

// Event is a single immutable occurrence on the bus.
type Event struct {
	ID      string
	Type    Type
	Source  string
	Time    time.Time
	Machine string  // machine name for machine.* and gate.* events
	Value   float64 // raw sensor reading for machine.* events
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(t Type, source string) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   t,
		Source: source,
		Time:   time.Now(),
	}
}

// NewMachine creates a machine/gate event for the named machine.
func NewMachine(t Type, source, machine string, value float64) Event {
	e := NewEvent(t, source)
	e.Machine = machine
	e.Value = value
	return e
}
