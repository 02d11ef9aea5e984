// Package watch polls the machine current sensors, debounces each signal,
// and publishes machine.on/machine.off events. It owns the per-machine
// state; everyone else sees only events and read-only snapshots.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/debounce"
	"github.com/sweeney/dust-collector/internal/sensor"
)

// Source is the event source tag on machine events.
const Source = "machine-watch"

// MachineConfig describes one watched machine.
type MachineConfig struct {
	Name     string
	Debounce debounce.Config
}

// MachineStatus is a read-only snapshot of one machine.
type MachineStatus struct {
	Name           string
	Raw            float64
	State          debounce.State
	On             bool
	LastTransition time.Time
}

// Counts tracks published transitions since startup.
type Counts struct {
	On  int
	Off int
}

type machineState struct {
	filter *debounce.Filter
	raw    float64
}

// Watch is the sensor poll loop.
type Watch struct {
	reader sensor.Reader
	bus    *bus.Bus
	log    *slog.Logger

	mu       sync.RWMutex
	order    []string
	machines map[string]*machineState
	counts   Counts
}

// New creates a watch over the configured machines.
func New(reader sensor.Reader, b *bus.Bus, machines []MachineConfig, log *slog.Logger) *Watch {
	if log == nil {
		log = slog.Default()
	}
	w := &Watch{
		reader:   reader,
		bus:      b,
		log:      log,
		machines: make(map[string]*machineState, len(machines)),
	}
	for _, m := range machines {
		w.order = append(w.order, m.Name)
		w.machines[m.Name] = &machineState{filter: debounce.New(m.Debounce)}
	}
	return w
}

// Run polls on every tick until the context is cancelled. The tick channel
// and clock are injected so tests drive time explicitly.
func (w *Watch) Run(ctx context.Context, tick <-chan time.Time, now func() time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			w.Poll(now())
		}
	}
}

// Poll performs one sensor read and publishes any debounced transitions.
// Read errors are logged and skipped — a transient sensor glitch must never
// stop the loop.
func (w *Watch) Poll(now time.Time) {
	readings, err := w.reader.Read()
	if err != nil {
		w.log.Warn("sensor read error", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range readings {
		m, ok := w.machines[r.Machine]
		if !ok {
			w.log.Warn("reading for unconfigured machine", "machine", r.Machine)
			continue
		}
		m.raw = r.Value

		switch m.filter.Process(r.Value, now) {
		case debounce.TurnedOn:
			w.counts.On++
			w.log.Info("machine on", "machine", r.Machine, "value", r.Value)
			w.bus.Publish(bus.NewMachine(bus.MachineOn, Source, r.Machine, r.Value))
		case debounce.TurnedOff:
			w.counts.Off++
			w.log.Info("machine off", "machine", r.Machine, "value", r.Value)
			w.bus.Publish(bus.NewMachine(bus.MachineOff, Source, r.Machine, r.Value))
		}
	}
}

// Snapshot returns the current per-machine view, in configuration order.
func (w *Watch) Snapshot() []MachineStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]MachineStatus, 0, len(w.order))
	for _, name := range w.order {
		m := w.machines[name]
		out = append(out, MachineStatus{
			Name:           name,
			Raw:            m.raw,
			State:          m.filter.State(),
			On:             m.filter.On(),
			LastTransition: m.filter.LastTransition(),
		})
	}
	return out
}

// EventCounts returns the number of published transitions since startup.
func (w *Watch) EventCounts() Counts {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts
}
