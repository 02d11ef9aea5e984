// Package control houses the three event-driven controllers: the machine
// manager (aggregate activity), the gate controller (machine → gate
// commands), and the collector controller (motor relay). Each runs its own
// subscription loop; an error handling one event never stops the loop.
package control

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/sweeney/dust-collector/internal/bus"
)

// ManagerSource is the event source tag on collector.on/off events.
const ManagerSource = "machine-manager"

// Manager aggregates machine on/off state and publishes collector.on on the
// empty→non-empty transition of the active set, collector.off on
// non-empty→empty. Never a duplicate.
type Manager struct {
	bus *bus.Bus
	log *slog.Logger

	mu        sync.Mutex
	active    map[string]bool
	anyActive bool
}

// NewManager creates a manager publishing on the given bus.
func NewManager(b *bus.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{bus: b, log: log, active: make(map[string]bool)}
}

// Run consumes machine events until the context is cancelled or the
// subscription closes.
func (m *Manager) Run(ctx context.Context, sub *bus.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			m.Handle(e)
		}
	}
}

// Handle processes one event. Exported so tests and the wiring loop can
// drive the manager synchronously.
func (m *Manager) Handle(e bus.Event) {
	switch e.Type {
	case bus.MachineOn:
		m.setActive(e.Machine, true)
	case bus.MachineOff:
		m.setActive(e.Machine, false)
	}
}

func (m *Manager) setActive(name string, on bool) {
	m.mu.Lock()
	if on {
		m.active[name] = true
	} else {
		delete(m.active, name)
	}
	any := len(m.active) > 0
	changed := any != m.anyActive
	m.anyActive = any
	names := m.activeNamesLocked()
	m.mu.Unlock()

	if !changed {
		return
	}
	if any {
		m.log.Info("aggregate activity: on", "active", names)
		m.bus.Publish(bus.NewEvent(bus.CollectorOn, ManagerSource))
	} else {
		m.log.Info("aggregate activity: off")
		m.bus.Publish(bus.NewEvent(bus.CollectorOff, ManagerSource))
	}
}

// AnyActive reports whether any machine is currently active.
func (m *Manager) AnyActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anyActive
}

// Active returns the sorted names of active machines.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeNamesLocked()
}

func (m *Manager) activeNamesLocked() []string {
	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
