// Package status provides a thread-safe status tracker for the dust-collector
// daemon. It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/dust-collector/internal/gate"
	"github.com/sweeney/dust-collector/internal/watch"
)

// GateStatus is a point-in-time view of one blast gate.
type GateStatus struct {
	Machine string
	State   gate.State
	Fault   string // non-empty only in the fault state
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Machines      []watch.MachineStatus
	Gates         []GateStatus
	CollectorOn   bool
	ActiveCount   int
	Counts        watch.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Topology      []string
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetTopology records the bus routing table for display.
func (t *Tracker) SetTopology(lines []string) {
	t.mu.Lock()
	t.snap.Topology = lines
	t.mu.Unlock()
}

// UpdateMachines sets machine states and event counts.
// Called from the watch loop on every poll.
func (t *Tracker) UpdateMachines(machines []watch.MachineStatus, counts watch.Counts) {
	t.mu.Lock()
	t.snap.Machines = machines
	t.snap.Counts = counts
	active := 0
	for _, m := range machines {
		if m.On {
			active++
		}
	}
	t.snap.ActiveCount = active
	t.mu.Unlock()
}

// UpdateGates sets the gate states.
func (t *Tracker) UpdateGates(gates []GateStatus) {
	t.mu.Lock()
	t.snap.Gates = gates
	t.mu.Unlock()
}

// SetCollector sets the collector relay state.
func (t *Tracker) SetCollector(on bool) {
	t.mu.Lock()
	t.snap.CollectorOn = on
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
