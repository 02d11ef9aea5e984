package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Machines      []MachineJSON `json:"machines"`
	Gates         []GateJSON    `json:"gates"`
	CollectorOn   bool          `json:"collector_on"`
	ActiveCount   int           `json:"active_count"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Topology      []string      `json:"topology,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MachineJSON is the JSON representation of one watched machine.
type MachineJSON struct {
	Name           string  `json:"name"`
	Raw            float64 `json:"raw"`
	State          string  `json:"state"`
	On             bool    `json:"on"`
	LastTransition string  `json:"last_transition,omitempty"`
}

// GateJSON is the JSON representation of one blast gate.
type GateJSON struct {
	Machine string `json:"machine"`
	State   string `json:"state"`
	Fault   string `json:"fault,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	MachineOn  int `json:"machine_on"`
	MachineOff int `json:"machine_off"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	machines := make([]MachineJSON, 0, len(snap.Machines))
	for _, m := range snap.Machines {
		mj := MachineJSON{
			Name:  m.Name,
			Raw:   m.Raw,
			State: string(m.State),
			On:    m.On,
		}
		if !m.LastTransition.IsZero() {
			mj.LastTransition = m.LastTransition.UTC().Format(time.RFC3339)
		}
		machines = append(machines, mj)
	}

	gates := make([]GateJSON, 0, len(snap.Gates))
	for _, g := range snap.Gates {
		gates = append(gates, GateJSON{
			Machine: g.Machine,
			State:   string(g.State),
			Fault:   g.Fault,
		})
	}

	return StatusInner{
		Machines:      machines,
		Gates:         gates,
		CollectorOn:   snap.CollectorOn,
		ActiveCount:   snap.ActiveCount,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			MachineOn:  snap.Counts.On,
			MachineOff: snap.Counts.Off,
		},
		Topology: snap.Topology,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
