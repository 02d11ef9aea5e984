package bus

import (
	"sort"
	"strings"
	"sync"
)

// Topology is the static table of who listens to what, declared at wiring
// time. The bus itself broadcasts everything; this table exists so the event
// routing is inspectable (status page, logs) without tracing control flow.
type Topology struct {
	mu      sync.Mutex
	entries map[Type][]string
}

// NewTopology creates an empty topology table.
func NewTopology() *Topology {
	return &Topology{entries: make(map[Type][]string)}
}

// Declare records that the named subscriber consumes the given event types.
func (t *Topology) Declare(subscriber string, types ...Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, typ := range types {
		t.entries[typ] = append(t.entries[typ], subscriber)
	}
}

// Subscribers returns the declared subscribers for an event type.
func (t *Topology) Subscribers(typ Type) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries[typ]))
	copy(out, t.entries[typ])
	return out
}

// Table returns the whole topology as sorted "type -> a, b" lines.
func (t *Topology) Table() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := make([]string, 0, len(t.entries))
	for typ, subs := range t.entries {
		sorted := make([]string, len(subs))
		copy(sorted, subs)
		sort.Strings(sorted)
		lines = append(lines, string(typ)+" -> "+strings.Join(sorted, ", "))
	}
	sort.Strings(lines)
	return lines
}
