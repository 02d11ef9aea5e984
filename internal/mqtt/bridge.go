package mqtt

import (
	"context"
	"log/slog"

	"github.com/sweeney/dust-collector/internal/bus"
)

// Bridge forwards every event on the process-local bus to the MQTT broker.
// Publish failures are logged and dropped: the bridge must never stall the
// control loops behind it.
type Bridge struct {
	sub *bus.Subscription
	pub Publisher
	log *slog.Logger
}

// NewBridge subscribes to the bus and returns a bridge ready to run.
func NewBridge(b *bus.Bus, pub Publisher) *Bridge {
	return &Bridge{
		sub: b.Subscribe("mqtt-bridge"),
		pub: pub,
		log: slog.With("component", "mqtt-bridge"),
	}
}

// Run forwards events until ctx is cancelled or the bus closes.
func (br *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-br.sub.C:
			if !ok {
				return
			}
			if err := br.pub.Publish(ev); err != nil {
				br.log.Warn("publish failed", "event", ev.Type, "error", err)
			}
		}
	}
}

// Close detaches the bridge from the bus.
func (br *Bridge) Close() {
	br.sub.Close()
}
