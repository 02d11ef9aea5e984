package control

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/gpio"
)

// Collector drives the dust-collector motor relay from collector.on/off
// events. It deliberately knows nothing about machine names — per-machine
// policy lives upstream and cannot leak in here.
type Collector struct {
	relay gpio.Output
	strip gpio.Output // LED strip follows the motor; may be nil
	log   *slog.Logger

	mu sync.Mutex
	on bool
}

// NewCollector creates a controller for the motor relay. strip may be nil.
func NewCollector(relay, strip gpio.Output, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{relay: relay, strip: strip, log: log}
}

// Run consumes collector events until the context is cancelled or the
// subscription closes.
func (c *Collector) Run(ctx context.Context, sub *bus.Subscription) error {
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

// Handle processes one event. Redundant transitions are no-ops.
func (c *Collector) Handle(e bus.Event) {
	switch e.Type {
	case bus.CollectorOn:
		c.set(true)
	case bus.CollectorOff:
		c.set(false)
	}
}

func (c *Collector) set(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on == c.on {
		return
	}
	if err := c.relay.Set(on); err != nil {
		// The relay is the one output that matters; leave state unchanged
		// so the next event retries.
		c.log.Error("collector relay write failed", "on", on, "error", err)
		return
	}
	c.on = on
	if c.strip != nil {
		if err := c.strip.Set(on); err != nil {
			c.log.Warn("led strip write failed", "error", err)
		}
	}
	if on {
		c.log.Info("collector on")
	} else {
		c.log.Info("collector off")
	}
}

// On reports whether the motor relay is energized.
func (c *Collector) On() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// ForceOff de-energizes the relay regardless of state. For shutdown.
func (c *Collector) ForceOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.relay.Set(false); err != nil {
		c.log.Error("collector force-off failed", "error", err)
	}
	if c.strip != nil {
		if err := c.strip.Set(false); err != nil {
			c.log.Warn("led strip write failed", "error", err)
		}
	}
	c.on = false
}
