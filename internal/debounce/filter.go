// Package debounce contains the pure per-signal state machine that turns a
// noisy current reading into stable on/off transitions. This package has NO
// hardware or time dependencies — time is always injected via time.Time
// parameters, so tests are fully deterministic.
package debounce

import "time"

// State is the debounce state of one signal.
type State string

const (
	StableOff  State = "STABLE_OFF"
	PendingOn  State = "PENDING_ON"
	StableOn   State = "STABLE_ON"
	PendingOff State = "PENDING_OFF"
)

// Transition is the outcome of processing one sample.
type Transition int

const (
	None Transition = iota
	TurnedOn
	TurnedOff
)

// Config tunes one filter. The on/off thresholds differ (level hysteresis,
// matched to the current-sensor noise floor) and the off dwell is longer than
// the on dwell (time hysteresis): a short spike never turns a machine on, and
// load variation near the threshold never flaps it off.
type Config struct {
	OnThreshold  float64
	OffThreshold float64
	OnDuration   time.Duration
	OffDuration  time.Duration
}

// Filter debounces a single signal.
type Filter struct {
	cfg            Config
	state          State
	pendingSince   time.Time
	lastTransition time.Time
}

// New creates a filter in StableOff.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg, state: StableOff}
}

// Process takes one raw sample and returns the transition it produced, if
// any. A dwell is satisfied once the signal has held its level for at least
// the configured duration.
func (f *Filter) Process(v float64, now time.Time) Transition {
	switch f.state {
	case StableOff:
		if v >= f.cfg.OnThreshold {
			f.state = PendingOn
			f.pendingSince = now
		}

	case PendingOn:
		if v < f.cfg.OnThreshold {
			// Noise: signal did not sustain the on level.
			f.state = StableOff
			break
		}
		if now.Sub(f.pendingSince) >= f.cfg.OnDuration {
			f.state = StableOn
			f.lastTransition = now
			return TurnedOn
		}

	case StableOn:
		if v <= f.cfg.OffThreshold {
			f.state = PendingOff
			f.pendingSince = now
		}

	case PendingOff:
		if v > f.cfg.OffThreshold {
			// Machine still drawing current; abort, no event.
			f.state = StableOn
			break
		}
		if now.Sub(f.pendingSince) >= f.cfg.OffDuration {
			f.state = StableOff
			f.lastTransition = now
			return TurnedOff
		}
	}
	return None
}

// On reports whether the stable state is on. Pending states report the
// stable state they entered from.
func (f *Filter) On() bool {
	return f.state == StableOn || f.state == PendingOff
}

// State returns the current debounce state.
func (f *Filter) State() State { return f.state }

// LastTransition returns the time of the most recent stable transition.
func (f *Filter) LastTransition() time.Time { return f.lastTransition }
