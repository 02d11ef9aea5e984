package gate

import (
	"sync"
	"time"

	"github.com/sweeney/dust-collector/internal/gpio"
)

// Direction of a gate motion being confirmed.
type Direction int

const (
	DirOpen Direction = iota
	DirClose
)

// Confirmer decides when a gate motion is complete. Watch returns
// immediately and invokes confirm at most once from another goroutine;
// Cancel stops the current watch. Whether confirmation comes from a fixed
// actuation timer or a limit switch is a wiring decision, not a gate one.
type Confirmer interface {
	Watch(dir Direction, confirm func())
	Cancel()
}

// TimerConfirmer confirms a motion after a fixed actuation time. This is the
// no-extra-wiring strategy: the actuator is known to traverse in well under
// the configured duration.
type TimerConfirmer struct {
	d time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewTimerConfirmer creates a confirmer with the given actuation time.
func NewTimerConfirmer(d time.Duration) *TimerConfirmer {
	if d <= 0 {
		d = DefaultActuationTime
	}
	return &TimerConfirmer{d: d}
}

// Watch starts the actuation timer.
func (t *TimerConfirmer) Watch(dir Direction, confirm func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.d, confirm)
}

// Cancel stops a pending confirmation.
func (t *TimerConfirmer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// SwitchConfirmer confirms a motion when the matching limit switch closes.
// The gate's motion timeout remains the backstop for a switch that never
// trips.
type SwitchConfirmer struct {
	openSw  gpio.Input
	closeSw gpio.Input
	poll    time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// DefaultSwitchPoll is how often limit switches are sampled during motion.
const DefaultSwitchPoll = 50 * time.Millisecond

// NewSwitchConfirmer creates a confirmer polling the given limit switches.
func NewSwitchConfirmer(openSw, closeSw gpio.Input, poll time.Duration) *SwitchConfirmer {
	if poll <= 0 {
		poll = DefaultSwitchPoll
	}
	return &SwitchConfirmer{openSw: openSw, closeSw: closeSw, poll: poll}
}

// Watch polls the limit switch for the commanded direction until it trips.
func (s *SwitchConfirmer) Watch(dir Direction, confirm func()) {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	sw := s.openSw
	if dir == DirClose {
		sw = s.closeSw
	}

	go func() {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tripped, err := sw.Value()
				if err != nil {
					// Read errors are absorbed; the motion timeout
					// handles a switch that never reports.
					continue
				}
				if tripped {
					confirm()
					return
				}
			}
		}
	}()
}

// Cancel stops the current watch.
func (s *SwitchConfirmer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
