// Package gate drives one blast-gate actuator through a pair of drive bits
// (open, close) on a shared register device. The state machine enforces the
// H-bridge interlock: the opposing bit is checked inside the same
// read-modify-write that asserts a drive bit, direction changes pass through
// a dead-time window with both bits inactive, and a motion that never
// confirms forces the gate to fault with both bits de-energized.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/librescoot/librefsm"

	"github.com/sweeney/dust-collector/internal/register"
)

// State is the gate actuator state.
type State string

const (
	Closed        State = "closed"
	DeadTimeOpen  State = "dead_time_open" // both bits off, about to open
	Opening       State = "opening"
	Open          State = "open"
	DeadTimeClose State = "dead_time_close" // both bits off, about to close
	Closing       State = "closing"
	Fault         State = "fault"
)

// Terminal reports whether the state accepts new commands.
func (s State) Terminal() bool {
	return s == Closed || s == Open || s == Fault
}

// ErrInterlock is the programming-invariant failure: an attempt to assert a
// drive bit while the opposing bit is energized. It is rejected before the
// write reaches hardware and is fatal to the gate.
var ErrInterlock = errors.New("gate: interlock violation, opposing drive bit asserted")

// ErrFaulted is returned for commands to a faulted gate. A fault is never
// cleared automatically; Reset is an explicit operator action.
var ErrFaulted = errors.New("gate: faulted")

// FSM event IDs.
const (
	evOpen         librefsm.EventID = "cmd.open"
	evClose        librefsm.EventID = "cmd.close"
	evDeadTimeDone librefsm.EventID = "deadtime.done"
	evConfirmed    librefsm.EventID = "motion.confirmed"
	evTimeout      librefsm.EventID = "motion.timeout"
	evFault        librefsm.EventID = "fault"
	evReset        librefsm.EventID = "cmd.reset"
)

// Config describes one gate.
type Config struct {
	Name     string
	OpenBit  int
	CloseBit int

	// DeadTime is the mandatory pause between de-asserting one direction
	// and asserting the opposite.
	DeadTime time.Duration

	// Timeout bounds any opening/closing motion; exceeding it is a fault.
	Timeout time.Duration
}

// Defaults for gate timing.
const (
	DefaultDeadTime      = 200 * time.Millisecond
	DefaultActuationTime = 6 * time.Second
	DefaultTimeout       = 7 * time.Second
)

// Gate is one blast-gate actuator.
type Gate struct {
	cfg     Config
	dev     *register.Device
	confirm Confirmer
	log     *slog.Logger
	fsm     *librefsm.Machine

	mu       sync.Mutex
	faultErr error

	// onTerminal is invoked after the gate reaches a terminal state.
	onTerminal func(name string, st State, faultErr error)

	// notifyCh feeds the single notification goroutine so terminal hooks
	// run in transition order.
	notifyCh   chan terminalNote
	notifyOnce sync.Once
}

type terminalNote struct {
	st  State
	err error
}

// New creates a gate on the given device. The gate assumes Closed on boot and
// forces both drive bits inactive when started — prior state is not trusted
// across restarts.
func New(dev *register.Device, confirm Confirmer, cfg Config, log *slog.Logger) (*Gate, error) {
	if cfg.DeadTime <= 0 {
		cfg.DeadTime = DefaultDeadTime
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.OpenBit == cfg.CloseBit {
		return nil, fmt.Errorf("gate %s: open and close bits must differ", cfg.Name)
	}
	if log == nil {
		log = slog.Default()
	}

	g := &Gate{
		cfg:     cfg,
		dev:     dev,
		confirm: confirm,
		log:     log.With("gate", cfg.Name),
	}

	def := librefsm.NewDefinition().
		State(librefsm.StateID(Closed), librefsm.WithOnEnter(g.enterIdle)).
		State(librefsm.StateID(Open), librefsm.WithOnEnter(g.enterIdle)).
		State(librefsm.StateID(DeadTimeOpen),
			librefsm.WithOnEnter(g.enterDeadTime),
			librefsm.WithTimeout(cfg.DeadTime, evDeadTimeDone)).
		State(librefsm.StateID(DeadTimeClose),
			librefsm.WithOnEnter(g.enterDeadTime),
			librefsm.WithTimeout(cfg.DeadTime, evDeadTimeDone)).
		State(librefsm.StateID(Opening),
			librefsm.WithOnEnter(g.enterOpening),
			librefsm.WithOnExit(g.exitMotion),
			librefsm.WithTimeout(cfg.Timeout, evTimeout)).
		State(librefsm.StateID(Closing),
			librefsm.WithOnEnter(g.enterClosing),
			librefsm.WithOnExit(g.exitMotion),
			librefsm.WithTimeout(cfg.Timeout, evTimeout)).
		State(librefsm.StateID(Fault), librefsm.WithOnEnter(g.enterFault)).
		Initial(librefsm.StateID(Closed)).
		// Commands from terminal states.
		Transition(librefsm.StateID(Closed), evOpen, librefsm.StateID(Opening)).
		Transition(librefsm.StateID(Open), evClose, librefsm.StateID(Closing)).
		// Directional change mid-motion passes through dead-time.
		Transition(librefsm.StateID(Opening), evClose, librefsm.StateID(DeadTimeClose)).
		Transition(librefsm.StateID(Closing), evOpen, librefsm.StateID(DeadTimeOpen)).
		Transition(librefsm.StateID(DeadTimeOpen), evClose, librefsm.StateID(DeadTimeClose)).
		Transition(librefsm.StateID(DeadTimeClose), evOpen, librefsm.StateID(DeadTimeOpen)).
		// Dead-time elapsed: assert the new direction.
		Transition(librefsm.StateID(DeadTimeOpen), evDeadTimeDone, librefsm.StateID(Opening)).
		Transition(librefsm.StateID(DeadTimeClose), evDeadTimeDone, librefsm.StateID(Closing)).
		// Motion confirmed.
		Transition(librefsm.StateID(Opening), evConfirmed, librefsm.StateID(Open)).
		Transition(librefsm.StateID(Closing), evConfirmed, librefsm.StateID(Closed)).
		// Motion timed out.
		Transition(librefsm.StateID(Opening), evTimeout, librefsm.StateID(Fault)).
		Transition(librefsm.StateID(Closing), evTimeout, librefsm.StateID(Fault)).
		// Anything can fault; only an explicit reset leaves fault.
		AnyStateTransition(evFault, librefsm.StateID(Fault)).
		Transition(librefsm.StateID(Fault), evReset, librefsm.StateID(Closed),
			librefsm.WithAction(func(_ *librefsm.Context) error {
				g.mu.Lock()
				g.faultErr = nil
				g.mu.Unlock()
				return nil
			}))

	// The callback runs inside the FSM's own lock, so terminal hooks are
	// handed off to a single notification goroutine: a subscriber calling
	// back into the gate cannot deadlock it, and two rapid terminal
	// transitions are always observed in the order they happened.
	g.notifyCh = make(chan terminalNote, 8)
	go g.notifyLoop()
	fsm, err := def.Build(librefsm.WithLogger(g.log),
		librefsm.WithStateChangeCallback(func(from, to librefsm.StateID) {
			st := State(to)
			g.log.Info("gate state", "from", string(from), "to", string(to))
			if st.Terminal() && g.onTerminal != nil {
				g.mu.Lock()
				ferr := g.faultErr
				g.mu.Unlock()
				g.notifyCh <- terminalNote{st: st, err: ferr}
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("gate %s: build fsm: %w", cfg.Name, err)
	}
	g.fsm = fsm

	return g, nil
}

// notifyLoop delivers terminal notifications one at a time, in the order the
// transitions occurred. Exits when Stop closes the channel.
func (g *Gate) notifyLoop() {
	for n := range g.notifyCh {
		g.onTerminal(g.cfg.Name, n.st, n.err)
	}
}

// OnTerminal registers the terminal-state hook. Must be set before Start.
func (g *Gate) OnTerminal(fn func(name string, st State, faultErr error)) {
	g.onTerminal = fn
}

// Name returns the gate name.
func (g *Gate) Name() string { return g.cfg.Name }

// Start enters Closed (forcing both drive bits inactive) and begins
// processing commands.
func (g *Gate) Start(ctx context.Context) error {
	return g.fsm.Start(ctx)
}

// Stop shuts the state machine down and forces both drive bits inactive.
// Best effort, for process shutdown.
func (g *Gate) Stop() error {
	g.confirm.Cancel()
	err := g.fsm.Stop()
	g.notifyOnce.Do(func() { close(g.notifyCh) })
	if err != nil {
		return err
	}
	return g.stopDrive()
}

// State returns the current gate state.
func (g *Gate) State() State {
	return State(g.fsm.CurrentState())
}

// Err returns the recorded fault cause, if any.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faultErr
}

// Open commands the gate open. A gate already open (or heading open) is a
// no-op with no register write; a faulted gate rejects the command; a gate
// mid-close reverses through the dead-time window.
func (g *Gate) Open() error {
	switch g.State() {
	case Open, Opening, DeadTimeOpen:
		return nil
	case Fault:
		return ErrFaulted
	}
	return g.fsm.SendSync(librefsm.Event{ID: evOpen})
}

// Close commands the gate closed, symmetric with Open.
func (g *Gate) Close() error {
	switch g.State() {
	case Closed, Closing, DeadTimeClose:
		return nil
	case Fault:
		return ErrFaulted
	}
	return g.fsm.SendSync(librefsm.Event{ID: evClose})
}

// Fail forces the gate to Fault with the given cause. Used when the shared
// expander goes offline: every gate on that device must stop trusting its
// drive bits, not just the one whose write failed.
func (g *Gate) Fail(err error) {
	if g.State() == Fault {
		return
	}
	g.mu.Lock()
	if g.faultErr == nil {
		g.faultErr = err
	}
	g.mu.Unlock()
	g.fsm.Send(librefsm.Event{ID: evFault})
}

// Reset clears a fault back to Closed (both bits forced inactive). Explicit
// operator action only — faults are never auto-cleared.
func (g *Gate) Reset() error {
	if g.State() != Fault {
		return nil
	}
	return g.fsm.SendSync(librefsm.Event{ID: evReset})
}

// --- state entry/exit actions ---

// enterIdle runs on Closed and Open: drive is pulsed, not held, so both
// bits go inactive the moment a terminal state is reached.
func (g *Gate) enterIdle(ctx *librefsm.Context) error {
	if err := g.stopDrive(); err != nil {
		g.failf(ctx, fmt.Errorf("stop drive: %w", err))
	}
	return nil
}

// enterDeadTime forces both bits inactive; the declarative state timeout
// fires evDeadTimeDone after the dead-time window.
func (g *Gate) enterDeadTime(ctx *librefsm.Context) error {
	g.confirm.Cancel()
	if err := g.stopDrive(); err != nil {
		g.failf(ctx, fmt.Errorf("dead-time stop drive: %w", err))
	}
	return nil
}

func (g *Gate) enterOpening(ctx *librefsm.Context) error {
	if err := g.assertDrive(g.cfg.OpenBit, g.cfg.CloseBit); err != nil {
		g.failf(ctx, fmt.Errorf("assert open drive: %w", err))
		return nil
	}
	g.confirm.Watch(DirOpen, func() {
		g.fsm.Send(librefsm.Event{ID: evConfirmed})
	})
	return nil
}

func (g *Gate) enterClosing(ctx *librefsm.Context) error {
	if err := g.assertDrive(g.cfg.CloseBit, g.cfg.OpenBit); err != nil {
		g.failf(ctx, fmt.Errorf("assert close drive: %w", err))
		return nil
	}
	g.confirm.Watch(DirClose, func() {
		g.fsm.Send(librefsm.Event{ID: evConfirmed})
	})
	return nil
}

func (g *Gate) exitMotion(ctx *librefsm.Context) error {
	g.confirm.Cancel()
	return nil
}

// enterFault de-energizes everything and records the cause. The timeout path
// lands here without a recorded error; name it.
func (g *Gate) enterFault(ctx *librefsm.Context) error {
	if err := g.stopDrive(); err != nil {
		g.log.Error("fault: failed to de-energize drive bits", "error", err)
	}
	g.mu.Lock()
	if g.faultErr == nil {
		g.faultErr = fmt.Errorf("gate %s: motion did not complete within %v", g.cfg.Name, g.cfg.Timeout)
	}
	err := g.faultErr
	g.mu.Unlock()
	g.log.Error("gate fault", "error", err)
	return nil
}

// failf records the cause and drives the machine to Fault.
func (g *Gate) failf(ctx *librefsm.Context, err error) {
	g.mu.Lock()
	if g.faultErr == nil {
		g.faultErr = err
	}
	g.mu.Unlock()
	g.log.Error("gate failure", "error", err)
	ctx.Send(librefsm.Event{ID: evFault})
}

// assertDrive asserts one drive bit after verifying, inside the same
// read-modify-write, that the opposing bit is inactive.
func (g *Gate) assertDrive(driveBit, opposingBit int) error {
	return g.dev.Update(func(b *register.Bits) error {
		if b.Get(opposingBit) {
			return ErrInterlock
		}
		b.Set(driveBit, true)
		return nil
	})
}

// stopDrive forces both drive bits inactive in one write.
func (g *Gate) stopDrive() error {
	return g.dev.ClearBits(g.cfg.OpenBit, g.cfg.CloseBit)
}
