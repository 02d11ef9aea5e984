package main

import (
	"encoding/json"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/config"
	"github.com/sweeney/dust-collector/internal/control"
	"github.com/sweeney/dust-collector/internal/debounce"
	"github.com/sweeney/dust-collector/internal/gpio"
	"github.com/sweeney/dust-collector/internal/mqtt"
	"github.com/sweeney/dust-collector/internal/sensor"
	"github.com/sweeney/dust-collector/internal/status"
	"github.com/sweeney/dust-collector/internal/watch"
)

func TestSafeByte(t *testing.T) {
	if got := safeByte(true); got != 0xFF {
		t.Errorf("safeByte(activeLow=true): got 0x%02x, want 0xFF", got)
	}
	if got := safeByte(false); got != 0x00 {
		t.Errorf("safeByte(activeLow=false): got 0x%02x, want 0x00", got)
	}
}

func TestMachineConfigs(t *testing.T) {
	cfg := &config.Config{
		Machines: []config.Machine{
			{Name: "tablesaw", OnThreshold: 0.8, OffThreshold: 0.3},
		},
	}
	mcs := machineConfigs(cfg)
	if len(mcs) != 1 {
		t.Fatalf("got %d machine configs, want 1", len(mcs))
	}
	if mcs[0].Name != "tablesaw" {
		t.Errorf("name: got %q, want tablesaw", mcs[0].Name)
	}
	if mcs[0].Debounce.OnThreshold != 0.8 || mcs[0].Debounce.OffThreshold != 0.3 {
		t.Errorf("thresholds not carried over: %+v", mcs[0].Debounce)
	}
}

// --- runLoop tests ---

var loopStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// ticksFrom returns n tick times at step intervals after start.
func ticksFrom(start time.Time, step time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i+1) * step)
	}
	return out
}

// newLoopDeps wires runDeps entirely on fakes: a scripted sensor for one
// machine, a fake relay behind the collector, a fake publisher.
func newLoopDeps(t *testing.T, heartbeat time.Duration) (runDeps, *mqtt.FakePublisher, *gpio.FakeOutput) {
	t.Helper()

	reader := sensor.NewFakeReader([][]sensor.Reading{
		{{Machine: "tablesaw", Value: 1.2}},
	})
	w := watch.New(reader, bus.New(nil), []watch.MachineConfig{{
		Name: "tablesaw",
		Debounce: debounce.Config{
			OnThreshold:  0.5,
			OffThreshold: 0.5,
			OnDuration:   time.Millisecond,
			OffDuration:  time.Millisecond,
		},
	}}, nil)

	relay := gpio.NewFakeOutput()
	collector := control.NewCollector(relay, nil, nil)

	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	tracker := status.NewTracker(loopStart, status.Config{PollMs: 100})

	return runDeps{
		watch:     w,
		collector: collector,
		tracker:   tracker,
		pub:       pub,
		pubStatus: pub,
		heartbeat: heartbeat,
	}, pub, relay
}

// driveRunLoop runs runLoop in a goroutine, feeds it the given tick times,
// then delivers the signal and returns runLoop's error.
func driveRunLoop(t *testing.T, d runDeps, ticks []time.Time, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(d, func() time.Time { return loopStart }, tick, sig)
	}()

	for _, tt := range ticks {
		tick <- tt
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopHeartbeatCadence(t *testing.T) {
	// 6 ticks at 5-minute steps against a 15-minute interval: heartbeats
	// fire at +15m and +30m, nowhere else.
	d, pub, _ := newLoopDeps(t, 15*time.Minute)

	err := driveRunLoop(t, d, ticksFrom(loopStart, 5*time.Minute, 6), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats int
	for _, se := range pub.SystemEvents {
		if se.Event != "HEARTBEAT" {
			continue
		}
		heartbeats++
		if se.Retained {
			t.Error("HEARTBEAT must not be retained")
		}
		if len(se.RawPayload) == 0 {
			t.Error("HEARTBEAT missing status payload")
		}
	}
	if heartbeats != 2 {
		t.Errorf("expected 2 HEARTBEAT events, got %d", heartbeats)
	}
}

func TestRunLoopNoHeartbeatWhenDisabled(t *testing.T) {
	d, pub, _ := newLoopDeps(t, 0)

	err := driveRunLoop(t, d, ticksFrom(loopStart, time.Hour, 4), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// Only the shutdown event.
	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", pub.SystemEvents[0].Event)
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	d, pub, _ := newLoopDeps(t, 0)

	err := driveRunLoop(t, d, ticksFrom(loopStart, 100*time.Millisecond, 3), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}

	// The raw payload is the full status document tagged with the event.
	var sj status.StatusJSON
	if err := json.Unmarshal(se.RawPayload, &sj); err != nil {
		t.Fatalf("decode shutdown payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("payload event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	d, pub, _ := newLoopDeps(t, 0)

	err := driveRunLoop(t, d, nil, syscall.SIGINT)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", pub.SystemEvents[0].Reason)
	}
}

func TestRunLoopForceOffBeforeReturn(t *testing.T) {
	d, _, relay := newLoopDeps(t, 0)

	// Motor running when the signal arrives.
	d.collector.Handle(bus.NewEvent(bus.CollectorOn, control.ManagerSource))
	if !relay.State() {
		t.Fatal("relay should be energized before shutdown")
	}

	err := driveRunLoop(t, d, ticksFrom(loopStart, 100*time.Millisecond, 2), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if relay.State() {
		t.Error("relay still energized after runLoop returned")
	}
	if d.collector.On() {
		t.Error("collector reports on after shutdown")
	}
}

func TestRunLoopShutdownWithoutPublisher(t *testing.T) {
	d, _, relay := newLoopDeps(t, 0)
	d.pub = nil
	d.pubStatus = nil
	d.collector.Handle(bus.NewEvent(bus.CollectorOn, control.ManagerSource))

	err := driveRunLoop(t, d, ticksFrom(loopStart, 100*time.Millisecond, 2), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if relay.State() {
		t.Error("relay still energized after runLoop returned")
	}
}

func TestRunLoopPublishErrorTolerated(t *testing.T) {
	// The broker failing must never block shutdown.
	d, pub, relay := newLoopDeps(t, 15*time.Minute)
	pub.PublishSystemError = os.ErrDeadlineExceeded
	d.collector.Handle(bus.NewEvent(bus.CollectorOn, control.ManagerSource))

	err := driveRunLoop(t, d, ticksFrom(loopStart, 10*time.Minute, 3), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if relay.State() {
		t.Error("relay still energized after runLoop returned")
	}
	if len(pub.SystemEvents) != 0 {
		t.Errorf("expected 0 recorded system events (publish failed), got %d", len(pub.SystemEvents))
	}
}

func TestRunLoopTickRefreshesTracker(t *testing.T) {
	d, _, _ := newLoopDeps(t, 0)

	err := driveRunLoop(t, d, ticksFrom(loopStart, 100*time.Millisecond, 4), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := d.tracker.Snapshot()
	if len(snap.Machines) != 1 || snap.Machines[0].Name != "tablesaw" {
		t.Fatalf("tracker machines: %+v", snap.Machines)
	}
	if !snap.Machines[0].On {
		t.Error("tablesaw should be on after the dwell elapsed")
	}
	if !snap.MQTTConnected {
		t.Error("tracker should report MQTT connected")
	}
}
