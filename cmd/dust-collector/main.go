// Command dust-collector watches machine current sensors, sequences blast
// gates, and runs the dust collector. State is published to MQTT and served
// on an HTTP status page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/dust-collector/internal/bus"
	"github.com/sweeney/dust-collector/internal/config"
	"github.com/sweeney/dust-collector/internal/control"
	"github.com/sweeney/dust-collector/internal/debounce"
	"github.com/sweeney/dust-collector/internal/gate"
	"github.com/sweeney/dust-collector/internal/gpio"
	"github.com/sweeney/dust-collector/internal/i2c"
	"github.com/sweeney/dust-collector/internal/indicator"
	"github.com/sweeney/dust-collector/internal/mqtt"
	"github.com/sweeney/dust-collector/internal/register"
	"github.com/sweeney/dust-collector/internal/sensor"
	"github.com/sweeney/dust-collector/internal/status"
	"github.com/sweeney/dust-collector/internal/watch"
	"github.com/sweeney/dust-collector/internal/web"
)

// settleTime is how long the expanders get after the safe-byte write before
// any gate is commanded.
const settleTime = 200 * time.Millisecond

// drainTimeout bounds the shutdown sequence: web server drain, bus drain,
// safe-byte restore.
const drainTimeout = 2 * time.Second

func main() {
	cfgPath := flag.String("config", "/etc/dust-collector.yaml", "Configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	check := flag.Bool("check", false, "Validate the configuration and exit")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "bad log level %q\n", *logLevel)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if *check {
		fmt.Printf("%s: ok (%d machines)\n", *cfgPath, len(cfg.Machines))
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := slog.Default()

	i2cBus, err := i2c.Open(cfg.I2C.Bus)
	if err != nil {
		return fmt.Errorf("open i2c bus %d: %w", cfg.I2C.Bus, err)
	}
	defer i2cBus.Close()

	chip, err := gpio.OpenChip(cfg.GPIOChip)
	if err != nil {
		return fmt.Errorf("open gpio chip %s: %w", cfg.GPIOChip, err)
	}
	defer chip.Close()

	// Expanders boot into their safe state before anything is driven.
	relayDev := register.New(i2cBus, register.Config{
		Name:      "relays",
		Addr:      cfg.I2C.RelayAddr,
		SafeByte:  safeByte(cfg.I2C.RelayActiveLow),
		ActiveLow: cfg.I2C.RelayActiveLow,
	}, log)
	ledDev := register.New(i2cBus, register.Config{
		Name:      "leds",
		Addr:      cfg.I2C.LEDAddr,
		SafeByte:  safeByte(cfg.I2C.LEDActiveLow),
		ActiveLow: cfg.I2C.LEDActiveLow,
	}, log)
	if err := relayDev.Init(); err != nil {
		return fmt.Errorf("init relay expander: %w", err)
	}
	defer relayDev.Close()
	if err := ledDev.Init(); err != nil {
		// The panel is cosmetic; run without it.
		log.Warn("init led expander", "error", err)
	}
	defer ledDev.Close()
	time.Sleep(settleTime)

	relayOut, err := chip.Output(cfg.Collector.SSRPin, cfg.Collector.ActiveHigh)
	if err != nil {
		return fmt.Errorf("collector ssr pin %d: %w", cfg.Collector.SSRPin, err)
	}
	var stripOut gpio.Output
	if cfg.Collector.StripPin != -1 {
		stripOut, err = chip.Output(cfg.Collector.StripPin, true)
		if err != nil {
			return fmt.Errorf("led strip pin %d: %w", cfg.Collector.StripPin, err)
		}
	}

	reader, err := buildReader(cfg, i2cBus, chip)
	if err != nil {
		return err
	}
	defer reader.Close()

	gates, leds, err := buildGates(cfg, relayDev, chip, log)
	if err != nil {
		return err
	}

	// An offline expander means no gate on it can trust its drive bits.
	relayDev.OnOffline(func(err error) {
		log.Error("relay expander offline, faulting all gates", "error", err)
		for _, g := range gates {
			g.Fail(err)
		}
	})

	b := bus.New(log)
	defer b.Close()

	topo := bus.NewTopology()
	topo.Declare("machine-manager", bus.MachineOn, bus.MachineOff)
	topo.Declare("gate-controller", bus.MachineOn, bus.MachineOff)
	topo.Declare("collector", bus.CollectorOn, bus.CollectorOff)
	topo.Declare("indicator-panel",
		bus.MachineOn, bus.MachineOff,
		bus.GateOpened, bus.GateClosed, bus.GateFault,
		bus.CollectorOn, bus.CollectorOff)
	topo.Declare("mqtt-bridge",
		bus.MachineOn, bus.MachineOff,
		bus.GateOpened, bus.GateClosed, bus.GateFault,
		bus.CollectorOn, bus.CollectorOff)

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.Std().Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Std().Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	})
	tracker.SetTopology(topo.Table())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Controllers. Order matters only for the gate controller, whose
	// terminal hooks must be registered before the gates start.
	manager := control.NewManager(b, log)
	gatectrl := control.NewGateController(b, gates, log)
	collector := control.NewCollector(relayOut, stripOut, log)
	panel := indicator.NewPanel(ledDev, leds, cfg.Collector.LampBit, log)
	panel.Boot()

	for _, g := range gates {
		if err := g.Start(ctx); err != nil {
			return fmt.Errorf("start gate %s: %w", g.Name(), err)
		}
		defer g.Stop()
	}

	go manager.Run(ctx, b.Subscribe("machine-manager"))
	go gatectrl.Run(ctx, b.Subscribe("gate-controller"))
	go collector.Run(ctx, b.Subscribe("collector"))
	go panel.Run(ctx, b.Subscribe("indicator-panel"))

	// MQTT is optional; the daemon is fully functional without a broker.
	var pub mqtt.Publisher
	var pubStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		rp, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			log.Warn("mqtt connect failed, running without broker", "broker", cfg.Broker, "error", err)
		} else {
			pub = rp
			pubStatus = rp
			defer rp.Close()
			bridge := mqtt.NewBridge(b, rp)
			defer bridge.Close()
			go bridge.Run(ctx)

			snap := tracker.Snapshot()
			startup := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "STARTUP",
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
			}
			if err := rp.PublishSystem(startup); err != nil {
				log.Warn("publish startup event", "error", err)
			}
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server", "error", err)
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), drainTimeout)
			defer shutCancel()
			srv.Shutdown(shutCtx)
		}()
		log.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	w := watch.New(reader, b, machineConfigs(cfg), log)

	log.Info("started",
		"machines", len(cfg.Machines),
		"poll", cfg.Poll.Std(),
		"broker", cfg.Broker)

	ticker := time.NewTicker(cfg.Poll.Std())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(runDeps{
		watch:     w,
		gates:     gates,
		collector: collector,
		tracker:   tracker,
		pub:       pub,
		pubStatus: pubStatus,
		heartbeat: cfg.Heartbeat.Std(),
	}, time.Now, ticker.C, sigCh)
}

type runDeps struct {
	watch     *watch.Watch
	gates     []*gate.Gate
	collector *control.Collector
	tracker   *status.Tracker
	pub       mqtt.Publisher
	pubStatus mqtt.ConnectionStatus
	heartbeat time.Duration
}

func runLoop(d runDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			slog.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.collector.ForceOff()
			if d.pub != nil {
				refreshTracker(d)
				snap := d.tracker.Snapshot()
				event := mqtt.SystemEvent{
					Timestamp:  snap.Now,
					Event:      "SHUTDOWN",
					Reason:     signalName,
					Retained:   true,
					RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
				}
				if err := d.pub.PublishSystem(event); err != nil {
					slog.Warn("publish shutdown event", "error", err)
				}
			}
			return nil

		case t := <-tick:
			d.watch.Poll(t)
			refreshTracker(d)

			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				if d.pub != nil {
					snap := d.tracker.Snapshot()
					hb := mqtt.SystemEvent{
						Timestamp:  snap.Now,
						Event:      "HEARTBEAT",
						RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
					}
					if err := d.pub.PublishSystem(hb); err != nil {
						slog.Warn("heartbeat publish", "error", err)
					}
				}
			}
		}
	}
}

func refreshTracker(d runDeps) {
	d.tracker.UpdateMachines(d.watch.Snapshot(), d.watch.EventCounts())
	gs := make([]status.GateStatus, 0, len(d.gates))
	for _, g := range d.gates {
		st := status.GateStatus{Machine: g.Name(), State: g.State()}
		if err := g.Err(); err != nil {
			st.Fault = err.Error()
		}
		gs = append(gs, st)
	}
	d.tracker.UpdateGates(gs)
	d.tracker.SetCollector(d.collector.On())
	if d.pubStatus != nil {
		d.tracker.SetMQTTConnected(d.pubStatus.IsConnected())
	}
}

// safeByte is the raw byte that leaves every output de-energized.
func safeByte(activeLow bool) byte {
	if activeLow {
		return 0xFF
	}
	return 0x00
}

func machineConfigs(cfg *config.Config) []watch.MachineConfig {
	out := make([]watch.MachineConfig, 0, len(cfg.Machines))
	for _, m := range cfg.Machines {
		out = append(out, watch.MachineConfig{
			Name: m.Name,
			Debounce: debounce.Config{
				OnThreshold:  m.OnThreshold,
				OffThreshold: m.OffThreshold,
				OnDuration:   m.OnDwell.Std(),
				OffDuration:  m.OffDwell.Std(),
			},
		})
	}
	return out
}

func buildReader(cfg *config.Config, i2cBus i2c.Bus, chip *gpio.Chip) (sensor.Reader, error) {
	var channels []sensor.ADS1115Channel
	var contactNames []string
	var contactInputs []gpio.Input

	for _, m := range cfg.Machines {
		switch m.Source {
		case "adc":
			channels = append(channels, sensor.ADS1115Channel{Machine: m.Name, Channel: m.Channel})
		case "gpio":
			in, err := chip.Input(m.Pin, false)
			if err != nil {
				return nil, fmt.Errorf("contact pin %d for %s: %w", m.Pin, m.Name, err)
			}
			contactNames = append(contactNames, m.Name)
			contactInputs = append(contactInputs, in)
		}
	}

	var parts sensor.Composite
	if len(channels) > 0 {
		adc, err := sensor.NewADS1115(i2cBus, cfg.I2C.ADCAddr, channels)
		if err != nil {
			return nil, err
		}
		parts = append(parts, adc)
	}
	if len(contactNames) > 0 {
		contacts, err := sensor.NewContactReader(contactNames, contactInputs)
		if err != nil {
			return nil, err
		}
		parts = append(parts, contacts)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

func buildGates(cfg *config.Config, relayDev *register.Device, chip *gpio.Chip, log *slog.Logger) ([]*gate.Gate, []indicator.GateLEDs, error) {
	var gates []*gate.Gate
	var leds []indicator.GateLEDs

	for _, m := range cfg.Machines {
		var confirm gate.Confirmer
		switch m.Gate.Confirm {
		case "switch":
			openSw, err := chip.Input(m.Gate.SwitchOpenPin, false)
			if err != nil {
				return nil, nil, fmt.Errorf("open switch pin %d for %s: %w", m.Gate.SwitchOpenPin, m.Name, err)
			}
			closeSw, err := chip.Input(m.Gate.SwitchClosePin, false)
			if err != nil {
				return nil, nil, fmt.Errorf("close switch pin %d for %s: %w", m.Gate.SwitchClosePin, m.Name, err)
			}
			confirm = gate.NewSwitchConfirmer(openSw, closeSw, 0)
		default:
			confirm = gate.NewTimerConfirmer(m.Gate.Actuation.Std())
		}

		g, err := gate.New(relayDev, confirm, gate.Config{
			Name:     m.Name,
			OpenBit:  m.Gate.OpenBit,
			CloseBit: m.Gate.CloseBit,
			DeadTime: m.Gate.DeadTime.Std(),
			Timeout:  m.Gate.Timeout.Std(),
		}, log)
		if err != nil {
			return nil, nil, err
		}
		gates = append(gates, g)

		if m.Gate.GreenLED != -1 && m.Gate.RedLED != -1 {
			leds = append(leds, indicator.GateLEDs{
				Machine:  m.Name,
				GreenBit: m.Gate.GreenLED,
				RedBit:   m.Gate.RedLED,
			})
		}
	}
	return gates, leds, nil
}
