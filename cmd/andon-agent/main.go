// Command andon-agent watches GPIO inputs and reports each debounced
// transition to an andon collector over TCP, riding out network outages
// with an active interface recovery loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/andon-agent/internal/agent"
	"github.com/sweeney/andon-agent/internal/config"
	"github.com/sweeney/andon-agent/internal/delivery"
	"github.com/sweeney/andon-agent/internal/gpio"
	"github.com/sweeney/andon-agent/internal/logging"
	"github.com/sweeney/andon-agent/internal/monitor"
	"github.com/sweeney/andon-agent/internal/netcheck"
	"github.com/sweeney/andon-agent/internal/nethealth"
	"github.com/sweeney/andon-agent/internal/status"
	"github.com/sweeney/andon-agent/internal/telemetry"
	"github.com/sweeney/andon-agent/internal/web"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	printState := flag.Bool("print-state", false, "Print each pin's resting state and exit")
	flag.Parse()

	cfg, found, err := config.Load(*configPath)
	if err != nil {
		logging.Default().Error("invalid configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging, version)
	if !found {
		log.Info("config file not found, using defaults", "path", *configPath)
	}

	if err := run(cfg, *printState, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, printState bool, log *logging.Logger) error {
	watcher, err := gpio.NewRealWatcher(cfg.GPIO.Chip, cfg.GPIO.Debounce())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer watcher.Close()

	if printState {
		return printRestingState(os.Stdout, watcher, cfg.GPIO.Pins)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Status tracker (before STARTUP telemetry so the snapshot is available)
	statusCfg := status.Config{
		Device:         cfg.Device.Name,
		Collector:      cfg.Collector.Addr(),
		Pins:           cfg.GPIO.Pins,
		DebounceMs:     cfg.GPIO.DebounceMs,
		CheckIntervalS: cfg.Network.CheckIntervalS,
		HTTPAddr:       cfg.HTTP.Addr,
	}
	if cfg.Telemetry.Enabled {
		statusCfg.Broker = cfg.Telemetry.Broker
	}
	tracker := status.NewTracker(time.Now(), statusCfg)

	runner := netcheck.ExecRunner{}
	checker := netcheck.NewChecker(netcheck.CheckerConfig{
		CollectorAddr:    cfg.Collector.Addr(),
		ServerCheck:      cfg.Network.ServerCheck,
		GatewayCheck:     cfg.Network.GatewayCheck,
		CollectorTimeout: cfg.Network.ServerProbeTimeout(),
		GatewayTimeout:   cfg.Network.GatewayPingTimeout(),
	}, runner)

	health := nethealth.New(nethealth.Config{
		CheckInterval:     cfg.Network.CheckInterval(),
		ReconnectTimeout:  cfg.Network.ReconnectTimeout(),
		RetryBackoff:      cfg.Network.RetryBackoff(),
		CommandTimeout:    cfg.Network.CommandTimeout(),
		SettleDelay:       cfg.Network.SettleDelay(),
		WifiInterface:     cfg.Network.WifiInterface,
		EthernetInterface: cfg.Network.EthernetInterface,
		WifiService:       cfg.Network.WifiService,
	}, checker, runner, log)

	client := delivery.NewClient(cfg.Collector.Addr(), cfg.Collector.Timeout(), log)
	coord := agent.New(cfg.Device.Name, client, health, tracker, log)

	var publisher telemetry.Publisher
	var pubStatus telemetry.ConnectionStatus
	if cfg.Telemetry.Enabled {
		p, err := telemetry.NewRealPublisher(cfg.Telemetry, cfg.Device.Name, log)
		if err != nil {
			log.Warn("telemetry disabled, broker unreachable",
				"broker", cfg.Telemetry.Broker, "error", err)
		} else {
			publisher = p
			pubStatus = p
			coord.SetMirror(p)
			defer p.Close()
		}
	}

	health.SetOnChange(func(connected bool) {
		st := health.State()
		tracker.SetConnectivity(st.Connected, gatewayString(st.Gateway), st.LastCheck)
		if publisher == nil {
			return
		}
		name := "CONNECTIVITY_LOST"
		if connected {
			name = "CONNECTIVITY_RESTORED"
		}
		ev := telemetry.SystemEvent{Timestamp: time.Now(), Event: name}
		if err := publisher.PublishSystem(ev); err != nil {
			log.Warn("telemetry publish failed", "event", name, "error", err)
		}
	})

	// Seed each pin's level before watching so the first edge reports a
	// meaningful hold duration.
	mon := monitor.New(coord.HandleTransition)
	for _, pin := range cfg.GPIO.Pins {
		level, err := watcher.RestingState(pin)
		if err != nil {
			return fmt.Errorf("read pin %d: %w", pin, err)
		}
		mon.Seed(pin, level, time.Now())
		tracker.SetPin(pin, string(level))
	}
	for _, pin := range cfg.GPIO.Pins {
		if err := watcher.Watch(pin, mon.HandleEdge); err != nil {
			return fmt.Errorf("watch pin %d: %w", pin, err)
		}
	}
	tracker.SetSeeded(true)

	// One informational collector probe; the result does not gate startup.
	if netcheck.ProbeCollector(ctx, cfg.Collector.Addr(), cfg.Network.ServerProbeTimeout()) {
		log.Info("collector reachable", "addr", cfg.Collector.Addr())
		tracker.SetConnectivity(true, "", time.Now())
	} else {
		log.Warn("collector not reachable at startup", "addr", cfg.Collector.Addr())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx)
	}()

	if publisher != nil {
		snap := tracker.Snapshot()
		ev := telemetry.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(ev); err != nil {
			log.Warn("failed to publish startup event", "error", err)
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	statusTicker := time.NewTicker(cfg.Network.CheckInterval())
	defer statusTicker.Stop()

	var heartbeatTick <-chan time.Time
	if publisher != nil && cfg.Telemetry.HeartbeatInterval() > 0 {
		hbTicker := time.NewTicker(cfg.Telemetry.HeartbeatInterval())
		defer hbTicker.Stop()
		heartbeatTick = hbTicker.C
	}

	log.Info("agent started",
		"device", cfg.Device.Name,
		"collector", cfg.Collector.Addr(),
		"pins", cfg.GPIO.Pins,
		"debounce", cfg.GPIO.Debounce())

	sigName := runLoop(tracker, health.State, publisher, pubStatus, log,
		statusTicker.C, heartbeatTick, sigCh)
	log.Info("shutting down", "signal", sigName)

	// Stop the health loop at its next iteration boundary before the
	// shutdown snapshot, so the snapshot is stable.
	cancel()
	wg.Wait()

	if publisher != nil {
		syncTracker(tracker, health.State(), pubStatus)
		snap := tracker.Snapshot()
		ev := telemetry.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "SHUTDOWN",
			Reason:     sigName,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", sigName),
		}
		if err := publisher.PublishSystem(ev); err != nil {
			log.Warn("failed to publish shutdown event", "error", err)
		}
	}

	return nil
}

// runLoop blocks until a termination signal arrives, keeping the status
// tracker fresh and publishing heartbeats. heartbeatTick must only be
// non-nil when publisher is non-nil. Returns the signal name.
func runLoop(tracker *status.Tracker, healthState func() nethealth.State, publisher telemetry.Publisher, pubStatus telemetry.ConnectionStatus, log *logging.Logger, statusTick, heartbeatTick <-chan time.Time, sig <-chan os.Signal) string {
	for {
		select {
		case s := <-sig:
			return signalName(s)

		case <-statusTick:
			syncTracker(tracker, healthState(), pubStatus)

		case <-heartbeatTick:
			syncTracker(tracker, healthState(), pubStatus)
			snap := tracker.Snapshot()
			ev := telemetry.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(ev); err != nil {
				log.Warn("heartbeat publish failed", "error", err)
			} else {
				log.Debug("heartbeat published", "uptime_sec", int64(snap.Uptime().Seconds()))
			}
		}
	}
}

// syncTracker refreshes the tracker's connectivity and telemetry fields.
func syncTracker(tracker *status.Tracker, st nethealth.State, pubStatus telemetry.ConnectionStatus) {
	tracker.SetConnectivity(st.Connected, gatewayString(st.Gateway), st.LastCheck)
	if pubStatus != nil {
		tracker.SetTelemetryConnected(pubStatus.IsConnected())
	}
}

func printRestingState(out io.Writer, w gpio.Watcher, pins []int) error {
	for _, pin := range pins {
		level, err := w.RestingState(pin)
		if err != nil {
			return fmt.Errorf("read pin %d: %w", pin, err)
		}
		fmt.Fprintf(out, "pin %d: %s\n", pin, level)
	}
	return nil
}

func gatewayString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
