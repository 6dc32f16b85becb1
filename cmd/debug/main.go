package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/app"
	"github.com/SkyLord2/perception-network-status/internal/bus"
	"github.com/SkyLord2/perception-network-status/internal/config"
	"github.com/SkyLord2/perception-network-status/internal/logging"
	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/netstate"
	"github.com/SkyLord2/perception-network-status/internal/persistence"
	"github.com/SkyLord2/perception-network-status/internal/sources/httpprobe"
	"github.com/SkyLord2/perception-network-status/internal/sources/serialmodem"
	"github.com/SkyLord2/perception-network-status/internal/sources/wifipoll"
	"github.com/SkyLord2/perception-network-status/internal/statusapi"
)

type options struct {
	Once      bool
	ListenFor time.Duration
	ProbeURL  string
	Wireless  string
	Endpoint  string
	StatusAPI bool
	Verbose   bool
	Reset     bool
}

func parseOptions(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("netstatus-debug", flag.ContinueOnError)
	fs.BoolVar(&opts.Once, "once", false, "probe current state synchronously, print verdicts and exit")
	fs.DurationVar(&opts.ListenFor, "listen-for", 0, "watch events for this long (0 = until interrupted)")
	fs.StringVar(&opts.ProbeURL, "probe-url", "", "override the connectivity probe URL")
	fs.StringVar(&opts.Wireless, "wireless", "", "wireless source: auto, wifi, modem or none")
	fs.StringVar(&opts.Endpoint, "endpoint", "", "modem endpoint (serial://... or tcp://...)")
	fs.BoolVar(&opts.StatusAPI, "status-api", false, "serve the local status API while watching")
	fs.BoolVar(&opts.Verbose, "verbose", false, "debug-level logging")
	fs.BoolVar(&opts.Reset, "reset", false, "clear the persisted status snapshot and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	return opts, nil
}

// applyOverrides folds CLI flags into the loaded config.
func applyOverrides(cfg config.AppConfig, opts options) config.AppConfig {
	if opts.ProbeURL != "" {
		cfg.Monitor.Probe.URL = opts.ProbeURL
	}
	if opts.Wireless != "" {
		cfg.Monitor.WirelessSource = config.WirelessSourceType(strings.ToLower(opts.Wireless))
	}
	if opts.Endpoint != "" {
		cfg.Monitor.Modem.Endpoint = opts.Endpoint
		if opts.Wireless == "" {
			cfg.Monitor.WirelessSource = config.WirelessSourceModem
		}
	}
	cfg.StatusAPI.Enabled = opts.StatusAPI
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.FillMissingDefaults()

	return cfg
}

func buildWirelessSource(logger *slog.Logger, cfg config.MonitorConfig) (monitor.WirelessSource, error) {
	switch cfg.WirelessSource {
	case config.WirelessSourceNone:
		return nil, nil
	case config.WirelessSourceModem:
		return serialmodem.New(logger, cfg.Modem.Endpoint)
	default:
		if cfg.WirelessSource == config.WirelessSourceAuto && cfg.Modem.Endpoint != "" {
			return serialmodem.New(logger, cfg.Modem.Endpoint)
		}

		return wifipoll.New(logger, cfg.Wifi.Interface,
			time.Duration(cfg.Wifi.PollIntervalSeconds)*time.Second), nil
	}
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse flags: %v\n", err)
		os.Exit(2)
	}

	paths, err := app.ResolvePaths()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve paths: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg = applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "validate config: %v\n", err)
		os.Exit(1)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logMgr.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Reset {
		os.Exit(resetSnapshot(ctx, paths.DBFile))
	}
	if opts.Once {
		os.Exit(probeOnce(ctx, logMgr, cfg))
	}
	os.Exit(watch(ctx, logMgr, cfg, opts.ListenFor))
}

func resetSnapshot(ctx context.Context, dbFile string) int {
	db, err := persistence.Open(ctx, dbFile)
	if err != nil {
		slog.Error("open snapshot db", "error", err)

		return 1
	}
	defer func() { _ = db.Close() }()

	if err := persistence.NewSnapshotRepo(db).Clear(ctx); err != nil {
		slog.Error("clear snapshot", "error", err)

		return 1
	}
	fmt.Println("persisted status snapshot cleared")

	return 0
}

// probeOnce queries the sources synchronously, classifies the results the
// same way the coordinator would, and prints the verdicts.
func probeOnce(ctx context.Context, logMgr *logging.Manager, cfg config.AppConfig) int {
	probeCtx, cancel := context.WithTimeout(ctx,
		time.Duration(cfg.Monitor.Probe.TimeoutSeconds+5)*time.Second)
	defer cancel()

	connSrc := httpprobe.New(
		logMgr.Logger("source.httpprobe"),
		cfg.Monitor.Probe.URL,
		time.Duration(cfg.Monitor.Probe.IntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.Probe.TimeoutSeconds)*time.Second,
	)
	raw, err := connSrc.Current(probeCtx)
	if err != nil {
		slog.Error("connectivity probe failed", "error", err)

		return 1
	}
	verdict := netstate.ClassifyConnectivity(raw)
	fmt.Printf("connectivity: %s (mask: %s)\n", verdict, raw)

	wirelessSrc, err := buildWirelessSource(logMgr.Logger("source.wireless"), cfg.Monitor)
	if err != nil {
		slog.Error("configure wireless source", "error", err)

		return 1
	}
	if wirelessSrc == nil {
		fmt.Println("wireless: no source configured")

		return 0
	}

	sample, err := wirelessSrc.Current(probeCtx)
	switch {
	case err != nil:
		fmt.Printf("wireless: probe failed: %v\n", err)
	case !sample.Connected:
		fmt.Println("wireless: not associated")
	default:
		fmt.Printf("wireless: %s quality %d%% (~%d dBm)\n",
			sample.Interface, sample.Quality, netstate.EstimateRSSI(sample.Quality))
	}

	return 0
}

// watch runs the full classification pipeline headless and logs every
// event the consumer loop would see.
func watch(ctx context.Context, logMgr *logging.Manager, cfg config.AppConfig, listenFor time.Duration) int {
	if listenFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, listenFor)
		defer cancel()
	}

	messageBus := bus.New(logMgr.Logger("bus"))
	defer messageBus.Close()

	reachSub := messageBus.Subscribe(monitor.TopicReachability)
	signalSub := messageBus.Subscribe(monitor.TopicSignal)
	linkSub := messageBus.Subscribe(monitor.TopicLink)
	healthSub := messageBus.Subscribe(monitor.TopicSourceHealth)

	connSrc := httpprobe.New(
		logMgr.Logger("source.httpprobe"),
		cfg.Monitor.Probe.URL,
		time.Duration(cfg.Monitor.Probe.IntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.Probe.TimeoutSeconds)*time.Second,
	)
	wirelessSrc, err := buildWirelessSource(logMgr.Logger("source.wireless"), cfg.Monitor)
	if err != nil {
		slog.Error("configure wireless source", "error", err)

		return 1
	}

	coordinator := monitor.NewCoordinator(
		logMgr.Logger("monitor"),
		messageBus,
		connSrc,
		wirelessSrc,
		cfg.Monitor.SignalDropThreshold,
		cfg.Monitor.SignalRecoverThreshold,
	)
	if err := coordinator.Start(ctx); err != nil {
		slog.Error("start monitor", "error", err)

		return 1
	}
	defer coordinator.Stop()

	if cfg.StatusAPI.Enabled {
		metrics := statusapi.NewMetrics()
		// server.Run starts the hub's delivery loop.
		hub := statusapi.NewHub(logMgr.Logger("statusapi"), metrics)
		defer hub.Close()

		server := statusapi.NewServer(logMgr.Logger("statusapi"), cfg.StatusAPI.Listen,
			func() any { return coordinator.Snapshot() }, hub, metrics)
		go func() {
			if err := server.Run(ctx); err != nil {
				slog.Error("status api server stopped", "error", err)
			}
		}()
		slog.Info("status api listening", "addr", cfg.StatusAPI.Listen)
	}

	slog.Info("watching verdicts, interrupt to stop", "listen_for", listenFor)
	for {
		select {
		case <-ctx.Done():
			return 0
		case raw := <-reachSub:
			if event, ok := raw.(monitor.ReachabilityEvent); ok {
				fmt.Printf("%s reachability: %s (mask: %s)\n",
					event.At.Format(time.TimeOnly), event.State, event.Raw)
			}
		case raw := <-signalSub:
			if event, ok := raw.(monitor.SignalEvent); ok {
				fmt.Printf("%s signal: %s quality %d%% (~%d dBm)\n",
					event.At.Format(time.TimeOnly), signalLabel(event.Weak), event.Quality, event.RSSI)
			}
		case raw := <-linkSub:
			if event, ok := raw.(monitor.LinkEvent); ok {
				fmt.Printf("%s link: %s connected=%v\n",
					event.At.Format(time.TimeOnly), event.Interface, event.Connected)
			}
		case raw := <-healthSub:
			if event, ok := raw.(monitor.SourceHealthEvent); ok {
				fmt.Printf("%s source degraded: %s (%s)\n",
					event.At.Format(time.TimeOnly), event.Source, event.Err)
			}
		}
	}
}

func signalLabel(weak bool) string {
	if weak {
		return "weak"
	}

	return "strong"
}
