package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/bus"
	"github.com/SkyLord2/perception-network-status/internal/config"
	"github.com/SkyLord2/perception-network-status/internal/logging"
	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/mqttpub"
	"github.com/SkyLord2/perception-network-status/internal/notifications"
	"github.com/SkyLord2/perception-network-status/internal/persistence"
	"github.com/SkyLord2/perception-network-status/internal/platform"
	"github.com/SkyLord2/perception-network-status/internal/sources/httpprobe"
	"github.com/SkyLord2/perception-network-status/internal/sources/serialmodem"
	"github.com/SkyLord2/perception-network-status/internal/sources/wifipoll"
	"github.com/SkyLord2/perception-network-status/internal/statusapi"
)

const wirelessProbeTimeout = 3 * time.Second

// Runtime owns every long-lived component of the agent and wires them
// together: config, logging, the snapshot database, the event bus, the
// monitor coordinator with its sources, the status service and the
// outward surfaces (status API, MQTT, notifications).
type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	SnapshotRepo *persistence.SnapshotRepo
	Writer       *persistence.AsyncWriter

	Coordinator *monitor.Coordinator
	Status      *StatusService

	StatusServer *statusapi.Server
	hub          *statusapi.Hub
	Metrics      *statusapi.Metrics
	MQTT         *mqttpub.Publisher

	AutostartManager platform.AutostartManager
	SystemActions    platform.SystemActions
}

func Initialize(parent context.Context) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}
	rt.AutostartManager = platform.NewAutostartManager()
	rt.SystemActions = platform.NewSystemActions()

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting netstatus runtime", "version", BuildVersion(), "build_date", BuildDateYMD())
	if err := rt.syncAutostart(cfg, "startup"); err != nil {
		slog.Warn("sync autostart on startup", "error", err)
	}

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.DB = db
	rt.SnapshotRepo = persistence.NewSnapshotRepo(db)

	writer := persistence.NewAsyncWriter(logMgr.Logger("persistence"), 64)
	writer.Start(ctx)
	rt.Writer = writer

	rt.Bus = bus.New(logMgr.Logger("bus"))

	if cfg.StatusAPI.Enabled {
		rt.Metrics = statusapi.NewMetrics()
		// The hub's delivery loop is started by StatusServer.Run below.
		rt.hub = statusapi.NewHub(logMgr.Logger("statusapi"), rt.Metrics)
	}

	rt.MQTT = mqttpub.New(logMgr.Logger("mqtt"), cfg.MQTT)
	if err := rt.MQTT.Connect(); err != nil {
		slog.Warn("mqtt connect failed, continuing without broker", "error", err)
	}

	rt.Status = NewStatusService(logMgr.Logger("app.status"), rt.Bus, rt.CurrentConfig, StatusSinks{
		Persist:   rt.persistSnapshot,
		Sender:    notifications.NewDesktopSender(logMgr.Logger("notifications"), Name),
		Broadcast: rt.broadcast,
		Metrics:   rt.Metrics,
		MQTT:      rt.MQTT,
	})
	rt.seedFromStore(ctx)
	rt.Status.Start(ctx)

	if cfg.StatusAPI.Enabled {
		rt.StatusServer = statusapi.NewServer(
			logMgr.Logger("statusapi"),
			cfg.StatusAPI.Listen,
			func() any { return rt.Status.CurrentSnapshot() },
			rt.hub,
			rt.Metrics,
		)
		go func() {
			if err := rt.StatusServer.Run(ctx); err != nil {
				slog.Error("status api server stopped", "error", err)
			}
		}()
	}

	connectivitySrc := httpprobe.New(
		logMgr.Logger("source.httpprobe"),
		cfg.Monitor.Probe.URL,
		time.Duration(cfg.Monitor.Probe.IntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.Probe.TimeoutSeconds)*time.Second,
	)
	wirelessSrc, err := buildWirelessSource(ctx, logMgr.Logger("source.wireless"), cfg.Monitor)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}

	rt.Coordinator = monitor.NewCoordinator(
		logMgr.Logger("monitor"),
		rt.Bus,
		connectivitySrc,
		wirelessSrc,
		cfg.Monitor.SignalDropThreshold,
		cfg.Monitor.SignalRecoverThreshold,
	)

	return rt, nil
}

// StartMonitor registers with the notification sources and runs the
// startup probe. Called after Initialize so the status service is already
// consuming when the first verdict is posted.
func (r *Runtime) StartMonitor(ctx context.Context) error {
	if r.Coordinator == nil {
		return errors.New("monitor coordinator is not initialized")
	}

	return r.Coordinator.Start(ctx)
}

// buildWirelessSource picks the signal-quality backend. In auto mode a
// configured modem endpoint wins; otherwise the OS wireless reader is
// probed once, and an unsupported platform simply runs without a wireless
// source.
func buildWirelessSource(ctx context.Context, logger *slog.Logger, cfg config.MonitorConfig) (monitor.WirelessSource, error) {
	pollInterval := time.Duration(cfg.Wifi.PollIntervalSeconds) * time.Second

	switch cfg.WirelessSource {
	case config.WirelessSourceNone:
		return nil, nil
	case config.WirelessSourceModem:
		src, err := serialmodem.New(logger, cfg.Modem.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("configure modem source: %w", err)
		}

		return src, nil
	case config.WirelessSourceWifi:
		return wifipoll.New(logger, cfg.Wifi.Interface, pollInterval), nil
	default: // auto
		if cfg.Modem.Endpoint != "" {
			src, err := serialmodem.New(logger, cfg.Modem.Endpoint)
			if err != nil {
				return nil, fmt.Errorf("configure modem source: %w", err)
			}

			return src, nil
		}

		probeCtx, cancel := context.WithTimeout(ctx, wirelessProbeTimeout)
		defer cancel()
		if _, err := platform.ReadWirelessStatus(probeCtx, cfg.Wifi.Interface); errors.Is(err, platform.ErrWirelessUnsupported) {
			logger.Info("wireless status unsupported on this platform, running without a signal source")

			return nil, nil
		}

		return wifipoll.New(logger, cfg.Wifi.Interface, pollInterval), nil
	}
}

func (r *Runtime) persistSnapshot(snap persistence.Snapshot) {
	if r.Writer == nil || r.SnapshotRepo == nil {
		return
	}
	r.Writer.Enqueue("status_snapshot", func(ctx context.Context) error {
		return r.SnapshotRepo.Save(ctx, snap)
	})
}

func (r *Runtime) broadcast(message any) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast(message)
}

// seedFromStore restores the persisted snapshot so /status and the tray
// show the last known state until the startup probe replaces it.
func (r *Runtime) seedFromStore(ctx context.Context) {
	stored, found, err := r.SnapshotRepo.Load(ctx)
	if err != nil {
		slog.Warn("load persisted snapshot", "error", err)

		return
	}
	if !found {
		return
	}

	r.Status.Seed(Snapshot{
		ReachabilityKnown: true,
		Reachable:         stored.Reachable,
		RawMask:           stored.RawMask,
		SignalKnown:       stored.SignalKnown,
		SignalWeak:        stored.SignalWeak,
		Quality:           stored.Quality,
		RSSIDBm:           stored.RSSIDBm,
		WirelessConnected: stored.LinkUp,
		Interface:         stored.Interface,
		UpdatedAt:         stored.UpdatedAt,
	})
	slog.Debug("restored persisted snapshot", "updated_at", stored.UpdatedAt)
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// StatusPageURL is where the tray's "open status page" menu item points.
func (r *Runtime) StatusPageURL() string {
	cfg := r.CurrentConfig()
	if !cfg.StatusAPI.Enabled {
		return ""
	}

	return "http://" + cfg.StatusAPI.Listen + "/status"
}

// SetNotificationsEnabled persists the notification master toggle.
func (r *Runtime) SetNotificationsEnabled(enabled bool) {
	r.mu.Lock()
	cfg := r.Config
	cfg.Notifications.Enabled = enabled
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()
		slog.Warn("save notifications toggle", "error", err)

		return
	}
	r.Config = cfg
	r.mu.Unlock()
	slog.Info("notifications toggled", "enabled", enabled)
}

// SetAutostartEnabled syncs OS autostart registration and persists the
// preference. The registration happens first: if it fails, the stored
// config keeps its previous value and the tray reverts the checkbox.
func (r *Runtime) SetAutostartEnabled(enabled bool) error {
	cfg := r.CurrentConfig()
	cfg.Tray.Autostart.Enabled = enabled
	if err := r.syncAutostart(cfg, "tray_toggle"); err != nil {
		return err
	}

	r.mu.Lock()
	r.Config.Tray.Autostart.Enabled = enabled
	cfg = r.Config
	r.mu.Unlock()

	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		return &AutostartSyncWarning{Err: err}
	}

	return nil
}

func (r *Runtime) Close() error {
	if r.Coordinator != nil {
		r.Coordinator.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.MQTT != nil {
		r.MQTT.Close()
	}
	if r.hub != nil {
		r.hub.Close()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}
