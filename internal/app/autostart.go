package app

import (
	"fmt"
	"log/slog"

	"github.com/SkyLord2/perception-network-status/internal/config"
	"github.com/SkyLord2/perception-network-status/internal/platform"
)

// AutostartSyncWarning signals that the autostart state changed but a
// follow-up step (like saving config) failed.
type AutostartSyncWarning struct {
	Err error
}

func (w *AutostartSyncWarning) Error() string {
	if w == nil || w.Err == nil {
		return "autostart sync failed"
	}

	return fmt.Sprintf("autostart sync failed: %v", w.Err)
}

func (w *AutostartSyncWarning) Unwrap() error {
	if w == nil {
		return nil
	}

	return w.Err
}

func (r *Runtime) syncAutostart(cfg config.AppConfig, trigger string) error {
	if r.AutostartManager == nil {
		slog.Debug("skip autostart sync: manager is not initialized", "trigger", trigger)

		return nil
	}

	mode := config.AutostartModeNormal
	if cfg.Tray.Autostart.Enabled {
		mode = cfg.Tray.Autostart.Mode
	}

	if err := r.AutostartManager.Sync(platform.AutostartConfig{
		Enabled: cfg.Tray.Autostart.Enabled,
		Mode:    platform.LaunchMode(mode),
	}); err != nil {
		return err
	}

	slog.Info("autostart registration synced", "trigger", trigger, "enabled", cfg.Tray.Autostart.Enabled, "mode", mode)

	return nil
}
