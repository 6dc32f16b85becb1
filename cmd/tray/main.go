package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/SkyLord2/perception-network-status/internal/app"
	"github.com/SkyLord2/perception-network-status/internal/platform"
	"github.com/SkyLord2/perception-network-status/internal/tray"
)

type launchOptions struct {
	Background bool
}

// parseLaunchOptions understands the flags an OS autostart entry may pass.
func parseLaunchOptions(args []string) (launchOptions, error) {
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	background := fs.Bool("background", false, "started by OS autostart")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	return launchOptions{Background: *background}, nil
}

func trayStatus(snap app.Snapshot) tray.Status {
	return tray.Status{
		ReachabilityKnown: snap.ReachabilityKnown,
		Reachable:         snap.Reachable,
		SignalKnown:       snap.SignalKnown,
		SignalWeak:        snap.SignalWeak,
		Quality:           snap.Quality,
	}
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage: %s [--background]: %v\n", app.Name, err)
		os.Exit(2)
	}

	lock, err := platform.AcquireInstanceLock(app.Name)
	switch {
	case errors.Is(err, platform.ErrInstanceAlreadyRunning):
		fmt.Fprintf(os.Stderr, "%s is already running: %v\n", app.Name, err)
		os.Exit(1)
	case errors.Is(err, platform.ErrInstanceLockUnsupported):
		// Run anyway; a second instance just competes for the tray slot.
	case err != nil:
		fmt.Fprintf(os.Stderr, "acquire instance lock: %v\n", err)
		os.Exit(1)
	default:
		defer func() { _ = lock.Release() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx)
	if err != nil {
		slog.Error("initialize runtime", "error", err)
		os.Exit(1)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	cfg := rt.CurrentConfig()
	agent, err := tray.New(rt.LogManager.Logger("tray"), tray.Options{
		OpenStatusPage: func() error {
			url := rt.StatusPageURL()
			if url == "" {
				return errors.New("status api is disabled")
			}

			return rt.SystemActions.OpenURL(url)
		},
		ToggleNotifications:  rt.SetNotificationsEnabled,
		ToggleAutostart:      rt.SetAutostartEnabled,
		NotificationsEnabled: cfg.Notifications.Enabled,
		AutostartEnabled:     cfg.Tray.Autostart.Enabled,
	})
	if err != nil {
		slog.Error("initialize tray", "error", err)
		closeRuntime()
		os.Exit(1)
	}

	rt.Status.SetTrayUpdate(func(snap app.Snapshot) {
		agent.Update(trayStatus(snap))
	})
	agent.Update(trayStatus(rt.Status.CurrentSnapshot()))

	if err := rt.StartMonitor(rt.Ctx); err != nil {
		slog.Error("start monitor", "error", err)
		closeRuntime()
		os.Exit(1)
	}
	slog.Info("agent running", "background", opts.Background, "status_page", rt.StatusPageURL())

	// Blocks until Quit is clicked or the context is cancelled. systray
	// needs the main goroutine on some platforms.
	agent.Run(ctx)

	stop()
	rt.Coordinator.Stop()
	closeRuntime()
}
