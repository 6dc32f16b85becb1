package tray

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

// Status is what the tray can express about the monitor: icon color and a
// one-line summary.
type Status struct {
	ReachabilityKnown bool
	Reachable         bool
	SignalKnown       bool
	SignalWeak        bool
	Quality           int
}

// Options wires the menu actions to the rest of the agent. Callbacks run
// on the tray's click goroutine and must not block for long.
type Options struct {
	OpenStatusPage       func() error
	ToggleNotifications  func(enabled bool)
	ToggleAutostart      func(enabled bool) error
	NotificationsEnabled bool
	AutostartEnabled     bool
}

// Agent owns the system tray icon and menu.
type Agent struct {
	logger *slog.Logger
	opts   Options
	icons  map[iconKind][]byte

	mu         sync.Mutex
	status     Status
	ready      bool
	statusItem *systray.MenuItem
}

func New(logger *slog.Logger, opts Options) (*Agent, error) {
	if logger == nil {
		logger = slog.Default().With("component", "tray")
	}
	icons, err := renderIcons()
	if err != nil {
		return nil, err
	}

	return &Agent{
		logger: logger,
		opts:   opts,
		icons:  icons,
	}, nil
}

// Run blocks driving the tray loop until Quit is clicked or ctx is
// cancelled. systray wants the process main goroutine on some platforms,
// so call this last from main.
func (a *Agent) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()

	systray.Run(a.onReady, a.onExit)
}

// Update swaps icon, tooltip and the status menu line. Safe to call before
// the tray is ready; the last status is applied once it is.
func (a *Agent) Update(status Status) {
	a.mu.Lock()
	a.status = status
	ready := a.ready
	statusItem := a.statusItem
	a.mu.Unlock()

	if !ready {
		return
	}
	a.apply(status, statusItem)
}

func (a *Agent) apply(status Status, statusItem *systray.MenuItem) {
	systray.SetIcon(a.icons[statusIcon(status)])
	line := statusLine(status)
	systray.SetTooltip("netstatus: " + line)
	if statusItem != nil {
		statusItem.SetTitle(line)
	}
}

func (a *Agent) onReady() {
	systray.SetIcon(a.icons[iconUnknown])
	systray.SetTooltip("netstatus: starting")

	statusItem := systray.AddMenuItem("Starting...", "Current network status")
	statusItem.Disable()
	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open status page", "Open the local status page in a browser")
	notifyItem := systray.AddMenuItemCheckbox("Notifications", "Toggle desktop notifications", a.opts.NotificationsEnabled)
	autostartItem := systray.AddMenuItemCheckbox("Start at login", "Run automatically at login", a.opts.AutostartEnabled)
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop the agent")

	a.mu.Lock()
	a.ready = true
	a.statusItem = statusItem
	status := a.status
	a.mu.Unlock()

	a.apply(status, statusItem)

	go a.handleClicks(openItem, notifyItem, autostartItem, quitItem)
}

func (a *Agent) handleClicks(openItem, notifyItem, autostartItem, quitItem *systray.MenuItem) {
	for {
		select {
		case <-openItem.ClickedCh:
			if a.opts.OpenStatusPage == nil {
				continue
			}
			if err := a.opts.OpenStatusPage(); err != nil {
				a.logger.Warn("open status page failed", "error", err)
			}
		case <-notifyItem.ClickedCh:
			enabled := !notifyItem.Checked()
			setChecked(notifyItem, enabled)
			if a.opts.ToggleNotifications != nil {
				a.opts.ToggleNotifications(enabled)
			}
		case <-autostartItem.ClickedCh:
			enabled := !autostartItem.Checked()
			if a.opts.ToggleAutostart != nil {
				if err := a.opts.ToggleAutostart(enabled); err != nil {
					a.logger.Warn("autostart toggle failed", "enabled", enabled, "error", err)

					continue
				}
			}
			setChecked(autostartItem, enabled)
		case <-quitItem.ClickedCh:
			a.logger.Info("quit requested from tray")
			systray.Quit()

			return
		}
	}
}

func (a *Agent) onExit() {
	a.logger.Debug("tray loop exited")
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func statusIcon(s Status) iconKind {
	switch {
	case !s.ReachabilityKnown:
		return iconUnknown
	case !s.Reachable:
		return iconBad
	case s.SignalKnown && s.SignalWeak:
		return iconWeak
	default:
		return iconGood
	}
}

func statusLine(s Status) string {
	switch {
	case !s.ReachabilityKnown:
		return "Status unknown"
	case !s.Reachable:
		return "No internet connection"
	case s.SignalKnown && s.SignalWeak:
		return fmt.Sprintf("Online, weak signal (%d%%)", s.Quality)
	case s.SignalKnown:
		return fmt.Sprintf("Online, signal %d%%", s.Quality)
	default:
		return "Online"
	}
}
