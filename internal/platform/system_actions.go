package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// SystemActions provides OS-specific helpers triggered from the tray menu.
type SystemActions interface {
	OpenURL(url string) error
}

func NewSystemActions() SystemActions {
	return newSystemActions()
}

type commandSpec struct {
	name string
	args []string
}

type commandStarter func(name string, args ...string) error

func openURLForOS(goos, url string, start commandStarter) error {
	normalizedOS := strings.ToLower(strings.TrimSpace(goos))
	commands, err := urlOpenCommandsForOS(normalizedOS, url)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return fmt.Errorf("opening urls is not supported on %s", normalizedOS)
	}

	slog.Info("opening url", "goos", normalizedOS, "url", url, "attempts", len(commands))

	var errs []error
	for i, spec := range commands {
		attempt := i + 1
		if err := start(spec.name, spec.args...); err == nil {
			slog.Info("opened url", "goos", normalizedOS, "command", spec.name, "attempt", attempt)

			return nil
		} else {
			slog.Debug(
				"url open command failed",
				"goos", normalizedOS,
				"command", spec.name,
				"args", spec.args,
				"attempt", attempt,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", spec.name, err))
		}
	}

	joinedErr := errors.Join(errs...)
	slog.Warn("failed to open url", "goos", normalizedOS, "url", url, "error", joinedErr)

	return joinedErr
}

func urlOpenCommandsForOS(goos, url string) ([]commandSpec, error) {
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "windows":
		return windowsURLOpenCommands(url), nil
	case "linux":
		return linuxURLOpenCommands(url), nil
	case "darwin":
		return []commandSpec{{name: "open", args: []string{url}}}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}

func startCommandDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)

	return cmd.Start()
}
