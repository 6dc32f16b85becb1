package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// Payload is a user-facing notification.
type Payload struct {
	Title   string
	Content string
}

// Sender delivers notifications through a platform backend.
type Sender interface {
	Send(payload Payload)
}

// notify is swapped in tests; sending for real needs a desktop session.
var notify = beeep.Notify

// DesktopSender shows native desktop notifications via beeep.
type DesktopSender struct {
	logger *slog.Logger
}

func NewDesktopSender(logger *slog.Logger, appName string) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}
	if appName != "" {
		beeep.AppName = appName
	}

	return &DesktopSender{logger: logger}
}

func (s *DesktopSender) Send(payload Payload) {
	if s == nil {
		return
	}

	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return
	}

	s.logger.Debug("sending notification", "title", title)
	if err := notify(title, content, ""); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}
