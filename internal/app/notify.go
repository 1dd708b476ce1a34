package app

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// desktopNotifier returns the default notification sink. When enabled it
// sends desktop notifications via the platform notification service; failures
// are logged and otherwise ignored, since notifications are best-effort.
func desktopNotifier(enabled bool) func(title, body string) {
	if !enabled {
		return func(string, string) {}
	}
	return func(title, body string) {
		if err := beeep.Notify(title, body, ""); err != nil {
			slog.Debug("notification failed", "err", err)
		}
	}
}
