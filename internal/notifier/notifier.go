package notifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/777genius/playto/internal/config"
	"github.com/777genius/playto/internal/logging"
	"github.com/777genius/playto/internal/platform"
)

// ttyPath is where OSC9 sequences are written
var ttyPath = "/dev/tty"

// notify is swapped in tests
var notify = func(title, message, icon string) error {
	return beeep.Notify(title, message, icon)
}

// Notifier sends desktop notifications
type Notifier struct {
	cfg *config.Config
}

// New creates a new notifier
func New(cfg *config.Config) *Notifier {
	return &Notifier{
		cfg: cfg,
	}
}

// SendFinished announces that path finished playing on device.
// Methods: "osc9", "beeep", "auto" (default)
func (n *Notifier) SendFinished(path, device string, duration time.Duration) error {
	if !n.cfg.IsDesktopEnabled() {
		logging.Debug("Desktop notifications disabled, skipping")
		return nil
	}

	title, message := buildMessage(path, device, duration)

	// Get app icon path if configured
	appIcon := n.cfg.Notifications.Desktop.AppIcon
	if appIcon != "" && !platform.FileExists(appIcon) {
		logging.Warn("App icon not found: %s, using default", appIcon)
		appIcon = ""
	}

	switch n.cfg.Notifications.Desktop.Method {
	case "osc9":
		return n.sendWithOSC9(title, message)
	default:
		// "auto", "beeep" or ""
		return n.sendWithBeeep(title, message, appIcon)
	}
}

// buildMessage renders the notification title and body.
func buildMessage(path, device string, duration time.Duration) (title, message string) {
	title = "♫ Finished playing"

	message = filepath.Base(path)
	if device != "" {
		message = fmt.Sprintf("%s on %s", message, device)
	}
	message = fmt.Sprintf("%s (%s)", message, formatDuration(duration))
	return title, message
}

// formatDuration prints whole seconds as "42s" or "3m 5s".
func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// sendWithBeeep sends notification via beeep (cross-platform)
func (n *Notifier) sendWithBeeep(title, message, appIcon string) error {
	// Windows keeps a registry entry per AppName, so it gets a fixed one.
	originalAppName := beeep.AppName
	if platform.IsWindows() {
		beeep.AppName = "playto"
	} else {
		beeep.AppName = fmt.Sprintf("playto-%d", time.Now().UnixNano())
	}
	defer func() {
		beeep.AppName = originalAppName
	}()

	if err := notify(title, message, appIcon); err != nil {
		logging.Error("Failed to send desktop notification: %v", err)
		return err
	}

	logging.Debug("Desktop notification sent via beeep: title=%s", title)
	return nil
}

// sendWithOSC9 sends notification via OSC9 escape sequence
// OSC9 is supported by terminals like iTerm2, kitty, and others
func (n *Notifier) sendWithOSC9(title, message string) error {
	notifyText := title
	if message != "" {
		notifyText = fmt.Sprintf("%s: %s", title, message)
	}
	notifyText = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, notifyText)

	// Truncate to prevent overly long notifications
	if len(notifyText) > 200 {
		notifyText = notifyText[:197] + "..."
	}

	tty, err := os.OpenFile(ttyPath, os.O_WRONLY, 0)
	if err != nil {
		logging.Error("Failed to open %s for OSC9: %v", ttyPath, err)
		return fmt.Errorf("failed to open %s: %w", ttyPath, err)
	}
	defer tty.Close()

	// ESC ] 9 ; message ESC \
	osc9 := fmt.Sprintf("\033]9;%s\033\\", notifyText)
	if _, err := tty.WriteString(osc9); err != nil {
		logging.Error("Failed to write OSC9 sequence: %v", err)
		return fmt.Errorf("failed to write OSC9: %w", err)
	}

	logging.Debug("Desktop notification sent via OSC9: title=%s", title)
	return nil
}
