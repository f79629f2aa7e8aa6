package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/petems/whispr/internal/app"
	"github.com/petems/whispr/internal/config"
	"github.com/petems/whispr/internal/overlay"
	"github.com/rs/zerolog"
)

type UI struct {
	app     *app.App
	version string
	log     zerolog.Logger

	mu     sync.Mutex
	status string
	level  int // percent, -1 when not recording

	// Menu items
	mStartStop *systray.MenuItem
	mMode      *systray.MenuItem
	mDevices   *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
}

func (u *UI) SetProcessing() {
	u.updateStatus("processing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func New(version string, log zerolog.Logger) *UI {
	return &UI{
		version: version,
		log:     log,
		status:  "idle",
		level:   -1,
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Publish shows the live input level next to the status emoji.
func (u *UI) Publish(s overlay.State) error {
	level := -1
	if s.Recording && s.Level != nil {
		level = int(*s.Level*100 + 0.5)
	}

	u.mu.Lock()
	changed := level != u.level
	u.level = level
	u.mu.Unlock()

	if changed {
		u.render()
	}
	return nil
}

// Run blocks on the tray event loop until Quit is clicked or ctx is done.
// It must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.render()
	systray.SetTooltip("Voice capture " + u.version)

	u.mStartStop = systray.AddMenuItem("Start Recording", "Start or stop a capture session")
	systray.AddSeparator()

	u.mMode = systray.AddMenuItem(modeTitle(u.app.Mode()), "Toggle between modes")
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	go u.handleEvents(mQuit)
}

func (u *UI) handleEvents(mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggleRecording()
		case <-u.mMode.ClickedCh:
			u.toggleMode()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) toggleRecording() {
	if u.app.IsDictating() {
		u.app.StopDictation()
		u.mStartStop.SetTitle("Start Recording")
		return
	}
	u.app.StartDictation()
	if u.app.IsDictating() {
		u.mStartStop.SetTitle("Stop Recording")
	}
}

func (u *UI) buildDeviceMenu() {
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	current := u.app.DeviceID()
	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == current {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Failed to change audio device")
					continue
				}
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) toggleMode() {
	oldMode := u.app.Mode()
	next := nextMode(oldMode)
	if err := u.app.SetMode(next); err != nil {
		u.log.Error().Err(err).Msg("Failed to save mode")
	}
	u.mMode.SetTitle(modeTitle(next))
	u.log.Info().Str("from", oldMode).Str("to", next).Msg("Changed mode")
}

func (u *UI) onExit() {}

func nextMode(mode string) string {
	if mode == config.ModeToggle {
		return config.ModePushToTalk
	}
	return config.ModeToggle
}

func (u *UI) updateStatus(status string) {
	u.mu.Lock()
	u.status = status
	if status != "recording" {
		u.level = -1
	}
	u.mu.Unlock()
	u.render()
}

func (u *UI) render() {
	u.mu.Lock()
	title := titleFor(u.status, u.level)
	u.mu.Unlock()
	systray.SetTitle(title)
}

// titleFor builds the tray title: microphone, status emoji and, while
// recording, the input level.
func titleFor(status string, level int) string {
	title := fmt.Sprintf("🎤 %s", emojiForStatus(status))
	if status == "recording" && level >= 0 {
		title += fmt.Sprintf(" %d%%", level)
	}
	return title
}

func modeTitle(mode string) string {
	if mode == config.ModeToggle {
		return "Mode: Toggle"
	}
	return "Mode: Push-to-Talk"
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - recording
	case "processing":
		return "🟡" // Yellow - finishing the capture
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}
