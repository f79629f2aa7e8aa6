package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/whispr/internal/app"
	"github.com/petems/whispr/internal/audio"
	"github.com/petems/whispr/internal/capture"
	"github.com/petems/whispr/internal/config"
	"github.com/petems/whispr/internal/hotkey"
	"github.com/petems/whispr/internal/logging"
	"github.com/petems/whispr/internal/overlay"
	"github.com/petems/whispr/internal/permissions"
	"github.com/petems/whispr/internal/tray"
	"github.com/rs/zerolog"
	"golang.design/x/hotkey/mainthread"
	"golang.org/x/sync/errgroup"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

type options struct {
	configPath  string
	listDevices bool
	duration    time.Duration
	withTray    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config.json (default: platform config dir)")
	flag.BoolVar(&opts.listDevices, "list-devices", false, "print input devices and exit")
	flag.DurationVar(&opts.duration, "duration", 0, "record a single session of this length and exit")
	flag.BoolVar(&opts.withTray, "tray", false, "drive sessions from a system tray menu")
	flag.Parse()

	if opts.withTray {
		// systray owns the main thread and its event loop also delivers hotkeys
		run(opts)
		return
	}
	// Global hotkeys need a main-thread event loop on macOS
	mainthread.Init(func() { run(opts) })
}

func run(opts options) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.NewWithLevel(cfg.LogLevel)

	host, err := openHost(cfg.Audio.Backend, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Audio.Backend).Msg("Failed to initialize audio")
	}
	defer host.Close()

	if opts.listDevices {
		for _, d := range audio.ListInputDevices(host) {
			fmt.Println(d.Name)
		}
		return
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var trayUI *tray.UI
	sinks := []overlay.Sink{}
	if cfg.Overlay.Enabled {
		dir := cfg.Overlay.Dir
		if dir == "" {
			dir = config.OverlayDir()
		}
		publisher := overlay.NewFilePublisher(dir)
		log.Debug().Str("path", publisher.Path()).Msg("Publishing overlay state")
		sinks = append(sinks, publisher)
	}
	if opts.withTray {
		trayUI = tray.New(Version, log)
		sinks = append(sinks, trayUI)
	}
	sink := overlay.Multi(sinks...)

	supervisor := capture.NewSupervisor(capture.SupervisorConfig{
		Host:   host,
		Sink:   sink,
		Logger: log,
	})

	appCfg := app.Config{
		Recorder: supervisor,
		Consumer: &logConsumer{log: log},
		Sink:     sink,
		Host:     host,
		Config:   cfg,
		Logger:   log,
	}
	if trayUI != nil {
		appCfg.StatusUpdater = trayUI
	}
	hotkeys, err := hotkey.New()
	if err != nil {
		log.Warn().Err(err).Msg("Global hotkeys unavailable")
	} else {
		appCfg.Hotkeys = hotkeys
	}
	application := app.New(appCfg)

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("backend", cfg.Audio.Backend).
		Str("mode", cfg.Mode).
		Msg("whispr starting...")

	if trayUI != nil {
		trayUI.SetApp(application)
	}

	g, gctx := errgroup.WithContext(ctx)
	switch {
	case opts.duration > 0:
		g.Go(func() error {
			defer stop()
			return recordFor(gctx, application, opts.duration)
		})
	default:
		accel, err := application.RegisterHotkey()
		switch {
		case err == nil:
			log.Info().Str("hotkey", accel).Msg("Hotkey registered")
			if trayUI == nil {
				g.Go(func() error {
					<-gctx.Done()
					return nil
				})
			}
		case trayUI != nil:
			// Sessions can still be started from the tray menu.
			log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register hotkey")
		default:
			log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register hotkey, reading Enter from stdin")
			g.Go(func() error { return driveFromStdin(gctx, application, cfg.Mode) })
		}
	}

	if trayUI != nil {
		// Tray UI - MUST run on main thread
		if err := trayUI.Run(gctx); err != nil {
			log.Error().Err(err).Msg("Tray error")
		}
		stop()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Session error")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func openHost(backend string, log zerolog.Logger) (audio.Host, error) {
	switch backend {
	case config.BackendMalgo:
		return audio.NewMalgoHost(log)
	default:
		return audio.NewPortAudioHost(log)
	}
}

// recordFor runs one session of length d, ending early if ctx is cancelled.
func recordFor(ctx context.Context, a *app.App, d time.Duration) error {
	a.StartDictation()
	if !a.IsDictating() {
		return errors.New("recording did not start")
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
	a.StopDictation()
	return nil
}

// driveFromStdin treats each line on stdin as a hotkey event. In Toggle mode
// Enter starts and stops a session; in PushToTalk mode Enter alternates press
// and release.
func driveFromStdin(ctx context.Context, a *app.App, mode string) error {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- struct{}{}
		}
	}()

	fmt.Fprintln(os.Stderr, "Press Enter to start or stop recording, Ctrl+C to quit.")
	pressed := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-lines:
			if !ok {
				return nil
			}
			if mode == config.ModePushToTalk {
				pressed = !pressed
				a.OnHotkey(pressed)
			} else {
				a.OnHotkey(true)
				a.OnHotkey(false)
			}
		}
	}
}

// logConsumer reports captured audio in the log.
type logConsumer struct {
	log zerolog.Logger
}

func (c *logConsumer) Partial(snap capture.AudioSnapshot) {
	c.log.Debug().
		Int("new_samples", len(snap.Samples)).
		Int("total_samples", snap.TotalSamples).
		Msg("Captured audio")
}

func (c *logConsumer) Final(rec capture.RecordedAudio) {
	c.log.Info().
		Int("samples", len(rec.Samples)).
		Dur("duration", rec.Duration()).
		Msg("Capture complete")
}
