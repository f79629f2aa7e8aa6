package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petems/whispr/internal/audio"
	"github.com/petems/whispr/internal/capture"
	"github.com/petems/whispr/internal/config"
	"github.com/petems/whispr/internal/hotkey"
	"github.com/petems/whispr/internal/overlay"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Mode int

const (
	PushToTalk Mode = iota
	Toggle
)

// Recorder is the capture surface the app drives. *capture.Supervisor implements it.
type Recorder interface {
	Start(settings config.AudioConfig, startedAtMs int64) error
	Stop() (capture.RecordedAudio, error)
	Snapshot(fromIndex int) (capture.AudioSnapshot, error)
	Close() error
}

// Consumer receives audio as it is captured. Partial is called from the poll
// goroutine with only the samples that arrived since the previous call.
type Consumer interface {
	Partial(snap capture.AudioSnapshot)
	Final(rec capture.RecordedAudio)
}

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

type Config struct {
	Recorder      Recorder
	Consumer      Consumer       // Optional - can be nil
	Sink          overlay.Sink   // Optional - can be nil
	Host          audio.Host     // Optional - used for device listing
	Hotkeys       hotkey.Manager // Optional - can be nil
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

type App struct {
	rec      Recorder
	consumer Consumer
	sink     overlay.Sink
	host     audio.Host
	hotkeys  hotkey.Manager
	cfg      *config.Config
	log      zerolog.Logger
	status   StatusUpdater
	now      func() time.Time

	mu        sync.Mutex
	dictating bool
	pollStop  context.CancelFunc
	poll      *errgroup.Group
}

func New(cfg Config) *App {
	sink := cfg.Sink
	if sink == nil {
		sink = overlay.Discard
	}
	consumer := cfg.Consumer
	if consumer == nil {
		consumer = nopConsumer{}
	}
	return &App{
		rec:      cfg.Recorder,
		consumer: consumer,
		sink:     sink,
		host:     cfg.Host,
		hotkeys:  cfg.Hotkeys,
		cfg:      cfg.Config,
		log:      cfg.Logger,
		status:   cfg.StatusUpdater,
		now:      time.Now,
	}
}

type nopConsumer struct{}

func (nopConsumer) Partial(capture.AudioSnapshot) {}
func (nopConsumer) Final(capture.RecordedAudio)   {}

func (a *App) mode() Mode {
	if a.cfg.Mode == config.ModeToggle {
		return Toggle
	}
	return PushToTalk
}

// RegisterHotkey binds the configured platform hotkey to OnHotkey.
func (a *App) RegisterHotkey() (string, error) {
	if a.hotkeys == nil {
		return "", errors.New("no hotkey manager configured")
	}
	a.mu.Lock()
	accel := a.cfg.PlatformHotkey()
	a.mu.Unlock()

	return accel, a.hotkeys.Register(accel, a.OnHotkey)
}

func (a *App) OnHotkey(pressed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.mode() {
	case PushToTalk:
		if pressed {
			a.startDictationLocked()
		} else {
			a.stopDictationLocked()
		}
	case Toggle:
		if !pressed {
			return
		}
		if !a.dictating {
			a.startDictationLocked()
		} else {
			a.stopDictationLocked()
		}
	}
}

// StartDictation begins a session if none is active.
func (a *App) StartDictation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startDictationLocked()
}

// StopDictation ends the active session, if any, and delivers its audio.
func (a *App) StopDictation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopDictationLocked()
}

func (a *App) startDictationLocked() {
	if a.dictating {
		return
	}

	a.log.Info().Str("device", a.cfg.Audio.InputDeviceID).Msg("Starting dictation")

	if err := a.rec.Start(a.cfg.Audio, a.now().UnixMilli()); err != nil {
		a.log.Error().Err(err).Msg("Failed to start recording")
		a.setStatus(StatusUpdater.SetError)
		return
	}
	a.dictating = true
	a.setStatus(StatusUpdater.SetRecording)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	interval := time.Duration(a.cfg.SnapshotIntervalMs) * time.Millisecond
	g.Go(func() error {
		return a.pollSnapshots(gctx, interval)
	})
	a.pollStop = cancel
	a.poll = g
}

func (a *App) stopDictationLocked() {
	if !a.dictating {
		return
	}

	a.log.Info().Msg("Stopping dictation")
	a.dictating = false
	a.setStatus(StatusUpdater.SetProcessing)

	a.pollStop()
	if err := a.poll.Wait(); err != nil {
		a.log.Warn().Err(err).Msg("Snapshot polling ended early")
	}
	a.pollStop, a.poll = nil, nil

	rec, err := a.rec.Stop()
	if perr := a.sink.Publish(overlay.Idle()); perr != nil {
		a.log.Warn().Err(perr).Msg("Failed to publish idle overlay state")
	}
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to stop recording")
		a.setStatus(StatusUpdater.SetError)
		return
	}

	a.log.Info().
		Int("samples", len(rec.Samples)).
		Int("sample_rate", rec.SampleRate).
		Int("channels", rec.Channels).
		Dur("duration", rec.Duration()).
		Msg("Recording finished")
	a.consumer.Final(rec)
	a.setStatus(StatusUpdater.SetIdle)
}

// pollSnapshots forwards newly captured samples to the consumer until ctx is done.
func (a *App) pollSnapshots(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap, err := a.rec.Snapshot(next)
		switch {
		case errors.Is(err, capture.ErrWorkerUnavailable), errors.Is(err, capture.ErrBufferPoisoned):
			return err
		case err != nil:
			a.log.Debug().Err(err).Msg("Snapshot failed")
			continue
		}
		next = snap.TotalSamples
		if len(snap.Samples) > 0 {
			a.consumer.Partial(snap)
		}
	}
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	if a.status != nil {
		fn(a.status)
	}
}

// Shutdown releases the hotkeys, stops an active session and closes the
// recorder.
func (a *App) Shutdown(ctx context.Context) error {
	// Hotkey callbacks take a.mu, so they are drained before locking.
	if a.hotkeys != nil {
		if err := a.hotkeys.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to release hotkeys")
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.stopDictationLocked()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.rec.Close()
}

// Tray actions

// Mode returns the configured dictation mode.
func (a *App) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Mode
}

func (a *App) SetMode(mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mode != config.ModePushToTalk && mode != config.ModeToggle {
		return fmt.Errorf("invalid mode %q", mode)
	}
	a.cfg.Mode = mode
	return a.cfg.Save()
}

// DeviceID returns the configured input device, empty for the system default.
func (a *App) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Audio.InputDeviceID
}

func (a *App) SetDevice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dictating {
		return fmt.Errorf("cannot change while dictating")
	}

	a.cfg.Audio.InputDeviceID = id
	return a.cfg.Save()
}

func (a *App) IsDictating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dictating
}

func (a *App) ListDevices() ([]audio.Device, error) {
	if a.host == nil {
		return nil, audio.ErrNoInputDevice
	}
	return audio.ListInputDevices(a.host), nil
}
