// Package audiotest provides an in-memory audio.Host for tests.
package audiotest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/petems/whispr/internal/audio"
)

// Host is a fake audio.Host. Chunks are delivered by calling Feed, which runs the
// stream callback on the caller's goroutine the way a backend's audio thread would.
type Host struct {
	Devices       []audio.Device
	DefaultName   string
	Ranges        map[string][]audio.ConfigRange
	DefaultConfig audio.StreamConfig

	// OpenErr and StartErr make the next stream fail to open or start.
	OpenErr  error
	StartErr error

	mu      sync.Mutex
	streams []*Stream
}

// NewHost returns a host with one 48kHz mono/stereo float32 microphone that is
// also the default device.
func NewHost() *Host {
	mic := audio.NewDevice("0", "Built-in Microphone", true, 2, "mic")
	return &Host{
		Devices:     []audio.Device{mic},
		DefaultName: mic.Name,
		Ranges: map[string][]audio.ConfigRange{
			mic.Name: {
				{Channels: 2, MinSampleRate: 8000, MaxSampleRate: 48000, Format: audio.FormatFloat32},
				{Channels: 1, MinSampleRate: 8000, MaxSampleRate: 48000, Format: audio.FormatFloat32},
			},
		},
		DefaultConfig: audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatFloat32},
	}
}

func (h *Host) InputDevices() ([]audio.Device, error) {
	return h.Devices, nil
}

func (h *Host) DefaultInputDevice() (audio.Device, error) {
	for _, d := range h.Devices {
		if d.Name == h.DefaultName {
			return d, nil
		}
	}
	return audio.Device{}, errors.New("no default device")
}

func (h *Host) SupportedInputConfigs(d audio.Device) ([]audio.ConfigRange, error) {
	return h.Ranges[d.Name], nil
}

func (h *Host) DefaultInputConfig(d audio.Device) (audio.StreamConfig, error) {
	return h.DefaultConfig, nil
}

func (h *Host) OpenInputStream(d audio.Device, cfg audio.StreamConfig, callback any) (audio.Stream, error) {
	if h.OpenErr != nil {
		return nil, h.OpenErr
	}
	if err := audio.CheckCallback(cfg.Format, callback); err != nil {
		return nil, err
	}

	s := &Stream{Device: d, Config: cfg, callback: callback, startErr: h.StartErr}
	h.mu.Lock()
	h.streams = append(h.streams, s)
	h.mu.Unlock()
	return s, nil
}

func (h *Host) Close() error {
	return nil
}

// Last returns the most recently opened stream, or nil.
func (h *Host) Last() *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.streams) == 0 {
		return nil
	}
	return h.streams[len(h.streams)-1]
}

// Feed delivers one chunk of normalized samples to the last opened stream.
func (h *Host) Feed(samples []float32) error {
	s := h.Last()
	if s == nil {
		return errors.New("no stream opened")
	}
	return s.Feed(samples)
}

// Stream is a fake audio.Stream.
type Stream struct {
	Device audio.Device
	Config audio.StreamConfig

	mu       sync.Mutex
	callback any
	startErr error
	running  bool
	closed   bool
}

func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	return nil
}

func (s *Stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Feed converts samples to the stream's encoding and invokes the callback.
// Chunks fed to a paused stream are dropped, as a real backend would.
func (s *Stream) Feed(samples []float32) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return nil
	}

	switch cb := s.callback.(type) {
	case func([]float32):
		cb(samples)
	case func([]int16):
		out := make([]int16, len(samples))
		for i, v := range samples {
			out[i] = int16(v * 32767)
		}
		cb(out)
	default:
		return fmt.Errorf("audiotest: unsupported callback %T", s.callback)
	}
	return nil
}
