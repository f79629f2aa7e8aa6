package audio

import (
	"fmt"
	"strconv"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// probeRates are the rates checked against each device; PortAudio only answers
// yes/no per concrete rate, so a device's range spans the supported probes.
var probeRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000}

// maxProbeChannels bounds the channel counts advertised per device.
const maxProbeChannels = 8

// PortAudioHost implements Host on top of PortAudio. PortAudio converts to the
// requested encoding itself, so every range is advertised as float32.
type PortAudioHost struct {
	log zerolog.Logger
}

// NewPortAudioHost initializes PortAudio. Close terminates it.
func NewPortAudioHost(log zerolog.Logger) (*PortAudioHost, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioHost{log: log}, nil
}

func (h *PortAudioHost) InputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, paDevice(d, d == defaultDevice))
		}
	}
	return result, nil
}

func (h *PortAudioHost) DefaultInputDevice() (Device, error) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("failed to get default input device: %w", err)
	}
	if d == nil || d.MaxInputChannels <= 0 {
		return Device{}, ErrNoInputDevice
	}
	return paDevice(d, true), nil
}

func (h *PortAudioHost) SupportedInputConfigs(d Device) ([]ConfigRange, error) {
	info, err := paInfo(d)
	if err != nil {
		return nil, err
	}

	maxChannels := info.MaxInputChannels
	if maxChannels > maxProbeChannels {
		maxChannels = maxProbeChannels
	}

	var ranges []ConfigRange
	for ch := 1; ch <= maxChannels; ch++ {
		lo, hi := 0, 0
		for _, rate := range probeRates {
			params := h.params(info, ch, rate)
			if portaudio.IsFormatSupported(params, func([]float32) {}) != nil {
				continue
			}
			if lo == 0 {
				lo = rate
			}
			hi = rate
		}
		if lo == 0 {
			continue
		}
		ranges = append(ranges, ConfigRange{
			Channels:      ch,
			MinSampleRate: lo,
			MaxSampleRate: hi,
			Format:        FormatFloat32,
		})
	}

	h.log.Debug().Str("device", info.Name).Int("ranges", len(ranges)).Msg("Probed input configs")
	return ranges, nil
}

func (h *PortAudioHost) DefaultInputConfig(d Device) (StreamConfig, error) {
	info, err := paInfo(d)
	if err != nil {
		return StreamConfig{}, err
	}
	channels := info.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	return StreamConfig{
		SampleRate: int(info.DefaultSampleRate),
		Channels:   channels,
		Format:     FormatFloat32,
	}, nil
}

func (h *PortAudioHost) OpenInputStream(d Device, cfg StreamConfig, callback any) (Stream, error) {
	info, err := paInfo(d)
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case FormatFloat32, FormatInt32, FormatInt16, FormatInt8, FormatUint8:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}
	if err := CheckCallback(cfg.Format, callback); err != nil {
		return nil, err
	}

	stream, err := portaudio.OpenStream(h.params(info, cfg.Channels, cfg.SampleRate), callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	h.log.Debug().Str("device", info.Name).Stringer("config", cfg).Msg("Opened input stream")
	return &paStream{stream: stream}, nil
}

func (h *PortAudioHost) Close() error {
	return portaudio.Terminate()
}

func (h *PortAudioHost) params(info *portaudio.DeviceInfo, channels, rate int) portaudio.StreamParameters {
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
}

type paStream struct {
	stream *portaudio.Stream
}

func (s *paStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (s *paStream) Pause() error {
	return s.stream.Stop()
}

func (s *paStream) Close() error {
	return s.stream.Close()
}

func paDevice(d *portaudio.DeviceInfo, isDefault bool) Device {
	return Device{
		ID:               strconv.Itoa(d.Index),
		Name:             d.Name,
		Default:          isDefault,
		MaxInputChannels: d.MaxInputChannels,
		handle:           d,
	}
}

func paInfo(d Device) (*portaudio.DeviceInfo, error) {
	info, ok := d.handle.(*portaudio.DeviceInfo)
	if !ok || info == nil {
		return nil, fmt.Errorf("device %q was not opened by PortAudio", d.Name)
	}
	return info, nil
}
