package audio

import (
	"fmt"
	"strconv"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// Bounds used when miniaudio reports a native format with no fixed rate.
const (
	malgoMinSampleRate = 8000
	malgoMaxSampleRate = 384000
)

// MalgoHost implements Host on top of miniaudio. Native formats are reported
// per device; 24-bit devices are captured as 32-bit and converted by miniaudio.
type MalgoHost struct {
	ctx *malgo.AllocatedContext
	log zerolog.Logger
}

// NewMalgoHost initializes a miniaudio context. Close releases it.
func NewMalgoHost(log zerolog.Logger) (*MalgoHost, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("backend", "malgo").Msg(message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}
	return &MalgoHost{ctx: ctx, log: log}, nil
}

func (h *MalgoHost) InputDevices() ([]Device, error) {
	infos, err := h.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	result := make([]Device, 0, len(infos))
	for i, info := range infos {
		result = append(result, Device{
			ID:      strconv.Itoa(i),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
			handle:  info.ID,
		})
	}
	return result, nil
}

func (h *MalgoHost) DefaultInputDevice() (Device, error) {
	devices, err := h.InputDevices()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Default {
			return d, nil
		}
	}
	return Device{}, ErrNoInputDevice
}

func (h *MalgoHost) SupportedInputConfigs(d Device) ([]ConfigRange, error) {
	id, ok := d.handle.(malgo.DeviceID)
	if !ok {
		return nil, fmt.Errorf("device %q was not opened by miniaudio", d.Name)
	}
	info, err := h.ctx.DeviceInfo(malgo.Capture, id, malgo.Shared)
	if err != nil {
		return nil, fmt.Errorf("failed to query device %q: %w", d.Name, err)
	}

	ranges := make([]ConfigRange, 0, len(info.Formats))
	for _, f := range info.Formats {
		format := malgoFormat(f.Format)
		if format == FormatUnknown {
			continue
		}
		r := ConfigRange{
			Channels:      int(f.Channels),
			MinSampleRate: int(f.SampleRate),
			MaxSampleRate: int(f.SampleRate),
			Format:        format,
		}
		// Zero means "any" in miniaudio's native format list.
		if r.Channels == 0 {
			r.Channels = 1
		}
		if f.SampleRate == 0 {
			r.MinSampleRate, r.MaxSampleRate = malgoMinSampleRate, malgoMaxSampleRate
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func (h *MalgoHost) DefaultInputConfig(d Device) (StreamConfig, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	rate := int(cfg.SampleRate)
	if rate == 0 {
		rate = 48000
	}
	return StreamConfig{SampleRate: rate, Channels: 1, Format: FormatFloat32}, nil
}

func (h *MalgoHost) OpenInputStream(d Device, cfg StreamConfig, callback any) (Stream, error) {
	id, ok := d.handle.(malgo.DeviceID)
	if !ok {
		return nil, fmt.Errorf("device %q was not opened by miniaudio", d.Name)
	}
	if err := CheckCallback(cfg.Format, callback); err != nil {
		return nil, err
	}

	var format malgo.FormatType
	var onBytes func([]byte)
	switch cb := callback.(type) {
	case func([]uint8):
		format, onBytes = malgo.FormatU8, cb
	case func([]int16):
		format, onBytes = malgo.FormatS16, func(raw []byte) { cb(View[int16](raw)) }
	case func([]int32):
		format, onBytes = malgo.FormatS32, func(raw []byte) { cb(View[int32](raw)) }
	case func([]float32):
		format, onBytes = malgo.FormatF32, func(raw []byte) { cb(View[float32](raw)) }
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	s := &malgoStream{id: id}
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = format
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.Capture.DeviceID = s.id.Pointer()
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	device, err := malgo.InitDevice(h.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) == 0 {
				return
			}
			onBytes(input)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	s.device = device

	h.log.Debug().Str("device", d.Name).Stringer("config", cfg).Msg("Opened input stream")
	return s, nil
}

func (h *MalgoHost) Close() error {
	err := h.ctx.Uninit()
	h.ctx.Free()
	return err
}

type malgoStream struct {
	// id must outlive the device: miniaudio keeps the pointer passed at init.
	id     malgo.DeviceID
	device *malgo.Device
}

func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (s *malgoStream) Pause() error {
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	s.device.Uninit()
	return nil
}

func malgoFormat(f malgo.FormatType) SampleFormat {
	switch f {
	case malgo.FormatU8:
		return FormatUint8
	case malgo.FormatS16:
		return FormatInt16
	case malgo.FormatS24, malgo.FormatS32:
		return FormatInt32
	case malgo.FormatF32:
		return FormatFloat32
	default:
		return FormatUnknown
	}
}
