package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInputDevice is returned when the host has no usable input device.
	ErrNoInputDevice = errors.New("no input audio device available")
	// ErrUnsupportedFormat is returned for sample encodings the capture path cannot convert.
	ErrUnsupportedFormat = errors.New("unsupported audio sample format")
)

// SampleFormat is the encoding of one sample as delivered by a backend.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatInt8
	FormatUint8
	FormatInt16
	FormatUint16
	FormatInt32
	FormatUint32
	FormatFloat32
	FormatFloat64
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt8:
		return "i8"
	case FormatUint8:
		return "u8"
	case FormatInt16:
		return "i16"
	case FormatUint16:
		return "u16"
	case FormatInt32:
		return "i32"
	case FormatUint32:
		return "u32"
	case FormatFloat32:
		return "f32"
	case FormatFloat64:
		return "f64"
	default:
		return "unknown"
	}
}

// Device is an input device as reported by a Host.
type Device struct {
	ID               string
	Name             string
	Default          bool
	MaxInputChannels int

	handle any
}

// ConfigRange is one supported input configuration: a fixed channel count and
// encoding over an inclusive sample rate range.
type ConfigRange struct {
	Channels      int
	MinSampleRate int
	MaxSampleRate int
	Format        SampleFormat
}

// StreamConfig is the concrete configuration a stream is opened with.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%dHz x%d %s", c.SampleRate, c.Channels, c.Format)
}

// Stream is a live input stream. Pause stops delivery of callbacks; Close
// releases the backend resources and must be called once the stream is done.
type Stream interface {
	Start() error
	Pause() error
	Close() error
}

// Host is the device enumeration and stream capability of an audio backend.
//
// OpenInputStream takes a callback of type func([]T) where T matches
// cfg.Format (func([]float32) for FormatFloat32, func([]int16) for
// FormatInt16, ...). The callback receives interleaved samples and runs on the
// backend's real-time thread.
type Host interface {
	InputDevices() ([]Device, error)
	DefaultInputDevice() (Device, error)
	SupportedInputConfigs(d Device) ([]ConfigRange, error)
	DefaultInputConfig(d Device) (StreamConfig, error)
	OpenInputStream(d Device, cfg StreamConfig, callback any) (Stream, error)
	Close() error
}

// NewDevice builds a Device carrying a backend-specific handle. Backends outside
// this package (test fakes) use it to round-trip their own device identity.
func NewDevice(id, name string, isDefault bool, maxInputChannels int, handle any) Device {
	return Device{
		ID:               id,
		Name:             name,
		Default:          isDefault,
		MaxInputChannels: maxInputChannels,
		handle:           handle,
	}
}

// Handle returns the backend-specific handle stored with the device.
func (d Device) Handle() any {
	return d.handle
}
