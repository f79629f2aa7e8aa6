package audio

import (
	"fmt"
	"sort"
	"strings"
)

// SelectDevice returns the input device named id, or the host default when id
// is "default" or no device carries that exact name.
func SelectDevice(host Host, id string) (Device, error) {
	if id != "default" {
		if devices, err := host.InputDevices(); err == nil {
			for _, d := range devices {
				if d.Name == id {
					return d, nil
				}
			}
		}
	}

	d, err := host.DefaultInputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}
	return d, nil
}

// SelectConfig picks a stream configuration for d. The requested rate is
// clamped into each supported range; the first range whose channel count
// matches wins, otherwise the first range seen. Devices advertising no ranges
// fall back to their default input configuration.
func SelectConfig(host Host, d Device, sampleRate, channels int) (StreamConfig, error) {
	ranges, err := host.SupportedInputConfigs(d)
	if err != nil {
		return StreamConfig{}, fmt.Errorf("query input configs of %q: %w", d.Name, err)
	}

	var fallback *StreamConfig
	for _, r := range ranges {
		cfg := StreamConfig{
			SampleRate: clampSampleRate(sampleRate, r.MinSampleRate, r.MaxSampleRate),
			Channels:   r.Channels,
			Format:     r.Format,
		}
		if fallback == nil {
			fallback = &cfg
		}
		if cfg.Channels == channels {
			return cfg, nil
		}
	}
	if fallback != nil {
		return *fallback, nil
	}

	cfg, err := host.DefaultInputConfig(d)
	if err != nil {
		return StreamConfig{}, fmt.Errorf("default input config of %q: %w", d.Name, err)
	}
	return cfg, nil
}

// Negotiate selects both the device and its stream configuration.
func Negotiate(host Host, deviceID string, sampleRate, channels int) (Device, StreamConfig, error) {
	d, err := SelectDevice(host, deviceID)
	if err != nil {
		return Device{}, StreamConfig{}, err
	}
	cfg, err := SelectConfig(host, d, sampleRate, channels)
	if err != nil {
		return Device{}, StreamConfig{}, err
	}
	return d, cfg, nil
}

func clampSampleRate(target, min, max int) int {
	if target < min {
		return min
	}
	if target > max {
		return max
	}
	return target
}

// blockedPrefixes hides ALSA plugin and virtual PCMs that are not microphones.
var blockedPrefixes = []string{
	"pipewire",
	"pulse",
	"sysdefault",
	"front",
	"surround",
	"iec958",
	"spdif",
	"hdmi",
	"dmix",
	"dsnoop",
	"null",
}

// ListInputDevices returns the user-facing device list: a leading "default"
// entry followed by the host's real input devices sorted by label.
func ListInputDevices(host Host) []Device {
	devices := []Device{{ID: "default", Name: "Default", Default: true}}

	raw, err := host.InputDevices()
	if err != nil {
		return devices
	}

	plughw := make(map[string]bool)
	for _, d := range raw {
		if rest, ok := strings.CutPrefix(d.Name, "plughw:"); ok {
			plughw["hw:"+rest] = true
		}
	}

	seen := make(map[string]bool)
	var discovered []Device
	for _, d := range raw {
		name := d.Name
		switch {
		case strings.EqualFold(name, "default"):
			continue
		case !includeDeviceName(name):
			continue
		case strings.HasPrefix(name, "hw:") && plughw[name]:
			continue
		case seen[name]:
			continue
		}
		seen[name] = true

		label := friendlyName(name)
		if d.Default {
			label += " (System Default)"
		}
		discovered = append(discovered, Device{
			ID:               name,
			Name:             label,
			Default:          d.Default,
			MaxInputChannels: d.MaxInputChannels,
			handle:           d.handle,
		})
	}

	sort.Slice(discovered, func(i, j int) bool { return discovered[i].Name < discovered[j].Name })
	return append(devices, discovered...)
}

func includeDeviceName(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
