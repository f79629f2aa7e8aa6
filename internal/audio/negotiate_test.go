package audio_test

import (
	"errors"
	"testing"

	"github.com/petems/whispr/internal/audio"
	"github.com/petems/whispr/internal/audio/audiotest"
)

func TestSelectDeviceByExactName(t *testing.T) {
	host := audiotest.NewHost()
	usb := audio.NewDevice("1", "USB Mic", false, 1, "usb")
	host.Devices = append(host.Devices, usb)

	d, err := audio.SelectDevice(host, "USB Mic")
	if err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if d.Name != "USB Mic" {
		t.Errorf("expected USB Mic, got %s", d.Name)
	}
}

func TestSelectDeviceFallsBackToDefault(t *testing.T) {
	host := audiotest.NewHost()

	for _, id := range []string{"default", "usb mic", "missing"} {
		d, err := audio.SelectDevice(host, id)
		if err != nil {
			t.Fatalf("SelectDevice(%q): %v", id, err)
		}
		if d.Name != host.DefaultName {
			t.Errorf("SelectDevice(%q) = %s, want default %s", id, d.Name, host.DefaultName)
		}
	}
}

func TestSelectDeviceNoDefault(t *testing.T) {
	host := audiotest.NewHost()
	host.DefaultName = ""

	_, err := audio.SelectDevice(host, "default")
	if !errors.Is(err, audio.ErrNoInputDevice) {
		t.Fatalf("expected ErrNoInputDevice, got %v", err)
	}
}

func TestSelectConfig(t *testing.T) {
	tests := []struct {
		name     string
		ranges   []audio.ConfigRange
		rate     int
		channels int
		want     audio.StreamConfig
	}{
		{
			name: "exact channel match after first range",
			ranges: []audio.ConfigRange{
				{Channels: 2, MinSampleRate: 44100, MaxSampleRate: 48000, Format: audio.FormatInt16},
				{Channels: 1, MinSampleRate: 8000, MaxSampleRate: 48000, Format: audio.FormatFloat32},
			},
			rate: 16000, channels: 1,
			want: audio.StreamConfig{SampleRate: 16000, Channels: 1, Format: audio.FormatFloat32},
		},
		{
			name: "fallback to first clamped range",
			ranges: []audio.ConfigRange{
				{Channels: 2, MinSampleRate: 44100, MaxSampleRate: 48000, Format: audio.FormatInt16},
				{Channels: 4, MinSampleRate: 8000, MaxSampleRate: 96000, Format: audio.FormatFloat32},
			},
			rate: 16000, channels: 1,
			want: audio.StreamConfig{SampleRate: 44100, Channels: 2, Format: audio.FormatInt16},
		},
		{
			name: "rate clamped down to max",
			ranges: []audio.ConfigRange{
				{Channels: 1, MinSampleRate: 8000, MaxSampleRate: 22050, Format: audio.FormatFloat32},
			},
			rate: 48000, channels: 1,
			want: audio.StreamConfig{SampleRate: 22050, Channels: 1, Format: audio.FormatFloat32},
		},
		{
			name:   "no ranges uses device default",
			ranges: nil,
			rate:   16000, channels: 1,
			want: audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatFloat32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := audiotest.NewHost()
			d, _ := host.DefaultInputDevice()
			host.Ranges[d.Name] = tt.ranges

			got, err := audio.SelectConfig(host, d, tt.rate, tt.channels)
			if err != nil {
				t.Fatalf("SelectConfig: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNegotiate(t *testing.T) {
	host := audiotest.NewHost()

	d, cfg, err := audio.Negotiate(host, "default", 16000, 1)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if d.Name != host.DefaultName {
		t.Errorf("unexpected device %s", d.Name)
	}
	if cfg.SampleRate != 16000 || cfg.Channels != 1 {
		t.Errorf("unexpected config %v", cfg)
	}
}

func TestListInputDevices(t *testing.T) {
	defer audio.StubCardLongnames(map[string]string{"Mic": "USB Audio Device"})()

	host := audiotest.NewHost()
	host.Devices = []audio.Device{
		audio.NewDevice("0", "pulse", false, 2, nil),
		audio.NewDevice("1", "hw:CARD=PCH,DEV=0", false, 2, nil),
		audio.NewDevice("2", "plughw:CARD=PCH,DEV=0", true, 2, nil),
		audio.NewDevice("3", "default", false, 2, nil),
		audio.NewDevice("4", "Blue Yeti", false, 2, nil),
		audio.NewDevice("5", "Blue Yeti", false, 2, nil),
		audio.NewDevice("6", "HDMI Out", false, 2, nil),
		audio.NewDevice("7", "plughw:CARD=Mic,DEV=1", false, 1, nil),
	}

	got := audio.ListInputDevices(host)

	want := []struct{ id, name string }{
		{"default", "Default"},
		{"Blue Yeti", "Blue Yeti"},
		{"plughw:CARD=PCH,DEV=0", "PCH (System Default)"},
		{"plughw:CARD=Mic,DEV=1", "USB Audio Device (Device 1)"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d devices, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].Name != w.name {
			t.Errorf("device %d = %q/%q, want %q/%q", i, got[i].ID, got[i].Name, w.id, w.name)
		}
	}
}
