package audio

import (
	"strings"
	"testing"
)

const sampleCards = ` 0 [PCH            ]: HDA-Intel - HDA Intel PCH
                      HDA Intel PCH at 0xf7f10000 irq 32
 1 [Mic            ]: USB-Audio - Blue Yeti
                      Blue Microphones Yeti Stereo Microphone at usb-0000:00:14.0-2, full speed
`

func TestParseCards(t *testing.T) {
	names := parseCards(strings.NewReader(sampleCards))

	tests := map[string]string{
		"0":   "HDA Intel PCH",
		"PCH": "HDA Intel PCH",
		"1":   "Blue Microphones Yeti Stereo Microphone",
		"Mic": "Blue Microphones Yeti Stereo Microphone",
	}
	for key, want := range tests {
		if got := names[key]; got != want {
			t.Errorf("names[%q] = %q, want %q", key, got, want)
		}
	}
	if len(names) != len(tests) {
		t.Errorf("expected %d entries, got %d: %v", len(tests), len(names), names)
	}
}

func TestParseALSAName(t *testing.T) {
	tests := []struct {
		name string
		card string
		dev  string
		ok   bool
	}{
		{"hw:CARD=PCH,DEV=0", "PCH", "0", true},
		{"plughw:CARD=Mic,DEV=2", "Mic", "2", true},
		{"hw:1,3", "1", "3", true},
		{"plughw:CARD=Mic", "Mic", "", true},
		{"hw:", "", "", false},
		{"Blue Yeti", "", "", false},
		{"sysdefault:CARD=PCH", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, dev, ok := parseALSAName(tt.name)
			if card != tt.card || dev != tt.dev || ok != tt.ok {
				t.Errorf("parseALSAName(%q) = %q, %q, %v, want %q, %q, %v",
					tt.name, card, dev, ok, tt.card, tt.dev, tt.ok)
			}
		})
	}
}

func TestFriendlyName(t *testing.T) {
	defer StubCardLongnames(map[string]string{"PCH": "HDA Intel PCH", "1": "Blue Yeti"})()

	tests := []struct {
		name string
		want string
	}{
		{"plughw:CARD=PCH,DEV=0", "HDA Intel PCH"},
		{"hw:CARD=PCH,DEV=3", "HDA Intel PCH (Device 3)"},
		{"plughw:1,0", "Blue Yeti"},
		{"hw:CARD=Unknown,DEV=1", "Unknown (Device 1)"},
		{"MacBook Pro Microphone", "MacBook Pro Microphone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := friendlyName(tt.name); got != tt.want {
				t.Errorf("friendlyName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
