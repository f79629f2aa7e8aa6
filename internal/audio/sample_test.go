package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestToFloat32(t *testing.T) {
	tests := []struct {
		name string
		got  float32
		want float32
	}{
		{"f32 passthrough", ToFloat32(float32(0.25)), 0.25},
		{"f64", ToFloat32(0.5), 0.5},
		{"i16 min", ToFloat32(int16(math.MinInt16)), -1},
		{"i16 half", ToFloat32(int16(16384)), 0.5},
		{"i8 min", ToFloat32(int8(-128)), -1},
		{"u8 mid", ToFloat32(uint8(128)), 0},
		{"u8 min", ToFloat32(uint8(0)), -1},
		{"u16 mid", ToFloat32(uint16(32768)), 0},
		{"i32 min", ToFloat32(int32(math.MinInt32)), -1},
		{"u32 mid", ToFloat32(uint32(1 << 31)), 0},
	}

	for _, tt := range tests {
		if math.Abs(float64(tt.got-tt.want)) > 1e-6 {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestView(t *testing.T) {
	raw := make([]byte, 7)
	binary.NativeEndian.PutUint16(raw[0:], uint16(0x1234))
	binary.NativeEndian.PutUint16(raw[2:], uint16(0xfffe))

	got := View[int16](raw)
	if len(got) != 3 {
		t.Fatalf("expected 3 whole samples, got %d", len(got))
	}
	if got[0] != 0x1234 || got[1] != -2 {
		t.Errorf("unexpected view %v", got)
	}
	if View[int32](raw[:3]) != nil {
		t.Error("expected nil view for a short buffer")
	}
}

func TestCheckCallback(t *testing.T) {
	if err := CheckCallback(FormatFloat32, func([]float32) {}); err != nil {
		t.Errorf("matching callback rejected: %v", err)
	}
	if err := CheckCallback(FormatInt16, func([]float32) {}); err == nil {
		t.Error("expected mismatch error")
	}
	if err := CheckCallback(FormatUnknown, func([]float32) {}); err == nil {
		t.Error("expected unsupported format error")
	}
}
