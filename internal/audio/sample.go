package audio

import (
	"fmt"
	"unsafe"
)

// Sample is any integer or float sample encoding that converts to a
// normalized float32 in [-1, 1].
type Sample interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | float32 | float64
}

// ToFloat32 normalizes one sample. Unsigned encodings are centered on their midpoint.
func ToFloat32[T Sample](v T) float32 {
	switch x := any(v).(type) {
	case float32:
		return x
	case float64:
		return float32(x)
	case int8:
		return float32(x) / 128
	case uint8:
		return (float32(x) - 128) / 128
	case int16:
		return float32(x) / 32768
	case uint16:
		return (float32(x) - 32768) / 32768
	case int32:
		return float32(float64(x) / 2147483648)
	case uint32:
		return float32((float64(x) - 2147483648) / 2147483648)
	}
	return 0
}

// View reinterprets a raw native-endian byte buffer as samples of type T
// without copying. Trailing bytes that do not form a whole sample are ignored.
func View[T Sample](raw []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(raw) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), n)
}

// CheckCallback reports whether callback has the func([]T) signature that
// matches format.
func CheckCallback(format SampleFormat, callback any) error {
	ok := false
	switch format {
	case FormatInt8:
		_, ok = callback.(func([]int8))
	case FormatUint8:
		_, ok = callback.(func([]uint8))
	case FormatInt16:
		_, ok = callback.(func([]int16))
	case FormatUint16:
		_, ok = callback.(func([]uint16))
	case FormatInt32:
		_, ok = callback.(func([]int32))
	case FormatUint32:
		_, ok = callback.(func([]uint32))
	case FormatFloat32:
		_, ok = callback.(func([]float32))
	case FormatFloat64:
		_, ok = callback.(func([]float64))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if !ok {
		return fmt.Errorf("callback %T does not match sample format %s", callback, format)
	}
	return nil
}
