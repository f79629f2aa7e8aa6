// Package permissions checks OS privacy permissions required for capture.
package permissions

import "errors"

// ErrMicrophoneDenied is returned when the process may not open input devices.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")
