//go:build !darwin && !linux && !windows

package hotkey

// New reports ErrUnsupported; callers fall back to other input.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
