//go:build darwin || linux || windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

type registration struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
	done chan struct{}
}

type nativeManager struct {
	mu   sync.Mutex
	regs map[string]*registration
}

// New creates a hotkey manager backed by the OS (Carbon, X11 or Win32).
// On macOS events are only delivered while the main thread runs an event loop.
func New() (Manager, error) {
	return &nativeManager{regs: make(map[string]*registration)}, nil
}

func (m *nativeManager) Register(accel string, callback func(pressed bool)) error {
	acc, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}
	key, ok := keyCodes[acc.Key]
	if !ok {
		return fmt.Errorf("hotkey %q: key %s has no native code", accel, acc.Key)
	}
	mods := make([]hotkey.Modifier, 0, len(acc.Modifiers))
	for _, name := range acc.Modifiers {
		mods = append(mods, platformModifier(name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := acc.String()
	if _, exists := m.regs[id]; exists {
		return fmt.Errorf("hotkey %s is already registered", id)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", id, err)
	}

	r := &registration{hk: hk, stop: make(chan struct{}), done: make(chan struct{})}
	m.regs[id] = r
	go r.listen(callback)
	return nil
}

func (r *registration) listen(callback func(pressed bool)) {
	defer close(r.done)

	keydown, keyup := r.hk.Keydown(), r.hk.Keyup()
	for {
		select {
		case <-r.stop:
			return
		case <-keydown:
			callback(true)
		case <-keyup:
			callback(false)
		}
	}
}

func (r *registration) close() error {
	close(r.stop)
	<-r.done
	return r.hk.Unregister()
}

func (m *nativeManager) Unregister(accel string) error {
	acc, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := acc.String()
	r, ok := m.regs[id]
	if !ok {
		return fmt.Errorf("hotkey %s is not registered", id)
	}
	delete(m.regs, id)
	return r.close()
}

// Close unregisters every hotkey. Callbacks never run after it returns.
func (m *nativeManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, r := range m.regs {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to unregister hotkey %s: %w", id, err)
		}
		delete(m.regs, id)
	}
	return firstErr
}
