// Package overlay publishes recording state for an external status display.
//
// The file publisher writes a small JSON document that a desktop extension
// polls. Meter updates arrive several times a second, so writes are coalesced:
// never more often than MinWriteInterval, at least every MaxWriteInterval while
// recording (the display treats older state as stale), and in between only
// when the level moved by LevelMinDeltaSteps on a LevelQuantizeSteps scale.
package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	MinWriteInterval   = 250 * time.Millisecond
	MaxWriteInterval   = 1000 * time.Millisecond
	LevelQuantizeSteps = 100
	LevelMinDeltaSteps = 2

	stateFile = "overlay.json"
)

// State is one overlay update. StartedAtMs and Level are nil when unknown.
type State struct {
	Recording   bool
	StartedAtMs *int64
	Level       *float32
}

// Recording builds the state published by the meter loop.
func Recording(startedAtMs int64, level float32) State {
	return State{Recording: true, StartedAtMs: &startedAtMs, Level: &level}
}

// Idle is the state published once a session ends.
func Idle() State {
	return State{}
}

// Sink accepts best-effort overlay updates. Implementations must not block
// for long and callers never fail an operation because Publish failed.
type Sink interface {
	Publish(s State) error
}

// Discard is a Sink that drops every update.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(State) error { return nil }

// Multi fans one update out to several sinks and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Publish(s State) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type fileState struct {
	Recording   bool     `json:"recording"`
	StartedAtMs *int64   `json:"started_at_ms"`
	UpdatedAtMs int64    `json:"updated_at_ms"`
	Level       *float32 `json:"level"`
}

type writeCache struct {
	initialized   bool
	lastRecording bool
	lastStartedAt *int64
	lastLevelQ    int
	lastWriteAtMs int64
}

// FilePublisher is the throttled, atomically-written overlay state file.
type FilePublisher struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	cache writeCache
}

// NewFilePublisher writes overlay.json into dir.
func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{dir: dir, now: time.Now}
}

// Path returns the state file location.
func (p *FilePublisher) Path() string {
	return filepath.Join(p.dir, stateFile)
}

func (p *FilePublisher) Publish(s State) error {
	now := p.now().UnixMilli()
	levelQ := quantizeLevel(s.Level)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !shouldWrite(p.cache, s.Recording, s.StartedAtMs, levelQ, now) {
		return nil
	}

	payload, err := json.Marshal(fileState{
		Recording:   s.Recording,
		StartedAtMs: s.StartedAtMs,
		UpdatedAtMs: now,
		Level:       s.Level,
	})
	if err != nil {
		return fmt.Errorf("encode overlay state: %w", err)
	}
	if err := writeAtomic(p.Path(), payload); err != nil {
		return err
	}

	p.cache = writeCache{
		initialized:   true,
		lastRecording: s.Recording,
		lastStartedAt: copyInt64(s.StartedAtMs),
		lastLevelQ:    levelQ,
		lastWriteAtMs: now,
	}
	return nil
}

func writeAtomic(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	tmp := path[:len(path)-len(filepath.Ext(path))] + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("write overlay state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace overlay state: %w", err)
	}
	return nil
}

// quantizeLevel maps a level to 0..LevelQuantizeSteps, or -1 when absent.
func quantizeLevel(level *float32) int {
	if level == nil {
		return -1
	}
	v := float64(*level)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	v = math.Max(0, math.Min(1, v))
	q := int(math.Round(v * LevelQuantizeSteps))
	if q > LevelQuantizeSteps {
		q = LevelQuantizeSteps
	}
	return q
}

func shouldWrite(c writeCache, recording bool, startedAt *int64, levelQ int, nowMs int64) bool {
	if !c.initialized {
		return true
	}
	if c.lastRecording != recording {
		return true
	}
	if !equalInt64(c.lastStartedAt, startedAt) {
		return true
	}
	if !recording {
		// Idle state is not time-sensitive.
		return c.lastLevelQ != levelQ
	}

	since := nowMs - c.lastWriteAtMs
	if since >= MaxWriteInterval.Milliseconds() {
		return true
	}
	if since < MinWriteInterval.Milliseconds() {
		return false
	}

	delta := c.lastLevelQ - levelQ
	if delta < 0 {
		delta = -delta
	}
	return delta >= LevelMinDeltaSteps
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
