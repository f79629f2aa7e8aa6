package capture

import (
	"sync"

	"github.com/petems/whispr/internal/audio"
)

// MaxRecordingSeconds bounds the retained audio regardless of session length.
const MaxRecordingSeconds = 600

// MaxSamples is the buffer capacity for a stream format.
func MaxSamples(sampleRate, channels int) int {
	return max(sampleRate, 1) * max(channels, 1) * MaxRecordingSeconds
}

// Buffer keeps the most recent samples of a session in a ring, addressed by an
// absolute sample index that keeps counting across eviction. The sample at
// logical position i has absolute index Total()-Len()+i.
//
// Storage grows on demand up to the capacity and is reused circularly from
// then on, so a full buffer appends without allocating.
type Buffer struct {
	mu       sync.Mutex
	ring     []float32
	head     int // oldest sample once ring is full
	max      int
	total    int
	poisoned bool
}

// NewBuffer returns a buffer retaining at most maxSamples samples.
func NewBuffer(maxSamples int) *Buffer {
	return &Buffer{max: maxSamples}
}

// Append stores already-normalized samples and returns how many were kept.
func (b *Buffer) Append(samples []float32) int {
	n, _ := appendChunk(b, samples, 1)
	return n
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Total returns the absolute number of samples ever appended.
func (b *Buffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Snapshot copies the retained samples from absolute index from onward and
// returns them with the current total. Indices older than the retained window
// yield everything retained; indices at or past the total yield nothing.
func (b *Buffer) Snapshot(from int) ([]float32, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.poisoned {
		return nil, 0, ErrBufferPoisoned
	}

	n := len(b.ring)
	base := b.total - n
	start := 0
	if from > base {
		start = min(from-base, n)
	}
	return b.copyLocked(start), b.total, nil
}

// Drain returns every retained sample in order and empties the buffer. The
// absolute total is left untouched.
func (b *Buffer) Drain() ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.poisoned {
		return nil, ErrBufferPoisoned
	}

	out := b.copyLocked(0)
	b.ring = nil
	b.head = 0
	return out, nil
}

// copyLocked copies logical positions [start, len) into a new slice.
func (b *Buffer) copyLocked(start int) []float32 {
	n := len(b.ring)
	out := make([]float32, n-start)
	if len(out) == 0 {
		return out
	}
	first := (b.head + start) % n
	copied := copy(out, b.ring[first:])
	copy(out[copied:], b.ring[:b.head])
	return out
}

// appendChunk converts and stores one callback chunk, evicting the oldest
// samples once the buffer is full. A chunk larger than the remaining history
// only keeps its tail. The total advances by the samples actually kept.
//
// ok is false when the buffer is poisoned; a panic while the lock is held
// poisons it so later readers fail instead of seeing a torn ring.
func appendChunk[T audio.Sample](b *Buffer, data []T, gain float32) (kept int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.poisoned {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			b.poisoned = true
			kept, ok = 0, false
		}
	}()

	start := 0
	if b.max > 0 {
		current := len(b.ring)
		incoming := len(data)
		if total := current + incoming; total > b.max {
			overflow := total - b.max
			if overflow >= current {
				b.ring = b.ring[:0]
				b.head = 0
				start = min(overflow-current, incoming)
			}
			// Otherwise the ring overwrites the oldest samples below.
		}
	}

	slice := data[start:]
	if len(slice) == 0 {
		return 0, true
	}

	for _, s := range slice {
		v := audio.ToFloat32(s) * gain
		if b.max <= 0 || len(b.ring) < b.max {
			b.ring = append(b.ring, v)
			continue
		}
		b.ring[b.head] = v
		b.head++
		if b.head == b.max {
			b.head = 0
		}
	}
	b.total += len(slice)
	return len(slice), true
}

// poison marks the buffer unusable, as a panic inside appendChunk would.
func (b *Buffer) poison() {
	b.mu.Lock()
	b.poisoned = true
	b.mu.Unlock()
}
