package capture

import "math"

// VoiceActivityState is the hysteresis state of a VoiceGate.
type VoiceActivityState struct {
	Active    bool
	SilenceMs uint32 // accumulated while active and quiet
	SpeechMs  uint32 // accumulated while inactive and loud
}

// VoiceGate decides per chunk whether audio is live speech. An active gate
// needs SilenceHoldMs of continuous quiet to close; a closed gate needs
// ResumeHoldMs of continuous speech to reopen. Chunk durations come from frame
// counts, never the wall clock.
//
// A gate is only touched from the audio callback and is not safe for
// concurrent use.
type VoiceGate struct {
	Enabled       bool
	Threshold     float32
	SilenceHoldMs uint32
	ResumeHoldMs  uint32

	state VoiceActivityState
}

// NewVoiceGate returns a gate that starts closed when enabled (speech must be
// proven first) and is permanently open when disabled.
func NewVoiceGate(enabled bool, threshold float32, silenceHoldMs, resumeHoldMs uint32) *VoiceGate {
	return &VoiceGate{
		Enabled:       enabled,
		Threshold:     threshold,
		SilenceHoldMs: silenceHoldMs,
		ResumeHoldMs:  resumeHoldMs,
		state:         VoiceActivityState{Active: !enabled},
	}
}

// State returns a copy of the current hysteresis state.
func (g *VoiceGate) State() VoiceActivityState {
	return g.state
}

// Update feeds one chunk's RMS and duration and reports whether the chunk
// should pass.
func (g *VoiceGate) Update(rms float32, chunkMs uint32) bool {
	if !g.Enabled {
		return true
	}

	s := &g.state
	speech := rms >= g.Threshold

	switch {
	case s.Active && speech:
		s.SilenceMs = 0
	case s.Active:
		s.SilenceMs = saturatingAdd(s.SilenceMs, chunkMs)
		if s.SilenceMs >= g.SilenceHoldMs {
			s.Active = false
			s.SpeechMs = 0
		}
	case speech:
		s.SpeechMs = saturatingAdd(s.SpeechMs, chunkMs)
		if s.SpeechMs >= g.ResumeHoldMs {
			s.Active = true
			s.SilenceMs = 0
		}
	default:
		s.SpeechMs = 0
	}

	return s.Active
}

// ChunkMillis is the duration of a chunk of frames at sampleRate, truncated.
func ChunkMillis(frames, sampleRate int) uint32 {
	if sampleRate <= 0 || frames <= 0 {
		return 0
	}
	ms := uint64(frames) * 1000 / uint64(sampleRate)
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

func saturatingAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
