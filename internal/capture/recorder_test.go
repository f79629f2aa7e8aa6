package capture

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/petems/whispr/internal/audio"
	"github.com/petems/whispr/internal/audio/audiotest"
	"github.com/petems/whispr/internal/config"
	"github.com/petems/whispr/internal/overlay"
	"github.com/rs/zerolog"
)

type recordingSink struct {
	mu     sync.Mutex
	states []overlay.State
}

func (s *recordingSink) Publish(st overlay.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *recordingSink) last() overlay.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[len(s.states)-1]
}

func constant(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func startTestRecorder(t *testing.T, host *audiotest.Host, cfg config.AudioConfig) (*Recorder, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	r, err := StartRecorder(host, cfg, 1234, sink, zerolog.Nop())
	if err != nil {
		t.Fatalf("StartRecorder: %v", err)
	}
	return r, sink
}

func TestDBToGain(t *testing.T) {
	if DBToGain(0) != 1 {
		t.Errorf("DBToGain(0) = %v, want exactly 1", DBToGain(0))
	}
	if got := DBToGain(20); math.Abs(float64(got)-10) > 1e-4 {
		t.Errorf("DBToGain(20) = %v, want 10", got)
	}
	if got := DBToGain(-6); math.Abs(float64(got)-0.501187) > 1e-4 {
		t.Errorf("DBToGain(-6) = %v", got)
	}
}

func TestRecorderCapturesAndStops(t *testing.T) {
	host := audiotest.NewHost()
	r, _ := startTestRecorder(t, host, config.DefaultAudio())

	if r.SampleRate() != 16000 || r.Channels() != 1 {
		t.Fatalf("negotiated %dHz x%d, want 16000 x1", r.SampleRate(), r.Channels())
	}

	host.Feed(constant(0.25, 1600))
	host.Feed(constant(-0.25, 1600))

	rec, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(rec.Samples) != 3200 {
		t.Fatalf("expected 3200 samples, got %d", len(rec.Samples))
	}
	if rec.Samples[0] != 0.25 || rec.Samples[3199] != -0.25 {
		t.Errorf("samples out of order: %v ... %v", rec.Samples[0], rec.Samples[3199])
	}
	if rec.Duration() != 200*time.Millisecond {
		t.Errorf("duration %v, want 200ms", rec.Duration())
	}
	if !host.Last().Closed() {
		t.Error("stream should be closed after Stop")
	}
}

func TestRecorderAppliesGain(t *testing.T) {
	host := audiotest.NewHost()
	cfg := config.DefaultAudio()
	cfg.InputGainDB = 20
	r, _ := startTestRecorder(t, host, cfg)
	defer r.Stop()

	host.Feed(constant(0.05, 160))

	snap, err := r.Snapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(snap.Samples[0])-0.5) > 1e-4 {
		t.Errorf("expected gained sample 0.5, got %v", snap.Samples[0])
	}
}

func TestRecorderNoiseGate(t *testing.T) {
	host := audiotest.NewHost()
	cfg := config.DefaultAudio()
	cfg.NoiseGateEnabled = true
	cfg.NoiseGateThreshold = 0.1
	r, _ := startTestRecorder(t, host, cfg)
	defer r.Stop()

	host.Feed(constant(0.01, 160))
	snap, _ := r.Snapshot(0)
	if snap.TotalSamples != 0 || len(snap.Samples) != 0 {
		t.Fatalf("gated chunk was stored: total %d", snap.TotalSamples)
	}

	host.Feed(constant(0.3, 160))
	snap, _ = r.Snapshot(0)
	if snap.TotalSamples != 160 {
		t.Fatalf("loud chunk should pass the gate, total %d", snap.TotalSamples)
	}
}

func TestRecorderVoiceActivityDropsChunks(t *testing.T) {
	host := audiotest.NewHost()
	cfg := config.DefaultAudio()
	cfg.VADEnabled = true
	cfg.VADThreshold = 0.1
	cfg.VADSilenceMs = 300
	cfg.VADResumeMs = 200
	r, _ := startTestRecorder(t, host, cfg)
	defer r.Stop()

	chunk := 1600 // 100ms at 16kHz mono
	host.Feed(constant(0.5, chunk))
	if snap, _ := r.Snapshot(0); snap.TotalSamples != 0 {
		t.Fatalf("speech must be proven before audio passes, total %d", snap.TotalSamples)
	}

	host.Feed(constant(0.5, chunk))
	if snap, _ := r.Snapshot(0); snap.TotalSamples != chunk {
		t.Fatalf("second loud chunk should open the gate, total %d", snap.TotalSamples)
	}

	// Two quiet chunks pass; the third reaches the silence hold and is dropped
	// along with everything after it.
	for i := 0; i < 4; i++ {
		host.Feed(constant(0.01, chunk))
	}
	if snap, _ := r.Snapshot(0); snap.TotalSamples != 3*chunk {
		t.Fatalf("expected %d samples after silence hold, got %d", 3*chunk, snap.TotalSamples)
	}
}

func TestRecorderVADRunsBeforeNoiseGate(t *testing.T) {
	host := audiotest.NewHost()
	cfg := config.DefaultAudio()
	cfg.VADEnabled = true
	cfg.VADThreshold = 0.1
	cfg.VADSilenceMs = 300
	cfg.VADResumeMs = 100
	cfg.NoiseGateEnabled = true
	cfg.NoiseGateThreshold = 0.2
	r, _ := startTestRecorder(t, host, cfg)
	defer r.Stop()

	// Opens the VAD but is below the noise gate.
	host.Feed(constant(0.15, 1600))
	if snap, _ := r.Snapshot(0); snap.TotalSamples != 0 {
		t.Fatalf("noise gate should still drop the chunk, total %d", snap.TotalSamples)
	}
	host.Feed(constant(0.3, 1600))
	if snap, _ := r.Snapshot(0); snap.TotalSamples != 1600 {
		t.Fatalf("expected one chunk stored, total %d", snap.TotalSamples)
	}
}

func TestRecorderInt16Stream(t *testing.T) {
	host := audiotest.NewHost()
	host.Ranges[host.DefaultName] = []audio.ConfigRange{
		{Channels: 2, MinSampleRate: 44100, MaxSampleRate: 48000, Format: audio.FormatInt16},
	}
	r, _ := startTestRecorder(t, host, config.DefaultAudio())

	if r.SampleRate() != 44100 || r.Channels() != 2 {
		t.Fatalf("expected fallback to 44100 x2, got %d x%d", r.SampleRate(), r.Channels())
	}
	host.Feed(constant(0.5, 882))

	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Samples) != 882 {
		t.Fatalf("expected 882 samples, got %d", len(rec.Samples))
	}
	if math.Abs(float64(rec.Samples[0])-0.5) > 1e-3 {
		t.Errorf("int16 conversion: got %v", rec.Samples[0])
	}
	if rec.Duration() != 10*time.Millisecond {
		t.Errorf("duration %v, want 10ms", rec.Duration())
	}
}

func TestRecorderMeterLoop(t *testing.T) {
	host := audiotest.NewHost()
	r, sink := startTestRecorder(t, host, config.DefaultAudio())

	host.Feed(constant(0.2, 160))
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() < 2 {
		t.Fatal("meter loop did not publish")
	}

	st := sink.last()
	if !st.Recording || st.StartedAtMs == nil || *st.StartedAtMs != 1234 {
		t.Errorf("unexpected overlay state %+v", st)
	}
	if st.Level == nil || math.Abs(float64(*st.Level)-0.5) > 0.01 {
		t.Errorf("expected level 0.5 (rms 0.2 * 2.5), got %v", st.Level)
	}

	if _, err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	n := sink.count()
	time.Sleep(3 * MeterInterval)
	if sink.count() != n {
		t.Error("meter loop published after Stop returned")
	}
}

func TestRecorderPoisonedBuffer(t *testing.T) {
	host := audiotest.NewHost()
	r, _ := startTestRecorder(t, host, config.DefaultAudio())

	host.Feed(constant(0.2, 160))
	r.proc.buf.poison()
	host.Feed(constant(0.2, 160))

	if _, err := r.Snapshot(0); !errors.Is(err, ErrBufferPoisoned) {
		t.Errorf("Snapshot: expected ErrBufferPoisoned, got %v", err)
	}
	if _, err := r.Stop(); !errors.Is(err, ErrBufferPoisoned) {
		t.Errorf("Stop: expected ErrBufferPoisoned, got %v", err)
	}
	if !host.Last().Closed() {
		t.Error("stream should be closed even when the drain fails")
	}
}

func TestStartRecorderFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("open", func(t *testing.T) {
		host := audiotest.NewHost()
		host.OpenErr = boom
		if _, err := StartRecorder(host, config.DefaultAudio(), 0, overlay.Discard, zerolog.Nop()); !errors.Is(err, boom) {
			t.Fatalf("expected open error, got %v", err)
		}
	})

	t.Run("start", func(t *testing.T) {
		host := audiotest.NewHost()
		host.StartErr = boom
		if _, err := StartRecorder(host, config.DefaultAudio(), 0, overlay.Discard, zerolog.Nop()); !errors.Is(err, boom) {
			t.Fatalf("expected start error, got %v", err)
		}
		if !host.Last().Closed() {
			t.Error("stream must be closed when Start fails")
		}
	})

	t.Run("no device", func(t *testing.T) {
		host := audiotest.NewHost()
		host.DefaultName = ""
		if _, err := StartRecorder(host, config.DefaultAudio(), 0, overlay.Discard, zerolog.Nop()); !errors.Is(err, audio.ErrNoInputDevice) {
			t.Fatalf("expected ErrNoInputDevice, got %v", err)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		host := audiotest.NewHost()
		host.Ranges[host.DefaultName] = []audio.ConfigRange{
			{Channels: 1, MinSampleRate: 16000, MaxSampleRate: 16000, Format: audio.FormatUnknown},
		}
		if _, err := StartRecorder(host, config.DefaultAudio(), 0, overlay.Discard, zerolog.Nop()); !errors.Is(err, audio.ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestProcessChunkIgnoresEmpty(t *testing.T) {
	p := newProcessor(config.DefaultAudio(), audio.StreamConfig{SampleRate: 16000, Channels: 1, Format: audio.FormatFloat32})
	p.level.Store(700)

	processChunk(p, []float32{})

	if p.level.Load() != 700 || p.buf.Total() != 0 {
		t.Error("empty chunk must not touch meter or buffer")
	}
}

func TestProcessorClampsLevel(t *testing.T) {
	p := newProcessor(config.DefaultAudio(), audio.StreamConfig{SampleRate: 16000, Channels: 1, Format: audio.FormatFloat32})
	processChunk(p, constant(0.9, 16))
	if p.Level() != 1 {
		t.Errorf("level should clamp at 1, got %v", p.Level())
	}
}
