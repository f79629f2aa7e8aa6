package capture

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/petems/whispr/internal/audio"
	"github.com/petems/whispr/internal/config"
	"github.com/petems/whispr/internal/overlay"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRunning    = errors.New("recorder already running")
	ErrNoRecorder        = errors.New("no active recorder found")
	ErrBufferPoisoned    = errors.New("audio buffer lock poisoned")
	ErrWorkerUnavailable = errors.New("audio worker unavailable")
)

// MeterInterval is how often the meter loop publishes the input level.
const MeterInterval = 120 * time.Millisecond

// meterScale is the fixed-point scale of the stored meter level.
const meterScale = 1000

// RecordedAudio is the final capture returned by Stop.
type RecordedAudio struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration is the length of the captured audio.
func (r RecordedAudio) Duration() time.Duration {
	return samplesDuration(len(r.Samples), r.SampleRate, r.Channels)
}

// AudioSnapshot is a read-only copy of the buffer from some absolute index on.
type AudioSnapshot struct {
	Samples      []float32
	SampleRate   int
	Channels     int
	TotalSamples int
}

func samplesDuration(n, rate, channels int) time.Duration {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	frames := n / channels
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// DBToGain converts decibels to a linear factor; 0dB is exactly 1.
func DBToGain(db float32) float32 {
	if db == 0 {
		return 1
	}
	return float32(math.Pow(10, float64(db)/20))
}

// processor is the per-chunk pipeline run on the backend's audio thread.
type processor struct {
	buf           *Buffer
	gate          *VoiceGate
	gain          float32
	gateEnabled   bool
	gateThreshold float32
	sampleRate    int
	channels      int

	level atomic.Uint32 // 0..meterScale
}

func newProcessor(cfg config.AudioConfig, stream audio.StreamConfig) *processor {
	sampleRate := max(stream.SampleRate, 1)
	channels := max(stream.Channels, 1)
	return &processor{
		buf:           NewBuffer(MaxSamples(sampleRate, channels)),
		gate:          NewVoiceGate(cfg.VADEnabled, clamp01(cfg.VADThreshold), cfg.VADSilenceMs, cfg.VADResumeMs),
		gain:          DBToGain(cfg.InputGainDB),
		gateEnabled:   cfg.NoiseGateEnabled,
		gateThreshold: clamp01(cfg.NoiseGateThreshold),
		sampleRate:    sampleRate,
		channels:      channels,
	}
}

// Level returns the last published meter level in [0, 1].
func (p *processor) Level() float32 {
	return clamp01(float32(p.level.Load()) / meterScale)
}

// processChunk never blocks beyond the buffer lock and never reports errors:
// every failure drops the chunk.
func processChunk[T audio.Sample](p *processor, data []T) {
	if len(data) == 0 {
		return
	}

	var sum float32
	for _, s := range data {
		v := audio.ToFloat32(s) * p.gain
		sum += v * v
	}
	rms := float32(math.Sqrt(float64(sum / float32(len(data)))))
	p.level.Store(uint32(clamp01(rms*2.5) * meterScale))

	if p.gate.Enabled {
		chunkMs := ChunkMillis(len(data)/p.channels, p.sampleRate)
		if !p.gate.Update(rms, chunkMs) {
			return
		}
	}

	if p.gateEnabled && rms < p.gateThreshold {
		return
	}

	appendChunk(p.buf, data, p.gain)
}

// callback returns the func([]T) the backend expects for format.
func (p *processor) callback(format audio.SampleFormat) (any, error) {
	switch format {
	case audio.FormatFloat32:
		return func(in []float32) { processChunk(p, in) }, nil
	case audio.FormatInt16:
		return func(in []int16) { processChunk(p, in) }, nil
	case audio.FormatUint16:
		return func(in []uint16) { processChunk(p, in) }, nil
	case audio.FormatInt8:
		return func(in []int8) { processChunk(p, in) }, nil
	case audio.FormatUint8:
		return func(in []uint8) { processChunk(p, in) }, nil
	case audio.FormatInt32:
		return func(in []int32) { processChunk(p, in) }, nil
	case audio.FormatUint32:
		return func(in []uint32) { processChunk(p, in) }, nil
	case audio.FormatFloat64:
		return func(in []float64) { processChunk(p, in) }, nil
	default:
		return nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, format)
	}
}

// Recorder is one live capture session: the input stream, its buffer and the
// meter loop publishing the input level to the overlay.
type Recorder struct {
	stream     audio.Stream
	proc       *processor
	sampleRate int
	channels   int
	log        zerolog.Logger

	meterStop chan struct{}
	meterDone chan struct{}
}

// StartRecorder negotiates a device and format on host, opens and starts the
// stream and launches the meter loop. On error nothing is left running.
func StartRecorder(host audio.Host, cfg config.AudioConfig, startedAtMs int64, sink overlay.Sink, log zerolog.Logger) (*Recorder, error) {
	device, streamCfg, err := audio.Negotiate(host, cfg.InputDeviceID, cfg.SampleRateHz, cfg.Channels)
	if err != nil {
		return nil, err
	}

	proc := newProcessor(cfg, streamCfg)
	callback, err := proc.callback(streamCfg.Format)
	if err != nil {
		return nil, err
	}

	stream, err := host.OpenInputStream(device, streamCfg, callback)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}

	r := &Recorder{
		stream:     stream,
		proc:       proc,
		sampleRate: proc.sampleRate,
		channels:   proc.channels,
		log:        log,
		meterStop:  make(chan struct{}),
		meterDone:  make(chan struct{}),
	}
	go r.meterLoop(sink, startedAtMs)

	log.Info().
		Str("device", device.Name).
		Stringer("config", streamCfg).
		Bool("vad", cfg.VADEnabled).
		Bool("noise_gate", cfg.NoiseGateEnabled).
		Msg("Recorder started")
	return r, nil
}

func (r *Recorder) meterLoop(sink overlay.Sink, startedAtMs int64) {
	defer close(r.meterDone)

	ticker := time.NewTicker(MeterInterval)
	defer ticker.Stop()

	for {
		if err := sink.Publish(overlay.Recording(startedAtMs, r.proc.Level())); err != nil {
			r.log.Debug().Err(err).Msg("Overlay publish failed")
		}
		select {
		case <-r.meterStop:
			return
		case <-ticker.C:
		}
	}
}

// SampleRate and Channels describe the negotiated stream format.
func (r *Recorder) SampleRate() int { return r.sampleRate }
func (r *Recorder) Channels() int   { return r.channels }

// Stop joins the meter loop, halts the stream and drains the buffer. The
// recorder must not be used afterwards.
func (r *Recorder) Stop() (RecordedAudio, error) {
	close(r.meterStop)
	<-r.meterDone

	if err := r.stream.Pause(); err != nil {
		r.log.Warn().Err(err).Msg("Failed to pause input stream")
	}
	defer func() {
		if err := r.stream.Close(); err != nil {
			r.log.Warn().Err(err).Msg("Failed to close input stream")
		}
	}()

	samples, err := r.proc.buf.Drain()
	if err != nil {
		return RecordedAudio{}, err
	}

	rec := RecordedAudio{Samples: samples, SampleRate: r.sampleRate, Channels: r.channels}
	r.log.Info().Dur("duration", rec.Duration()).Int("samples", len(samples)).Msg("Recorder stopped")
	return rec, nil
}

// Snapshot copies buffered audio from absolute index from onward without
// changing the buffer.
func (r *Recorder) Snapshot(from int) (AudioSnapshot, error) {
	samples, total, err := r.proc.buf.Snapshot(from)
	if err != nil {
		return AudioSnapshot{}, err
	}
	return AudioSnapshot{
		Samples:      samples,
		SampleRate:   r.sampleRate,
		Channels:     r.channels,
		TotalSamples: total,
	}, nil
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
