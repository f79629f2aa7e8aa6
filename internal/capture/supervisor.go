package capture

import (
	"sync"

	"github.com/petems/whispr/internal/audio"
	"github.com/petems/whispr/internal/config"
	"github.com/petems/whispr/internal/overlay"
	"github.com/rs/zerolog"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdSnapshot
)

type command struct {
	kind        commandKind
	settings    config.AudioConfig
	startedAtMs int64
	fromIndex   int
	reply       chan result
}

type result struct {
	err      error
	audio    RecordedAudio
	snapshot AudioSnapshot
}

// SupervisorConfig wires a Supervisor to its collaborators.
type SupervisorConfig struct {
	Host   audio.Host
	Sink   overlay.Sink // nil: overlay.Discard
	Logger zerolog.Logger
}

// Supervisor owns at most one active Recorder and serializes Start, Stop and
// Snapshot requests on a single goroutine. Only that goroutine ever touches
// the Recorder, so callers never share its state.
type Supervisor struct {
	host audio.Host
	sink overlay.Sink
	log  zerolog.Logger

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSupervisor starts the command loop. Close stops it.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	sink := cfg.Sink
	if sink == nil {
		sink = overlay.Discard
	}
	s := &Supervisor{
		host: cfg.Host,
		sink: sink,
		log:  cfg.Logger,
		cmds: make(chan command),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Supervisor) run() {
	defer close(s.done)

	var recorder *Recorder
	for {
		select {
		case <-s.quit:
			if recorder != nil {
				if _, err := recorder.Stop(); err != nil {
					s.log.Warn().Err(err).Msg("Failed to stop recorder on shutdown")
				}
			}
			return
		case cmd := <-s.cmds:
			cmd.reply <- s.handle(&recorder, cmd)
		}
	}
}

func (s *Supervisor) handle(recorder **Recorder, cmd command) result {
	switch cmd.kind {
	case cmdStart:
		if *recorder != nil {
			return result{err: ErrAlreadyRunning}
		}
		r, err := StartRecorder(s.host, cmd.settings, cmd.startedAtMs, s.sink, s.log)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to start recorder")
			return result{err: err}
		}
		*recorder = r
		return result{}

	case cmdStop:
		r := *recorder
		if r == nil {
			return result{err: ErrNoRecorder}
		}
		*recorder = nil
		rec, err := r.Stop()
		return result{audio: rec, err: err}

	case cmdSnapshot:
		if *recorder == nil {
			return result{err: ErrNoRecorder}
		}
		snap, err := (*recorder).Snapshot(cmd.fromIndex)
		return result{snapshot: snap, err: err}
	}
	return result{}
}

// call sends cmd and waits for its reply. It fails with ErrWorkerUnavailable
// once the loop has exited.
func (s *Supervisor) call(cmd command) result {
	cmd.reply = make(chan result, 1)

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return result{err: ErrWorkerUnavailable}
	}

	select {
	case res := <-cmd.reply:
		return res
	case <-s.done:
		select {
		case res := <-cmd.reply:
			return res
		default:
			return result{err: ErrWorkerUnavailable}
		}
	}
}

// Start opens a capture session with settings. It fails with
// ErrAlreadyRunning while a session is active.
func (s *Supervisor) Start(settings config.AudioConfig, startedAtMs int64) error {
	return s.call(command{kind: cmdStart, settings: settings, startedAtMs: startedAtMs}).err
}

// Stop ends the active session and returns everything still buffered. It
// fails with ErrNoRecorder when no session is active.
func (s *Supervisor) Stop() (RecordedAudio, error) {
	res := s.call(command{kind: cmdStop})
	return res.audio, res.err
}

// Snapshot copies the active session's buffer from absolute index fromIndex on.
func (s *Supervisor) Snapshot(fromIndex int) (AudioSnapshot, error) {
	res := s.call(command{kind: cmdSnapshot, fromIndex: fromIndex})
	return res.snapshot, res.err
}

// Close stops any active session and terminates the command loop. Later
// commands fail with ErrWorkerUnavailable.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
	return nil
}
