package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
)

// stopPollInterval is how often the capture goroutine checks the stop flag.
const stopPollInterval = 100 * time.Millisecond

// Engine owns one capture goroutine and the sample buffer it fills. It
// moves between exactly two states, idle and capturing; Start and Stop are
// serialized by an internal mutex.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	cfg     config.AudioConfig
	log     *zap.SugaredLogger

	// capturing gates the sample callback; clearing it signals the capture
	// goroutine to tear down.
	capturing atomic.Bool

	buffer *SampleBuffer

	// done is closed by the capture goroutine after finalization; finalErr
	// holds the finalization outcome and is safe to read once done closes.
	done     chan struct{}
	finalErr error
}

// NewEngine creates a capture engine over the given backend.
func NewEngine(backend Backend, cfg config.AudioConfig, log *zap.SugaredLogger) *Engine {
	return &Engine{
		backend: backend,
		cfg:     cfg,
		log:     log,
		buffer:  NewSampleBuffer(),
	}
}

// Start begins capturing to outputPath. It probes the output file for
// write access before spawning the capture goroutine so permission
// failures surface synchronously, and waits for the stream to open so a
// failed start never leaves the engine capturing.
func (e *Engine) Start(outputPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.capturing.Load() {
		return apperr.New(apperr.KindStateConflict, "capture already in progress")
	}

	if parent := filepath.Dir(outputPath); parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return apperr.Wrap(apperr.KindConfiguration, "failed to create output directory", err)
		}
	}

	// Write-access probe: open and truncate the target now so filesystem
	// failures are immediate instead of surfacing inside the goroutine.
	probe, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return apperr.Wrap(apperr.KindConfiguration, "output file is not writable", err)
	}
	probe.Close()

	e.buffer.Reset()
	e.capturing.Store(true)
	e.done = make(chan struct{})
	e.finalErr = nil

	ready := make(chan error, 1)
	go e.captureLoop(outputPath, ready)

	if err := <-ready; err != nil {
		e.capturing.Store(false)
		<-e.done
		return err
	}

	e.log.Infow("Audio capture started", "output", filepath.Base(outputPath))
	return nil
}

// Stop signals the capture goroutine and waits for it to fully exit, so
// the WAV file is completely written and closed before Stop returns. The
// wait can take up to the device teardown latency.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.capturing.Load() {
		return apperr.New(apperr.KindStateConflict, "no capture in progress")
	}

	e.capturing.Store(false)
	<-e.done

	if e.finalErr != nil {
		return e.finalErr
	}

	e.log.Infow("Audio capture stopped")
	return nil
}

// IsRecording reflects the capture flag without blocking the capture
// goroutine.
func (e *Engine) IsRecording() bool {
	return e.capturing.Load()
}

// captureLoop runs on the dedicated capture goroutine: it opens the
// stream, reports readiness, polls the stop flag, then tears down and
// encodes the accumulated samples.
func (e *Engine) captureLoop(outputPath string, ready chan<- error) {
	defer close(e.done)

	format, err := e.negotiateFormat()
	if err != nil {
		ready <- err
		return
	}

	gain := float32(e.cfg.Gain)
	floor := float32(e.cfg.NoiseFloor)

	// The callback runs on the backend's audio thread: lock, append,
	// clamped gain. No I/O, no blocking waits.
	stream, err := e.backend.OpenStream(StreamParams{
		DeviceName: e.cfg.Device,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, func(in []float32) {
		if !e.capturing.Load() {
			return
		}
		adjusted := make([]float32, len(in))
		for i, s := range in {
			if abs32(s) > floor {
				s *= gain
			}
			if s > 1.0 {
				s = 1.0
			} else if s < -1.0 {
				s = -1.0
			}
			adjusted[i] = s
		}
		e.buffer.Append(adjusted)
	})
	if err != nil {
		ready <- apperr.Wrap(apperr.KindResourceUnavailable, "failed to open capture stream", err)
		return
	}

	ready <- nil

	for e.capturing.Load() {
		time.Sleep(stopPollInterval)
	}

	if err := stream.Close(); err != nil {
		e.log.Warnw("Stream teardown reported an error", "error", err)
	}

	e.finalErr = e.finalize(outputPath)
}

// finalize encodes the captured samples and verifies the result.
func (e *Engine) finalize(outputPath string) error {
	samples := e.buffer.Take()
	if len(samples) == 0 {
		return apperr.New(apperr.KindResourceUnavailable, "no audio data captured")
	}

	if err := EncodeWAV(outputPath, samples, e.cfg.SampleRate); err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return apperr.Wrap(apperr.KindResourceUnavailable, "output file was not created", err)
	}
	if info.Size() == 0 {
		return apperr.Newf(apperr.KindResourceUnavailable, "output file is empty: %s", filepath.Base(outputPath))
	}

	e.log.Infow("Capture finalized", "samples", len(samples), "bytes", info.Size())
	return nil
}

// negotiateFormat resolves the stream format for the configured device,
// preferring an exact match to the target rate and channel count.
func (e *Engine) negotiateFormat() (StreamFormat, error) {
	ranges, err := e.backend.SupportedFormats(e.cfg.Device)
	if err != nil {
		return StreamFormat{}, apperr.Wrap(apperr.KindResourceUnavailable, "failed to query device formats", err)
	}
	return ChooseFormat(ranges, float64(e.cfg.SampleRate), e.cfg.Channels)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
