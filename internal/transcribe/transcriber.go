// Package transcribe turns finished recordings into text. A configurable
// backend does the actual recognition; when it cannot, a deterministic
// placeholder stands in so the pipeline still completes.
package transcribe

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
	"github.com/audioscribelab/meetscribe/internal/store"
)

// Input files below this size carry no usable speech.
const minFileSize = 1024

// Recognizer is a speech recognition backend.
type Recognizer interface {
	Name() string
	// MaxFileSize is the largest input the backend accepts, in bytes.
	MaxFileSize() int64
	// Bootstrap prepares the backend for use. It is called once, before the
	// first Transcribe.
	Bootstrap(ctx context.Context) error
	// Transcribe returns the recognized text and a confidence in [0,1].
	Transcribe(ctx context.Context, path, language string) (string, float64, error)
}

// Orchestrator drives a Recognizer through the transcription state machine
// and falls back to placeholder output when the backend cannot serve.
type Orchestrator struct {
	mu    sync.Mutex
	ready bool

	cfg      config.TranscribeConfig
	backend  Recognizer
	fallback *Fallback
	log      *zap.SugaredLogger
}

func NewOrchestrator(backend Recognizer, cfg config.TranscribeConfig, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		backend:  backend,
		fallback: NewFallback(),
		log:      log,
	}
}

// NewOrchestratorFromConfig picks the backend named by the configuration.
func NewOrchestratorFromConfig(cfg config.TranscribeConfig, log *zap.SugaredLogger) (*Orchestrator, error) {
	var backend Recognizer
	switch cfg.Backend {
	case "local":
		backend = NewLocalRecognizer(cfg, log)
	case "remote":
		backend = NewRemoteRecognizer(cfg, log)
	default:
		return nil, apperr.Newf(apperr.KindConfiguration, "unknown transcription backend %q", cfg.Backend)
	}
	return NewOrchestrator(backend, cfg, log), nil
}

// Initialize bootstraps the backend. It is safe to call repeatedly and from
// multiple goroutines; concurrent callers share one bootstrap run.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}
	if err := o.backend.Bootstrap(ctx); err != nil {
		return err
	}
	o.ready = true
	o.log.Infow("transcription backend ready", "backend", o.backend.Name())
	return nil
}

// Ready reports whether Initialize has completed.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// Transcribe runs recognition over the audio file at path. The returned
// Transcription is always in a terminal state; on validation failure it is
// Failed with the reason, and the error is returned alongside it.
func (o *Orchestrator) Transcribe(ctx context.Context, path, recordingID, language string) (store.Transcription, error) {
	if language == "" {
		language = o.cfg.Language
	}
	tr := store.NewTranscription(recordingID, language)

	if !o.Ready() {
		err := apperr.New(apperr.KindStateConflict, "transcription backend is not initialized")
		return tr.Fail(err.Error()), err
	}

	if err := o.validateInput(path); err != nil {
		return tr.Fail(err.Error()), err
	}

	tr = tr.SetProcessing()
	started := time.Now()

	text, confidence, err := o.backend.Transcribe(ctx, path, language)
	backendName := o.backend.Name()
	if err != nil {
		if !o.shouldFallBack(err) {
			elapsed := time.Since(started).Milliseconds()
			o.log.Warnw("recognition failed",
				"backend", backendName, "error", err)
			return tr.Fail(err.Error()).WithProcessingTime(elapsed), err
		}
		o.log.Warnw("recognition backend unavailable, using placeholder",
			"backend", backendName, "error", err)
		text, confidence, err = o.fallback.Transcribe(ctx, path, language)
		backendName = o.fallback.Name()
		if err != nil {
			elapsed := time.Since(started).Milliseconds()
			return tr.Fail(err.Error()).WithProcessingTime(elapsed), err
		}
	}

	text = Normalize(text, language)
	confidence = clampConfidence(confidence)

	elapsed := time.Since(started).Milliseconds()
	o.log.Infow("transcription finished",
		"backend", backendName, "recording_id", recordingID,
		"chars", len(text), "elapsed_ms", elapsed)
	return tr.Complete(text, &confidence).WithProcessingTime(elapsed), nil
}

// shouldFallBack reports whether a backend error means the backend is
// unavailable, in which case the placeholder stands in. Connectivity
// problems and missing resources (no key, no interpreter) always qualify,
// and for the local backend so do subprocess failures. A remote server-side
// rejection such as a bad API key is a real failure and must surface as one
// rather than turning into fabricated text.
func (o *Orchestrator) shouldFallBack(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindConnectivity, apperr.KindResourceUnavailable:
		return true
	case apperr.KindExecution:
		return o.backend.Name() == "local"
	default:
		return false
	}
}

func (o *Orchestrator) validateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "audio file not found", err)
	}
	size := info.Size()
	if size < minFileSize {
		return apperr.Newf(apperr.KindValidation,
			"audio file too small: %d bytes (minimum %d)", size, minFileSize)
	}
	if max := o.backend.MaxFileSize(); size > max {
		return apperr.Newf(apperr.KindValidation,
			"audio file too large: %d bytes (maximum %d)", size, max)
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
