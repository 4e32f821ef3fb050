// Package session owns the lifecycle of a recording: one active session at a
// time, from the temporary capture file through the persisted Recording row.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
	"github.com/audioscribelab/meetscribe/internal/store"
)

// Recorder is the part of the capture engine the manager drives.
type Recorder interface {
	Start(outputPath string) error
	Stop() error
	IsRecording() bool
}

type activeSession struct {
	id        string
	tempPath  string
	startedAt time.Time

	// stoppedAt is set once, when capture first stops, so a Stop retried
	// after a persist failure records the same duration.
	stoppedAt time.Time
}

// Manager serializes session start/stop and persists finished recordings.
type Manager struct {
	mu      sync.Mutex
	current *activeSession

	recorder Recorder
	store    *store.Store
	audio    config.AudioConfig
	outDir   string
	log      *zap.SugaredLogger
}

func NewManager(recorder Recorder, st *store.Store, cfg *config.Config, log *zap.SugaredLogger) *Manager {
	return &Manager{
		recorder: recorder,
		store:    st,
		audio:    cfg.Audio,
		outDir:   cfg.Output.Directory,
		log:      log,
	}
}

// Start begins a new recording session and returns its id. A second Start
// while a session is active fails without disturbing the running capture.
func (m *Manager) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return "", apperr.New(apperr.KindStateConflict, "a recording session is already active")
	}

	if err := os.MkdirAll(m.outDir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindConfiguration, "create recordings directory", err)
	}

	now := time.Now()
	tempPath := filepath.Join(m.outDir, fmt.Sprintf("recording_temp_%d.wav", now.Unix()))

	if err := m.recorder.Start(tempPath); err != nil {
		return "", err
	}

	m.current = &activeSession{
		id:        uuid.New().String(),
		tempPath:  tempPath,
		startedAt: now,
	}
	m.log.Infow("recording session started", "session_id", m.current.id, "temp_path", tempPath)
	return m.current.id, nil
}

// Stop ends the active session, finalizes the WAV under its permanent name
// and persists the Recording. The session is cleared only once the row is
// written, so a failed persist can be retried with another Stop. A failed
// engine stop is the exception: the capture produced no usable file, so
// there is nothing a retry could finalize and the session is discarded.
func (m *Manager) Stop(ctx context.Context) (*store.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.current
	if sess == nil {
		return nil, apperr.New(apperr.KindStateConflict, "no recording session is active")
	}

	if m.recorder.IsRecording() {
		if err := m.recorder.Stop(); err != nil {
			// Capture produced nothing usable. The session is spent.
			m.current = nil
			os.Remove(sess.tempPath)
			return nil, err
		}
	}
	if sess.stoppedAt.IsZero() {
		sess.stoppedAt = time.Now()
	}

	duration := int64(sess.stoppedAt.Sub(sess.startedAt).Seconds())

	filename := fmt.Sprintf("recording_%s_%s.wav", sess.startedAt.Format("20060102_150405"), sess.id)
	finalPath := filepath.Join(m.outDir, filename)
	if sess.tempPath != finalPath {
		if err := os.Rename(sess.tempPath, finalPath); err != nil {
			return nil, apperr.Wrap(apperr.KindExecution, "finalize recording file", err)
		}
		sess.tempPath = finalPath
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExecution, "stat recording file", err)
	}

	rec := store.NewRecording(filename, finalPath).
		WithDuration(duration).
		WithFileSize(info.Size()).
		WithFormat(m.audio.SampleRate, m.audio.Channels)

	if err := m.store.CreateRecording(ctx, rec); err != nil {
		return nil, apperr.Wrap(apperr.KindExecution, "persist recording", err)
	}

	m.current = nil
	m.log.Infow("recording session stopped",
		"session_id", sess.id, "file", finalPath, "duration_s", duration, "size", info.Size())
	return &rec, nil
}

// IsRecording reports whether a session is active and the engine is capturing.
func (m *Manager) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.recorder.IsRecording()
}

func (m *Manager) Recordings(ctx context.Context) ([]store.Recording, error) {
	return m.store.Recordings(ctx)
}

func (m *Manager) Recording(ctx context.Context, id string) (*store.Recording, error) {
	rec, err := m.store.Recording(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.Newf(apperr.KindValidation, "recording %s not found", id)
	}
	return rec, nil
}

// Delete removes the recording's file and then its row. A missing file is
// tolerated so a half-deleted recording can still be cleaned up.
func (m *Manager) Delete(ctx context.Context, id string) error {
	rec, err := m.Recording(ctx, id)
	if err != nil {
		return err
	}

	if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.KindExecution, "remove recording file", err)
	}

	deleted, err := m.store.DeleteRecording(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindExecution, "delete recording", err)
	}
	if !deleted {
		return apperr.Newf(apperr.KindValidation, "recording %s not found", id)
	}
	m.log.Infow("recording deleted", "recording_id", id, "file", rec.FilePath)
	return nil
}

// FilePath resolves a recording id to its audio file on disk.
func (m *Manager) FilePath(ctx context.Context, id string) (string, error) {
	rec, err := m.Recording(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		return "", apperr.Wrap(apperr.KindResourceUnavailable, "recording file missing", err)
	}
	return rec.FilePath, nil
}
