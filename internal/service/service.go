// Package service wires capture, session management, storage and
// transcription into the application facade the CLI talks to.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/audio"
	"github.com/audioscribelab/meetscribe/internal/config"
	"github.com/audioscribelab/meetscribe/internal/session"
	"github.com/audioscribelab/meetscribe/internal/store"
	"github.com/audioscribelab/meetscribe/internal/transcribe"
)

// Service is the application facade used by the CLI commands.
type Service interface {
	// Recording operations
	StartRecording(ctx context.Context) (string, error)
	StopRecording(ctx context.Context) (*store.Recording, error)
	IsRecording() bool

	// Library operations
	Recordings(ctx context.Context) ([]store.Recording, error)
	Recording(ctx context.Context, id string) (*store.Recording, error)
	DeleteRecording(ctx context.Context, id string) error

	// Transcription operations
	Transcribe(ctx context.Context, recordingID, language string) (*store.Transcription, error)
	TranscribeFile(ctx context.Context, path, language string) (*store.Transcription, error)
	Transcriptions(ctx context.Context, recordingID string) ([]store.Transcription, error)

	// Device operations
	InputDevices() []audio.Device

	Config() *config.Config
	Close() error
}

type serviceImpl struct {
	cfg          *config.Config
	store        *store.Store
	catalog      *audio.Catalog
	sessions     *session.Manager
	orchestrator *transcribe.Orchestrator
	log          *zap.SugaredLogger
}

// New builds the service from configuration: opens the database, picks the
// audio backend and prepares the transcription pipeline. The transcription
// backend is bootstrapped lazily on first use.
func New(cfg *config.Config, log *zap.SugaredLogger) (Service, error) {
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	backend := audio.NewBackend(cfg.Audio.Backend)

	orchestrator, err := transcribe.NewOrchestratorFromConfig(cfg.Transcribe, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := audio.NewEngine(backend, cfg.Audio, log)
	return &serviceImpl{
		cfg:          cfg,
		store:        st,
		catalog:      audio.NewCatalog(backend, log),
		sessions:     session.NewManager(engine, st, cfg, log),
		orchestrator: orchestrator,
		log:          log,
	}, nil
}

func (s *serviceImpl) StartRecording(ctx context.Context) (string, error) {
	return s.sessions.Start(ctx)
}

func (s *serviceImpl) StopRecording(ctx context.Context) (*store.Recording, error) {
	return s.sessions.Stop(ctx)
}

func (s *serviceImpl) IsRecording() bool {
	return s.sessions.IsRecording()
}

func (s *serviceImpl) Recordings(ctx context.Context) ([]store.Recording, error) {
	return s.sessions.Recordings(ctx)
}

func (s *serviceImpl) Recording(ctx context.Context, id string) (*store.Recording, error) {
	return s.sessions.Recording(ctx, id)
}

func (s *serviceImpl) DeleteRecording(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// Transcribe runs recognition over a stored recording and persists the
// result. Failed runs are persisted too so the reason is queryable later.
func (s *serviceImpl) Transcribe(ctx context.Context, recordingID, language string) (*store.Transcription, error) {
	path, err := s.sessions.FilePath(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.Initialize(ctx); err != nil {
		return nil, err
	}

	tr, terr := s.orchestrator.Transcribe(ctx, path, recordingID, language)
	if err := s.store.CreateTranscription(ctx, tr); err != nil {
		s.log.Errorw("persist transcription failed", "recording_id", recordingID, "error", err)
		if terr == nil {
			terr = err
		}
	}
	if terr != nil {
		return &tr, terr
	}
	return &tr, nil
}

// TranscribeFile transcribes an arbitrary audio file that is not part of
// the library. Nothing is persisted.
func (s *serviceImpl) TranscribeFile(ctx context.Context, path, language string) (*store.Transcription, error) {
	if err := s.orchestrator.Initialize(ctx); err != nil {
		return nil, err
	}
	tr, err := s.orchestrator.Transcribe(ctx, path, "", language)
	if err != nil {
		return &tr, err
	}
	return &tr, nil
}

func (s *serviceImpl) Transcriptions(ctx context.Context, recordingID string) ([]store.Transcription, error) {
	return s.store.TranscriptionsForRecording(ctx, recordingID)
}

func (s *serviceImpl) InputDevices() []audio.Device {
	return s.catalog.Devices()
}

func (s *serviceImpl) Config() *config.Config {
	return s.cfg
}

func (s *serviceImpl) Close() error {
	return s.store.Close()
}
