package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
	"github.com/audioscribelab/meetscribe/internal/session"
	"github.com/audioscribelab/meetscribe/internal/store"
	"github.com/audioscribelab/meetscribe/internal/transcribe"
)

type stubRecorder struct {
	mu        sync.Mutex
	recording bool
	path      string
}

func (r *stubRecorder) Start(outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.path = outputPath
	return os.WriteFile(outputPath, nil, 0o644)
}

func (r *stubRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	// Big enough to clear the transcription minimum size check.
	return os.WriteFile(r.path, make([]byte, 4096), 0o644)
}

func (r *stubRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

type stubRecognizer struct {
	text string
	err  error
}

func (s *stubRecognizer) Name() string                        { return "stub" }
func (s *stubRecognizer) MaxFileSize() int64                  { return 1 << 30 }
func (s *stubRecognizer) Bootstrap(ctx context.Context) error { return nil }
func (s *stubRecognizer) Transcribe(ctx context.Context, path, language string) (string, float64, error) {
	return s.text, 0.9, s.err
}

func testService(t *testing.T, rec session.Recorder, recognizer transcribe.Recognizer) *serviceImpl {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		Audio:      config.AudioConfig{SampleRate: 16000, Channels: 1},
		Output:     config.OutputConfig{Directory: t.TempDir()},
		Transcribe: config.TranscribeConfig{Backend: "local", Language: "ja"},
	}
	return &serviceImpl{
		cfg:          cfg,
		store:        st,
		sessions:     session.NewManager(rec, st, cfg, log),
		orchestrator: transcribe.NewOrchestrator(recognizer, cfg.Transcribe, log),
		log:          log,
	}
}

func TestRecordThenTranscribe(t *testing.T) {
	svc := testService(t, &stubRecorder{}, &stubRecognizer{text: "会議の記録です"})
	ctx := context.Background()

	if _, err := svc.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if !svc.IsRecording() {
		t.Error("should be recording")
	}

	rec, err := svc.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	tr, err := svc.Transcribe(ctx, rec.ID, "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if tr.Status.State != store.StateCompleted {
		t.Fatalf("expected completed, got %v", tr.Status)
	}
	if tr.Text != "会議の記録です" {
		t.Errorf("text = %q", tr.Text)
	}

	// The result must be queryable afterwards.
	list, err := svc.Transcriptions(ctx, rec.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("Transcriptions = %d items, %v", len(list), err)
	}
}

func TestTranscribe_PersistsFailedRuns(t *testing.T) {
	svc := testService(t, &stubRecorder{}, &stubRecognizer{text: "ok"})
	ctx := context.Background()

	if _, err := svc.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err := svc.StopRecording(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Shrink the file below the minimum so validation fails.
	if err := os.WriteFile(rec.FilePath, []byte("tiny"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Transcribe(ctx, rec.ID, ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	list, err := svc.Transcriptions(ctx, rec.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("failed run should be persisted, got %d items, %v", len(list), err)
	}
	if list[0].Status.State != store.StateFailed || list[0].Status.Reason == "" {
		t.Errorf("expected failed status with reason, got %v", list[0].Status)
	}
}

func TestTranscribeFile_DoesNotPersist(t *testing.T) {
	svc := testService(t, &stubRecorder{}, &stubRecognizer{text: "ad hoc"})
	ctx := context.Background()

	path := t.TempDir() + "/loose.wav"
	if err := os.WriteFile(path, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := svc.TranscribeFile(ctx, path, "en")
	if err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}
	if tr.Text != "ad hoc" || tr.RecordingID != "" {
		t.Errorf("unexpected result: %+v", tr)
	}

	count, err := svc.store.RecordingCount(ctx)
	if err != nil || count != 0 {
		t.Errorf("nothing should be persisted, count = %d (%v)", count, err)
	}
}

func TestTranscribe_UnknownRecording(t *testing.T) {
	svc := testService(t, &stubRecorder{}, &stubRecognizer{text: "ok"})
	if _, err := svc.Transcribe(context.Background(), "missing", ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDeleteRecording_Flow(t *testing.T) {
	svc := testService(t, &stubRecorder{}, &stubRecognizer{text: "ok"})
	ctx := context.Background()

	if _, err := svc.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err := svc.StopRecording(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteRecording(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecording failed: %v", err)
	}
	if _, err := svc.Recording(ctx, rec.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected not-found validation error, got %v", err)
	}
}
