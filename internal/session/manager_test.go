package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
	"github.com/audioscribelab/meetscribe/internal/store"
)

// fakeRecorder behaves like the capture engine from the manager's point of
// view: Start claims the output path, Stop writes the finished file.
type fakeRecorder struct {
	mu        sync.Mutex
	recording bool
	path      string
	startErr  error
	stopErr   error
	payload   []byte
}

func (f *fakeRecorder) Start(outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.recording = true
	f.path = outputPath
	return os.WriteFile(outputPath, nil, 0o644)
}

func (f *fakeRecorder) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	if f.stopErr != nil {
		return f.stopErr
	}
	payload := f.payload
	if payload == nil {
		payload = []byte("RIFF....WAVE")
	}
	return os.WriteFile(f.path, payload, 0o644)
}

func (f *fakeRecorder) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func testManager(t *testing.T) (*Manager, *fakeRecorder, *store.Store) {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Audio:  config.AudioConfig{SampleRate: 16000, Channels: 1},
		Output: config.OutputConfig{Directory: t.TempDir()},
	}
	rec := &fakeRecorder{}
	return NewManager(rec, st, cfg, zap.NewNop().Sugar()), rec, st
}

func TestStartStop_PersistsRecording(t *testing.T) {
	m, _, st := testManager(t)
	ctx := context.Background()

	id, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if id == "" {
		t.Fatal("Start returned an empty session id")
	}
	if !m.IsRecording() {
		t.Error("IsRecording should be true while a session is active")
	}

	rec, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if m.IsRecording() {
		t.Error("IsRecording should be false after Stop")
	}

	if !strings.HasPrefix(rec.Filename, "recording_") || !strings.HasSuffix(rec.Filename, "_"+id+".wav") {
		t.Errorf("unexpected final filename %q for session %s", rec.Filename, id)
	}
	if filepath.Base(rec.FilePath) != rec.Filename {
		t.Errorf("FilePath %q does not carry Filename %q", rec.FilePath, rec.Filename)
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		t.Errorf("final file missing: %v", err)
	}
	if rec.Duration == nil || *rec.Duration < 0 {
		t.Errorf("bad duration: %v", rec.Duration)
	}
	if rec.FileSize == nil || *rec.FileSize == 0 {
		t.Errorf("bad file size: %v", rec.FileSize)
	}
	if rec.SampleRate == nil || *rec.SampleRate != 16000 || rec.Channels == nil || *rec.Channels != 1 {
		t.Errorf("format metadata not persisted: %+v", rec)
	}

	stored, err := st.Recording(ctx, rec.ID)
	if err != nil || stored == nil {
		t.Fatalf("recording not in store: %v, %v", stored, err)
	}
}

func TestStart_RejectsSecondSession(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err := m.Start(ctx)
	if !apperr.IsKind(err, apperr.KindStateConflict) {
		t.Errorf("expected state conflict, got %v", err)
	}
}

func TestStop_WithoutSession(t *testing.T) {
	m, _, _ := testManager(t)
	_, err := m.Stop(context.Background())
	if !apperr.IsKind(err, apperr.KindStateConflict) {
		t.Errorf("expected state conflict, got %v", err)
	}
}

func TestStart_ConcurrentExactlyOneWins(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Start(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindStateConflict):
			conflict++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != n-1 {
		t.Errorf("expected 1 winner and %d conflicts, got %d and %d", n-1, ok, conflict)
	}
}

func TestStart_EngineFailureLeavesNoSession(t *testing.T) {
	m, rec, _ := testManager(t)
	ctx := context.Background()

	rec.startErr = apperr.New(apperr.KindResourceUnavailable, "no input device")
	if _, err := m.Start(ctx); !apperr.IsKind(err, apperr.KindResourceUnavailable) {
		t.Fatalf("expected engine error, got %v", err)
	}

	rec.startErr = nil
	if _, err := m.Start(ctx); err != nil {
		t.Errorf("manager should be usable after a failed start: %v", err)
	}
}

func TestStop_RetriesAfterFinalizeFailure(t *testing.T) {
	m, frec, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Sabotage the rename by removing the temp file after capture stops.
	tempPath := frec.path
	if err := frec.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(tempPath); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Stop(ctx); err == nil {
		t.Fatal("Stop should fail when the capture file is gone")
	}

	// The session survives the failure, so a retry can finish the job.
	if err := os.WriteFile(tempPath, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("retried Stop failed: %v", err)
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		t.Errorf("final file missing after retry: %v", err)
	}
}

func TestStop_RetryKeepsDuration(t *testing.T) {
	m, frec, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	tempPath := frec.path
	if err := frec.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(tempPath); err != nil {
		t.Fatal(err)
	}

	// First Stop fails at finalization but fixes the stop time.
	if _, err := m.Stop(ctx); err == nil {
		t.Fatal("Stop should fail when the capture file is gone")
	}

	// A retry a second later must not count the delay as recorded audio.
	time.Sleep(1100 * time.Millisecond)
	if err := os.WriteFile(tempPath, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("retried Stop failed: %v", err)
	}
	if rec.Duration == nil || *rec.Duration != 0 {
		t.Errorf("duration inflated by the retry delay: %v", rec.Duration)
	}
}

func TestDelete_RemovesFileAndRow(t *testing.T) {
	m, _, st := testManager(t)
	ctx := context.Background()

	if _, err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err := m.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(rec.FilePath); !os.IsNotExist(err) {
		t.Errorf("file should be gone, stat returned %v", err)
	}
	if got, _ := st.Recording(ctx, rec.ID); got != nil {
		t.Error("row should be gone")
	}

	if err := m.Delete(ctx, rec.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("deleting a missing recording should be a validation error, got %v", err)
	}
}

func TestFilePath(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err := m.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}

	path, err := m.FilePath(ctx, rec.ID)
	if err != nil || path != rec.FilePath {
		t.Errorf("FilePath = %q, %v; want %q", path, err, rec.FilePath)
	}

	os.Remove(rec.FilePath)
	if _, err := m.FilePath(ctx, rec.ID); !apperr.IsKind(err, apperr.KindResourceUnavailable) {
		t.Errorf("missing file should be resource unavailable, got %v", err)
	}
}
