package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
)

// fakeBackend delivers synthetic samples on its own goroutine, standing in
// for the host audio subsystem.
type fakeBackend struct {
	devices    []Device
	listErr    error
	openErr    error
	formats    []FormatRange
	feedValue  float32
	feedPeriod time.Duration
	chunkSize  int
	silent     bool // open the stream but never deliver samples
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		devices: []Device{
			{Name: "Fake Microphone", MaxInputChannels: 1, DefaultSampleRate: 16000, IsDefault: true},
		},
		formats:    []FormatRange{{MinSampleRate: 8000, MaxSampleRate: 48000, MaxChannels: 1}},
		feedValue:  0.1,
		feedPeriod: 10 * time.Millisecond,
		chunkSize:  160, // 10ms of 16kHz audio
	}
}

func (f *fakeBackend) GetType() BackendType { return BackendType("fake") }

func (f *fakeBackend) ListInputDevices() ([]Device, error) {
	return f.devices, f.listErr
}

func (f *fakeBackend) SupportedFormats(string) ([]FormatRange, error) {
	return f.formats, nil
}

func (f *fakeBackend) OpenStream(params StreamParams, onSamples func([]float32)) (Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}

	s := &fakeStream{stop: make(chan struct{})}
	if f.silent {
		return s, nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(f.feedPeriod)
		defer ticker.Stop()
		chunk := make([]float32, f.chunkSize)
		for i := range chunk {
			chunk[i] = f.feedValue
		}
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				onSamples(chunk)
			}
		}
	}()

	return s, nil
}

type fakeStream struct {
	once sync.Once
	stop chan struct{}
	wg   sync.WaitGroup
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func testEngine(t *testing.T, backend Backend) *Engine {
	t.Helper()
	cfg := config.AudioConfig{
		SampleRate: 16000,
		Channels:   1,
		Gain:       3.0,
		NoiseFloor: 0.001,
	}
	return NewEngine(backend, cfg, zap.NewNop().Sugar())
}

func TestEngine_StartStop_WritesWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "capture.wav")
	eng := testEngine(t, newFakeBackend())

	if err := eng.Start(out); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !eng.IsRecording() {
		t.Error("IsRecording should be true while capturing")
	}

	time.Sleep(300 * time.Millisecond)

	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if eng.IsRecording() {
		t.Error("IsRecording should be false after Stop")
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("output file is empty")
	}

	wav, err := ReadWAVInfo(out)
	if err != nil {
		t.Fatalf("ReadWAVInfo failed: %v", err)
	}
	if wav.SampleRate != 16000 || wav.Channels != 1 || wav.BitsPerSample != 16 {
		t.Errorf("unexpected WAV format: %+v", wav)
	}

	// ~300ms of audio, with generous slack for scheduler jitter.
	dur := wav.DurationSeconds()
	if dur < 0.1 || dur > 1.0 {
		t.Errorf("expected roughly 0.3s of audio, got %.3fs (%d samples)", dur, wav.SampleCount)
	}
}

func TestEngine_DoubleStart(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine(t, newFakeBackend())

	if err := eng.Start(filepath.Join(dir, "a.wav")); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer eng.Stop()

	err := eng.Start(filepath.Join(dir, "b.wav"))
	if !apperr.IsKind(err, apperr.KindStateConflict) {
		t.Errorf("second Start should be a state conflict, got %v", err)
	}
}

func TestEngine_StopWithoutStart(t *testing.T) {
	eng := testEngine(t, newFakeBackend())

	err := eng.Stop()
	if !apperr.IsKind(err, apperr.KindStateConflict) {
		t.Errorf("Stop without Start should be a state conflict, got %v", err)
	}
}

func TestEngine_NoSamplesCaptured(t *testing.T) {
	backend := newFakeBackend()
	backend.silent = true
	eng := testEngine(t, backend)

	out := filepath.Join(t.TempDir(), "silent.wav")
	if err := eng.Start(out); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	err := eng.Stop()
	if !apperr.IsKind(err, apperr.KindResourceUnavailable) {
		t.Errorf("zero-sample finalization should be ResourceUnavailable, got %v", err)
	}
}

func TestEngine_StreamOpenFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.openErr = errors.New("device busy")
	eng := testEngine(t, backend)

	err := eng.Start(filepath.Join(t.TempDir(), "fail.wav"))
	if !apperr.IsKind(err, apperr.KindResourceUnavailable) {
		t.Errorf("open failure should surface as ResourceUnavailable, got %v", err)
	}
	if eng.IsRecording() {
		t.Error("failed Start must not leave the engine capturing")
	}

	// The engine must be usable again after a failed start.
	backend.openErr = nil
	out := filepath.Join(t.TempDir(), "ok.wav")
	if err := eng.Start(out); err != nil {
		t.Fatalf("Start after failed start should succeed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestEngine_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	eng := testEngine(t, newFakeBackend())

	// Parent "directory" is a regular file, so MkdirAll must fail
	// synchronously before any goroutine is spawned.
	err := eng.Start(filepath.Join(blocker, "out.wav"))
	if !apperr.IsKind(err, apperr.KindConfiguration) {
		t.Errorf("unwritable output should be a configuration error, got %v", err)
	}
	if eng.IsRecording() {
		t.Error("failed Start must not leave the engine capturing")
	}
}

func TestEngine_GainPolicy(t *testing.T) {
	backend := newFakeBackend()
	backend.feedValue = 0.5 // 0.5 * 3.0 = 1.5, must clamp to 1.0
	eng := testEngine(t, backend)

	out := filepath.Join(t.TempDir(), "loud.wav")
	if err := eng.Start(out); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	samples, err := decodeWAVSamples(t, out)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i, s := range samples {
		if s > 1.0 || s < -1.0 {
			t.Fatalf("sample %d out of range after clamping: %g", i, s)
		}
	}
	// Amplified and clamped: every sample should sit at full scale.
	if samples[0] < 0.99 {
		t.Errorf("expected clamped full-scale sample, got %g", samples[0])
	}
}
