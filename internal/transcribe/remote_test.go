package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
)

func remoteRecognizer(t *testing.T, url, key string) *RemoteRecognizer {
	t.Helper()
	cfg := config.TranscribeConfig{
		Backend:       "remote",
		Language:      "ja",
		RemoteURL:     url,
		RemoteTimeout: 5 * time.Second,
		APIKey:        key,
	}
	return NewRemoteRecognizer(cfg, zap.NewNop().Sugar())
}

func wavFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEdata"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRemoteTranscribe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not a multipart request: %v", err)
		}
		if got := r.FormValue("model"); got != remoteModel {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "ja" {
			t.Errorf("language = %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part missing: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"会議の記録です"}`))
	}))
	defer srv.Close()

	r := remoteRecognizer(t, srv.URL, "sk-test")
	text, conf, err := r.Transcribe(context.Background(), wavFixture(t), "ja")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "会議の記録です" {
		t.Errorf("text = %q", text)
	}
	if conf != remoteDefaultConfidence {
		t.Errorf("confidence = %v, want %v", conf, remoteDefaultConfidence)
	}
}

func TestRemoteTranscribe_NoKey(t *testing.T) {
	r := remoteRecognizer(t, "http://localhost:1", "")
	_, _, err := r.Transcribe(context.Background(), wavFixture(t), "ja")
	if !apperr.IsKind(err, apperr.KindResourceUnavailable) {
		t.Errorf("expected resource unavailable, got %v", err)
	}
}

func TestRemoteTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := remoteRecognizer(t, srv.URL, "sk-bad")
	_, _, err := r.Transcribe(context.Background(), wavFixture(t), "ja")
	if !apperr.IsKind(err, apperr.KindExecution) {
		t.Errorf("expected execution failure, got %v", err)
	}
}

func TestRemoteTranscribe_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	r := remoteRecognizer(t, srv.URL, "sk-test")
	_, _, err := r.Transcribe(context.Background(), wavFixture(t), "ja")
	if !apperr.IsKind(err, apperr.KindConnectivity) {
		t.Errorf("expected connectivity error, got %v", err)
	}
}

func TestRemoteBootstrap_RequiresURL(t *testing.T) {
	r := remoteRecognizer(t, "", "sk-test")
	if err := r.Bootstrap(context.Background()); !apperr.IsKind(err, apperr.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
