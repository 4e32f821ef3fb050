package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
)

const (
	remoteMaxFileSize       = 25 << 20
	remoteDefaultConfidence = 0.9
	remoteModel             = "whisper-1"
)

// RemoteRecognizer posts audio to an OpenAI-compatible transcription endpoint.
type RemoteRecognizer struct {
	cfg    config.TranscribeConfig
	client *http.Client
	log    *zap.SugaredLogger
}

func NewRemoteRecognizer(cfg config.TranscribeConfig, log *zap.SugaredLogger) *RemoteRecognizer {
	return &RemoteRecognizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RemoteTimeout},
		log:    log,
	}
}

func (r *RemoteRecognizer) Name() string       { return "remote" }
func (r *RemoteRecognizer) MaxFileSize() int64 { return remoteMaxFileSize }

// Bootstrap only checks configuration. Connectivity is not probed here so a
// flaky network does not block startup.
func (r *RemoteRecognizer) Bootstrap(ctx context.Context) error {
	if r.cfg.RemoteURL == "" {
		return apperr.New(apperr.KindConfiguration, "remote transcription URL is not set")
	}
	if r.cfg.APIKey == "" {
		r.log.Warnw("no API key configured, remote transcription will not be attempted")
	}
	return nil
}

func (r *RemoteRecognizer) Transcribe(ctx context.Context, path, language string) (string, float64, error) {
	if r.cfg.APIKey == "" {
		return "", 0, apperr.New(apperr.KindResourceUnavailable, "no API key configured")
	}

	body, contentType, err := r.buildRequestBody(path, language)
	if err != nil {
		return "", 0, err
	}

	url := strings.TrimSuffix(r.cfg.RemoteURL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindExecution, "build transcription request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindConnectivity, "transcription request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindConnectivity, "read transcription response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, apperr.Newf(apperr.KindExecution,
			"transcription service returned %d: %s", resp.StatusCode, tail(payload))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", 0, apperr.Wrap(apperr.KindExecution, "decode transcription response", err)
	}
	return parsed.Text, remoteDefaultConfidence, nil
}

func (r *RemoteRecognizer) buildRequestBody(path, language string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindValidation, "open audio file", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindExecution, "build multipart body", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", apperr.Wrap(apperr.KindExecution, "read audio file", err)
	}
	if err := w.WriteField("model", remoteModel); err != nil {
		return nil, "", apperr.Wrap(apperr.KindExecution, "build multipart body", err)
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", apperr.Wrap(apperr.KindExecution, "build multipart body", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", apperr.Wrap(apperr.KindExecution, "build multipart body", err)
	}
	return &buf, w.FormDataContentType(), nil
}
