package store

import (
	"time"

	"github.com/google/uuid"
)

// Recording is a persisted, finished recording. The audio content is
// immutable once created; metadata fields may be updated later.
type Recording struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	FilePath   string     `json:"file_path"`
	Duration   *int64     `json:"duration,omitempty"`  // seconds
	FileSize   *int64     `json:"file_size,omitempty"` // bytes
	SampleRate *int       `json:"sample_rate,omitempty"`
	Channels   *int       `json:"channels,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewRecording creates a Recording with a fresh id and timestamps.
func NewRecording(filename, filePath string) Recording {
	now := time.Now().UTC()
	return Recording{
		ID:        uuid.New().String(),
		Filename:  filename,
		FilePath:  filePath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithDuration sets the duration in whole seconds.
func (r Recording) WithDuration(seconds int64) Recording {
	r.Duration = &seconds
	r.UpdatedAt = time.Now().UTC()
	return r
}

// WithFileSize sets the on-disk size in bytes.
func (r Recording) WithFileSize(size int64) Recording {
	r.FileSize = &size
	r.UpdatedAt = time.Now().UTC()
	return r
}

// WithFormat sets the audio metadata.
func (r Recording) WithFormat(sampleRate, channels int) Recording {
	r.SampleRate = &sampleRate
	r.Channels = &channels
	r.UpdatedAt = time.Now().UTC()
	return r
}

// Transcription is the persisted result of recognizing one recording. The
// recording_id is a reference, not an ownership relation.
type Transcription struct {
	ID               string    `json:"id"`
	RecordingID      string    `json:"recording_id"`
	Text             string    `json:"text"`
	Language         string    `json:"language"`
	Confidence       *float64  `json:"confidence,omitempty"` // 0.0-1.0
	ProcessingTimeMS *int64    `json:"processing_time_ms,omitempty"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewTranscription creates a Pending transcription for a recording.
func NewTranscription(recordingID, language string) Transcription {
	now := time.Now().UTC()
	return Transcription{
		ID:          uuid.New().String(),
		RecordingID: recordingID,
		Language:    language,
		Status:      Status{State: StatePending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetProcessing moves a pending transcription into Processing. Terminal
// states are never re-entered; the call is a no-op once terminal.
func (t Transcription) SetProcessing() Transcription {
	if t.Status.Terminal() {
		return t
	}
	t.Status = Status{State: StateProcessing}
	t.UpdatedAt = time.Now().UTC()
	return t
}

// Complete finalizes the transcription with its text and confidence.
func (t Transcription) Complete(text string, confidence *float64) Transcription {
	if t.Status.Terminal() {
		return t
	}
	t.Text = text
	t.Confidence = confidence
	t.Status = Status{State: StateCompleted}
	t.UpdatedAt = time.Now().UTC()
	return t
}

// Fail finalizes the transcription with a failure reason.
func (t Transcription) Fail(reason string) Transcription {
	if t.Status.Terminal() {
		return t
	}
	t.Status = Status{State: StateFailed, Reason: reason}
	t.UpdatedAt = time.Now().UTC()
	return t
}

// WithProcessingTime records how long recognition took.
func (t Transcription) WithProcessingTime(ms int64) Transcription {
	t.ProcessingTimeMS = &ms
	return t
}
