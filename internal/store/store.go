package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists recordings and transcriptions in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// OpenInMemory opens a private in-memory database, used by tests. The
// connection pool is pinned to one connection so every query sees the same
// memory database.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL UNIQUE,
			duration INTEGER,
			file_size INTEGER,
			sample_rate INTEGER,
			channels INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_created_at
			ON recordings(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS transcriptions (
			id TEXT PRIMARY KEY,
			recording_id TEXT NOT NULL,
			text TEXT NOT NULL,
			language TEXT NOT NULL,
			confidence REAL,
			processing_time_ms INTEGER,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_recording_id
			ON transcriptions(recording_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateRecording inserts a recording.
func (s *Store) CreateRecording(ctx context.Context, r Recording) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, filename, file_path, duration, file_size, sample_rate, channels, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Filename, r.FilePath, r.Duration, r.FileSize, r.SampleRate, r.Channels,
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// Recording fetches one recording by id, returning nil when absent.
func (s *Store) Recording(ctx context.Context, id string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, file_path, duration, file_size, sample_rate, channels, created_at, updated_at
		FROM recordings WHERE id = ?`, id)

	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan recording: %w", err)
	}
	return rec, nil
}

// Recordings returns all recordings, newest first.
func (s *Store) Recordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, file_path, duration, file_size, sample_rate, channels, created_at, updated_at
		FROM recordings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var recordings []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, *rec)
	}
	return recordings, rows.Err()
}

// UpdateRecording rewrites a recording's mutable metadata.
func (s *Store) UpdateRecording(ctx context.Context, r Recording) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recordings
		SET filename = ?, file_path = ?, duration = ?, file_size = ?, sample_rate = ?, channels = ?, updated_at = ?
		WHERE id = ?`,
		r.Filename, r.FilePath, r.Duration, r.FileSize, r.SampleRate, r.Channels,
		time.Now().UTC().Format(time.RFC3339Nano), r.ID)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s not found", r.ID)
	}
	return nil
}

// DeleteRecording removes a recording row, reporting whether it existed.
func (s *Store) DeleteRecording(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	return n > 0, nil
}

// RecordingCount returns the number of stored recordings.
func (s *Store) RecordingCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return count, nil
}

// CreateTranscription inserts a transcription.
func (s *Store) CreateTranscription(ctx context.Context, t Transcription) error {
	status, err := EncodeStatus(t.Status)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcriptions (id, recording_id, text, language, confidence, processing_time_ms, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RecordingID, t.Text, t.Language, t.Confidence, t.ProcessingTimeMS, status,
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// Transcription fetches one transcription by id, returning nil when absent.
func (s *Store) Transcription(ctx context.Context, id string) (*Transcription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recording_id, text, language, confidence, processing_time_ms, status, created_at, updated_at
		FROM transcriptions WHERE id = ?`, id)

	tr, err := scanTranscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcription: %w", err)
	}
	return tr, nil
}

// TranscriptionsForRecording returns the transcriptions referencing a
// recording, newest first.
func (s *Store) TranscriptionsForRecording(ctx context.Context, recordingID string) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recording_id, text, language, confidence, processing_time_ms, status, created_at, updated_at
		FROM transcriptions WHERE recording_id = ? ORDER BY created_at DESC`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	var transcriptions []Transcription
	for rows.Next() {
		tr, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		transcriptions = append(transcriptions, *tr)
	}
	return transcriptions, rows.Err()
}

// DeleteTranscription removes a transcription row, reporting whether it
// existed.
func (s *Store) DeleteTranscription(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transcription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transcription: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var rec Recording
	var createdAt, updatedAt string
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.FilePath, &rec.Duration, &rec.FileSize,
		&rec.SampleRate, &rec.Channels, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

func scanTranscription(row rowScanner) (*Transcription, error) {
	var tr Transcription
	var status, createdAt, updatedAt string
	if err := row.Scan(&tr.ID, &tr.RecordingID, &tr.Text, &tr.Language, &tr.Confidence,
		&tr.ProcessingTimeMS, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if tr.Status, err = DecodeStatus(status); err != nil {
		return nil, err
	}
	if tr.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if tr.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &tr, nil
}
