package store

import (
	"encoding/json"
	"fmt"
)

// State is one of the four transcription states.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is the transcription state with the failure reason carried by the
// Failed variant.
type Status struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s.State == StateCompleted || s.State == StateFailed
}

func (s Status) String() string {
	if s.State == StateFailed && s.Reason != "" {
		return fmt.Sprintf("%s (%s)", s.State, s.Reason)
	}
	return string(s.State)
}

// Encode serializes the status for the storage boundary. The JSON object
// form is lossless regardless of what characters the failure reason
// contains, unlike a delimiter-prefixed string.
func EncodeStatus(s Status) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode status: %w", err)
	}
	return string(data), nil
}

// DecodeStatus parses a stored status value.
func DecodeStatus(raw string) (Status, error) {
	var s Status
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Status{}, fmt.Errorf("failed to decode status %q: %w", raw, err)
	}
	switch s.State {
	case StatePending, StateProcessing, StateCompleted, StateFailed:
		return s, nil
	default:
		return Status{}, fmt.Errorf("unknown transcription state %q", s.State)
	}
}
