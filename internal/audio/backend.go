package audio

import (
	"math"
	"strings"

	"github.com/audioscribelab/meetscribe/internal/apperr"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypePortAudio BackendType = "portaudio"
	BackendTypeAuto      BackendType = "auto"
)

// Device is a read-only snapshot of an input-capable device at
// enumeration time.
type Device struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// StreamParams selects a device and the format to open it with.
type StreamParams struct {
	DeviceName string // empty = host default
	SampleRate float64
	Channels   int
}

// Stream is an open capture stream. Close tears the stream down and
// releases the device; after Close returns no further samples are
// delivered.
type Stream interface {
	Close() error
}

// Backend defines the interface for audio backend implementations.
// The onSamples callback runs on the backend's own audio thread and must
// never block.
type Backend interface {
	ListInputDevices() ([]Device, error)
	SupportedFormats(deviceName string) ([]FormatRange, error)
	OpenStream(params StreamParams, onSamples func([]float32)) (Stream, error)
	GetType() BackendType
}

// NewBackend creates a backend based on the configured name.
func NewBackend(name string) Backend {
	switch strings.ToLower(name) {
	case "portaudio":
		return &PortAudioBackend{}
	default:
		// Only PortAudio is available; "auto" resolves to it.
		return &PortAudioBackend{}
	}
}

// FormatRange describes one stream configuration a device supports.
type FormatRange struct {
	MinSampleRate float64
	MaxSampleRate float64
	MaxChannels   int
}

// StreamFormat is a negotiated stream configuration.
type StreamFormat struct {
	SampleRate float64
	Channels   int
}

// ChooseFormat negotiates a stream format against the device's supported
// ranges. An exact match for the target is preferred; otherwise the range
// whose bounds straddle the target wins, else the nearest bound.
func ChooseFormat(ranges []FormatRange, targetRate float64, targetChannels int) (StreamFormat, error) {
	if len(ranges) == 0 {
		return StreamFormat{}, apperr.New(apperr.KindResourceUnavailable, "no supported input configurations")
	}

	best := StreamFormat{}
	bestDist := math.Inf(1)

	for _, r := range ranges {
		var rate float64
		switch {
		case r.MinSampleRate <= targetRate && targetRate <= r.MaxSampleRate:
			rate = targetRate
		case r.MinSampleRate > targetRate:
			rate = r.MinSampleRate
		default:
			rate = r.MaxSampleRate
		}

		channels := targetChannels
		if r.MaxChannels < channels {
			channels = r.MaxChannels
		}
		if channels < 1 {
			channels = 1
		}

		dist := math.Abs(rate - targetRate)
		if dist < bestDist {
			bestDist = dist
			best = StreamFormat{SampleRate: rate, Channels: channels}
		}
		if dist == 0 {
			break
		}
	}

	return best, nil
}
