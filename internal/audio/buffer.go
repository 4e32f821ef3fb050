package audio

import "sync"

// SampleBuffer is a mutex-guarded growing buffer for float32 samples. The
// capture callback appends; at teardown the capture goroutine takes the
// accumulated samples for encoding.
type SampleBuffer struct {
	mu      sync.RWMutex
	samples []float32
}

// NewSampleBuffer creates a buffer pre-sized for about ten seconds of
// 16kHz audio.
func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{
		samples: make([]float32, 0, 16000*10),
	}
}

// Append adds samples to the buffer.
func (sb *SampleBuffer) Append(samples []float32) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.samples = append(sb.samples, samples...)
}

// Take returns the accumulated samples and resets the buffer, transferring
// ownership to the caller.
func (sb *SampleBuffer) Take() []float32 {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	samples := sb.samples
	sb.samples = make([]float32, 0, 16000*10)
	return samples
}

// Len returns the number of buffered samples.
func (sb *SampleBuffer) Len() int {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return len(sb.samples)
}

// DurationSeconds returns the buffered duration at the given sample rate.
func (sb *SampleBuffer) DurationSeconds(sampleRate float64) float64 {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return float64(len(sb.samples)) / sampleRate
}

// Reset discards any buffered samples.
func (sb *SampleBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.samples = sb.samples[:0]
}
