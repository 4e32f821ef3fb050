package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WAVInfo describes a PCM WAV file's format and length.
type WAVInfo struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	SampleCount   int
}

// DurationSeconds is the audio duration implied by the sample count.
func (i WAVInfo) DurationSeconds() float64 {
	if i.SampleRate == 0 || i.Channels == 0 {
		return 0
	}
	return float64(i.SampleCount) / float64(i.SampleRate) / float64(i.Channels)
}

// EncodeWAV writes float32 samples to path as single-channel 16-bit
// little-endian PCM WAV at the given sample rate. Each sample is clamped
// to [-1, 1] before integer conversion.
func EncodeWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeWAV(w, samples, sampleRate); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAV data: %w", err)
	}

	return f.Sync()
}

func writeWAV(w io.Writer, samples []float32, sampleRate int) error {
	const (
		numChannels   = uint16(1)
		bitsPerSample = uint16(16)
	)
	byteRate := uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := uint32(len(samples) * 2)

	// RIFF header
	if _, err := w.Write([]byte("RIFF")); err != nil {
		return fmt.Errorf("failed to write RIFF header: %w", err)
	}
	binary.Write(w, binary.LittleEndian, uint32(36+dataSize))
	w.Write([]byte("WAVE"))

	// fmt chunk
	w.Write([]byte("fmt "))
	binary.Write(w, binary.LittleEndian, uint32(16)) // chunk size
	binary.Write(w, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(w, binary.LittleEndian, numChannels)
	binary.Write(w, binary.LittleEndian, uint32(sampleRate))
	binary.Write(w, binary.LittleEndian, byteRate)
	binary.Write(w, binary.LittleEndian, blockAlign)
	binary.Write(w, binary.LittleEndian, bitsPerSample)

	// data chunk
	w.Write([]byte("data"))
	binary.Write(w, binary.LittleEndian, dataSize)

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		if err := binary.Write(w, binary.LittleEndian, int16(s*32767)); err != nil {
			return fmt.Errorf("failed to write audio sample: %w", err)
		}
	}

	return nil
}

// ReadWAVInfo parses the header of a PCM WAV file.
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return WAVInfo{}, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("not a WAV file: %s", path)
	}

	var info WAVInfo
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return WAVInfo{}, fmt.Errorf("failed to read chunk header: %w", err)
		}
		chunkID := string(chunk[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunk[4:8])

		switch chunkID {
		case "fmt ":
			var fmtChunk [16]byte
			if _, err := io.ReadFull(f, fmtChunk[:]); err != nil {
				return WAVInfo{}, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			info.Channels = binary.LittleEndian.Uint16(fmtChunk[2:4])
			info.SampleRate = binary.LittleEndian.Uint32(fmtChunk[4:8])
			info.BitsPerSample = binary.LittleEndian.Uint16(fmtChunk[14:16])
			if rest := int64(chunkSize) - 16; rest > 0 {
				if _, err := f.Seek(rest, io.SeekCurrent); err != nil {
					return WAVInfo{}, fmt.Errorf("failed to skip fmt extension: %w", err)
				}
			}
		case "data":
			if info.BitsPerSample == 0 {
				return WAVInfo{}, fmt.Errorf("data chunk before fmt chunk in %s", path)
			}
			info.SampleCount = int(chunkSize) / int(info.BitsPerSample/8)
			return info, nil
		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return WAVInfo{}, fmt.Errorf("failed to skip chunk %s: %w", chunkID, err)
			}
		}
	}
}
