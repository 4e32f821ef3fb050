package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// PortAudioBackend implements Backend on top of PortAudio.
type PortAudioBackend struct{}

func (b *PortAudioBackend) GetType() BackendType {
	return BackendTypePortAudio
}

// ListInputDevices enumerates input-capable devices.
func (b *PortAudioBackend) ListInputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultName string
	if defaultInput != nil {
		defaultName = defaultInput.Name
	}

	var inputs []Device
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, Device{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}

	return inputs, nil
}

// SupportedFormats reports the configuration ranges for a device. PortAudio
// exposes only the device default rate and channel limit, so the range is
// synthesized around those together with the rates PortAudio devices
// commonly accept.
func (b *PortAudioBackend) SupportedFormats(deviceName string) ([]FormatRange, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	info, err := b.findDevice(deviceName)
	if err != nil {
		return nil, err
	}

	return []FormatRange{
		{MinSampleRate: 8000, MaxSampleRate: info.DefaultSampleRate, MaxChannels: info.MaxInputChannels},
	}, nil
}

// OpenStream opens and starts a capture stream on the selected device.
func (b *PortAudioBackend) OpenStream(params StreamParams, onSamples func([]float32)) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	device, err := b.findDevice(params.DeviceName)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: params.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      params.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(streamParams, func(in []float32) {
		onSamples(in)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	return &portAudioStream{stream: stream}, nil
}

// findDevice resolves a device by name, falling back to the host default
// when the name is empty or not found.
func (b *PortAudioBackend) findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" && name != "default" {
		devices, err := portaudio.Devices()
		if err == nil {
			for _, dev := range devices {
				if dev.Name == name && dev.MaxInputChannels > 0 {
					return dev, nil
				}
			}
		}
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("no default input device: %w", err)
	}
	return device, nil
}

type portAudioStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	closed bool
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Stop errors are ignored; Close releases the device either way.
	_ = s.stream.Stop()
	if err := s.stream.Close(); err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to close audio stream: %w", err)
	}

	return portaudio.Terminate()
}
