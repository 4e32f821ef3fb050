package audio

import "go.uber.org/zap"

// DefaultDeviceName is the placeholder returned when enumeration yields
// nothing, so callers always have at least one selectable option.
const DefaultDeviceName = "Default Microphone"

// Catalog enumerates available audio input devices.
type Catalog struct {
	backend Backend
	log     *zap.SugaredLogger
}

// NewCatalog creates a device catalog over the given backend.
func NewCatalog(backend Backend, log *zap.SugaredLogger) *Catalog {
	return &Catalog{backend: backend, log: log}
}

// ListInputDevices returns the names of input-capable devices in
// enumeration order. It never fails outward: enumeration errors and empty
// results substitute the placeholder name.
func (c *Catalog) ListInputDevices() []string {
	devices, err := c.backend.ListInputDevices()
	if err != nil {
		c.log.Warnw("Device enumeration failed, substituting placeholder", "error", err)
		return []string{DefaultDeviceName}
	}

	names := make([]string, 0, len(devices))
	for _, dev := range devices {
		names = append(names, dev.Name)
	}

	if len(names) == 0 {
		return []string{DefaultDeviceName}
	}

	return names
}

// Devices returns the full device snapshots, with the same never-fail
// contract as ListInputDevices.
func (c *Catalog) Devices() []Device {
	devices, err := c.backend.ListInputDevices()
	if err != nil || len(devices) == 0 {
		return []Device{{Name: DefaultDeviceName, MaxInputChannels: 1, DefaultSampleRate: 16000, IsDefault: true}}
	}
	return devices
}
