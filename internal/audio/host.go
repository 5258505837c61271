// ABOUTME: Contracts between the playback graph and the host audio subsystem.
// ABOUTME: The malgo backend implements them for real hardware; tests supply fakes.

package audio

// DeviceID identifies an output device within a Backend.
type DeviceID uint32

// DefaultDevice means "no explicit routing": the system default output.
const DefaultDevice DeviceID = 0

// DeviceDescriptor pairs a device id with its display name.
type DeviceDescriptor struct {
	ID        DeviceID
	Name      string
	IsDefault bool
}

// DeviceEnumerator lists output devices and reports their channel counts.
type DeviceEnumerator interface {
	Devices() ([]DeviceDescriptor, error)
	OutputChannels(id DeviceID) (int, error)
}

// OutputConfig describes the stream an output unit is allocated for.
type OutputConfig struct {
	Device     DeviceID
	SampleRate uint32
	Channels   uint32
}

// RenderFunc fills out with frameCount interleaved little-endian float32 frames.
// It runs on the backend's audio thread.
type RenderFunc func(out []byte, frameCount uint32)

// OutputUnit is an allocated hardware output stream.
type OutputUnit interface {
	Start() error
	Stop() error
	Uninit()
}

// Backend is the host audio subsystem.
type Backend interface {
	DeviceEnumerator
	DeviceName(id DeviceID) (string, error)
	OpenOutput(cfg OutputConfig, render RenderFunc) (OutputUnit, error)
	Close() error
}
