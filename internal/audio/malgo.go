// ABOUTME: Host audio backend built on malgo (miniaudio bindings).
// ABOUTME: Enumerates playback devices and opens float32 output streams on a chosen device.

package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/777genius/playto/internal/errorhandler"
	"github.com/777genius/playto/internal/logging"
	"github.com/777genius/playto/internal/platform"
)

// defaultChannels is what miniaudio assumes for a native format reporting 0 ("any") channels.
const defaultChannels = 2

var backendNames = map[string]malgo.Backend{
	"wasapi":     malgo.BackendWasapi,
	"dsound":     malgo.BackendDsound,
	"winmm":      malgo.BackendWinmm,
	"coreaudio":  malgo.BackendCoreaudio,
	"sndio":      malgo.BackendSndio,
	"audio4":     malgo.BackendAudio4,
	"oss":        malgo.BackendOss,
	"pulseaudio": malgo.BackendPulseaudio,
	"alsa":       malgo.BackendAlsa,
	"jack":       malgo.BackendJack,
	"aaudio":     malgo.BackendAaudio,
	"opensl":     malgo.BackendOpensl,
	"webaudio":   malgo.BackendWebaudio,
	"null":       malgo.BackendNull,
}

// ParseBackends maps backend names (case-insensitive) to malgo backends.
// An empty list returns nil, letting miniaudio use its default order.
func ParseBackends(names []string) ([]malgo.Backend, error) {
	if len(names) == 0 {
		return nil, nil
	}
	result := make([]malgo.Backend, 0, len(names))
	for _, name := range names {
		b, ok := backendNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown audio backend: %s", name)
		}
		result = append(result, b)
	}
	return result, nil
}

// MalgoOptions configures a MalgoBackend.
type MalgoOptions struct {
	Backends           []string
	PeriodSizeInFrames uint32
	Periods            uint32
}

// MalgoBackend implements Backend with a malgo context.
type MalgoBackend struct {
	ctx  *malgo.AllocatedContext
	opts MalgoOptions

	mu      sync.Mutex
	devices []malgo.DeviceInfo // DeviceID n is devices[n-1]
}

// NewMalgoBackend initializes the audio context.
func NewMalgoBackend(opts MalgoOptions) (*MalgoBackend, error) {
	const op = "init audio context failed"

	backends, err := ParseBackends(opts.Backends)
	if err != nil {
		return nil, errorhandler.Wrap(err, errorhandler.StatusInvalidPropertyValue, op)
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		logging.Debug("miniaudio: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, errorhandler.Wrap(err, errorhandler.StatusNotRunning, op)
	}

	return &MalgoBackend{ctx: ctx, opts: opts}, nil
}

// Devices enumerates playback devices. Ids stay valid until the next call.
func (b *MalgoBackend) Devices() ([]DeviceDescriptor, error) {
	devices, err := b.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errorhandler.Wrap(err, errorhandler.StatusUnspecified, "enumerate audio devices failed")
	}

	b.mu.Lock()
	b.devices = devices
	b.mu.Unlock()

	result := make([]DeviceDescriptor, 0, len(devices))
	for i, dev := range devices {
		result = append(result, DeviceDescriptor{
			ID:        DeviceID(i + 1),
			Name:      dev.Name(),
			IsDefault: dev.IsDefault != 0,
		})
	}
	return result, nil
}

// OutputChannels returns the widest channel count among the device's native
// playback formats. miniaudio lists formats as alternatives rather than
// simultaneous buffers, so the maximum stands in for the per-buffer sum.
func (b *MalgoBackend) OutputChannels(id DeviceID) (int, error) {
	dev, err := b.lookup(id)
	if err != nil {
		return 0, err
	}

	info, err := b.ctx.DeviceInfo(malgo.Playback, dev.ID, malgo.Shared)
	if err != nil {
		return 0, errorhandler.Wrap(err, errorhandler.StatusUnspecified, "query device stream configuration failed")
	}

	if info.FormatCount == 0 {
		return defaultChannels, nil
	}
	channels := 0
	for i := uint32(0); i < info.FormatCount && int(i) < len(info.Formats); i++ {
		c := int(info.Formats[i].Channels)
		if c == 0 {
			c = defaultChannels
		}
		if c > channels {
			channels = c
		}
	}
	return channels, nil
}

// DeviceName returns the display name of id.
func (b *MalgoBackend) DeviceName(id DeviceID) (string, error) {
	dev, err := b.lookup(id)
	if err != nil {
		return "", err
	}
	return dev.Name(), nil
}

func (b *MalgoBackend) lookup(id DeviceID) (malgo.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == DefaultDevice || int(id) > len(b.devices) {
		return malgo.DeviceInfo{}, errorhandler.Check(errorhandler.StatusBadDevice, fmt.Sprintf("look up device %d failed", id))
	}
	return b.devices[id-1], nil
}

// OpenOutput allocates a float32 playback device that pulls frames from render.
func (b *MalgoBackend) OpenOutput(cfg OutputConfig, render RenderFunc) (OutputUnit, error) {
	const op = "init output device failed"

	// Larger buffer to prevent crackling
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = b.opts.PeriodSizeInFrames
	deviceConfig.Periods = b.opts.Periods
	if platform.IsLinux() {
		deviceConfig.Alsa.NoMMap = 1
	}

	out := &malgoOutput{}
	if cfg.Device != DefaultDevice {
		dev, err := b.lookup(cfg.Device)
		if err != nil {
			return nil, err
		}
		out.deviceID = dev.ID
		deviceConfig.Playback.DeviceID = out.deviceID.Pointer()
	}

	device, err := malgo.InitDevice(b.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			render(outputSamples, frameCount)
		},
	})
	if err != nil {
		return nil, errorhandler.Wrap(err, errorhandler.StatusUnspecified, op)
	}
	out.device = device
	return out, nil
}

// Close releases the audio context.
func (b *MalgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	b.devices = nil
	return errorhandler.Wrap(err, errorhandler.StatusUnspecified, "uninit audio context failed")
}

type malgoOutput struct {
	device   *malgo.Device
	deviceID malgo.DeviceID
}

func (o *malgoOutput) Start() error {
	return errorhandler.Wrap(o.device.Start(), errorhandler.StatusUnspecified, "start output device failed")
}

func (o *malgoOutput) Stop() error {
	return errorhandler.Wrap(o.device.Stop(), errorhandler.StatusUnspecified, "stop output device failed")
}

func (o *malgoOutput) Uninit() {
	o.device.Uninit()
}
