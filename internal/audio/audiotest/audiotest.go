// Package audiotest provides an in-memory audio backend and fixture writers
// for tests that must not touch sound hardware.
package audiotest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/777genius/playto/internal/audio"
)

// Device is a fake output device. Ids are assigned by position, starting at 1.
type Device struct {
	Name       string
	Channels   int
	ChannelErr error
	IsDefault  bool
}

// Backend is a fake audio.Backend that records every call.
type Backend struct {
	DeviceList []Device
	EnumErr    error
	OpenErr    error
	StartErr   error

	mu     sync.Mutex
	calls  []string
	opened []audio.OutputConfig
	render audio.RenderFunc
	closed bool
}

var _ audio.Backend = (*Backend)(nil)

func (b *Backend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

// Calls returns the recorded call log.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Opened returns the configs passed to OpenOutput.
func (b *Backend) Opened() []audio.OutputConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]audio.OutputConfig(nil), b.opened...)
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) Devices() ([]audio.DeviceDescriptor, error) {
	b.record("devices")
	if b.EnumErr != nil {
		return nil, b.EnumErr
	}
	result := make([]audio.DeviceDescriptor, 0, len(b.DeviceList))
	for i, d := range b.DeviceList {
		result = append(result, audio.DeviceDescriptor{ID: audio.DeviceID(i + 1), Name: d.Name, IsDefault: d.IsDefault})
	}
	return result, nil
}

func (b *Backend) device(id audio.DeviceID) (Device, error) {
	if id == audio.DefaultDevice || int(id) > len(b.DeviceList) {
		return Device{}, fmt.Errorf("no device %d", id)
	}
	return b.DeviceList[id-1], nil
}

func (b *Backend) OutputChannels(id audio.DeviceID) (int, error) {
	b.record(fmt.Sprintf("channels:%d", id))
	d, err := b.device(id)
	if err != nil {
		return 0, err
	}
	if d.ChannelErr != nil {
		return 0, d.ChannelErr
	}
	return d.Channels, nil
}

func (b *Backend) DeviceName(id audio.DeviceID) (string, error) {
	d, err := b.device(id)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

func (b *Backend) OpenOutput(cfg audio.OutputConfig, render audio.RenderFunc) (audio.OutputUnit, error) {
	b.record(fmt.Sprintf("open:%d", cfg.Device))
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.mu.Lock()
	b.opened = append(b.opened, cfg)
	b.render = render
	b.mu.Unlock()
	return &unit{b: b}, nil
}

func (b *Backend) Close() error {
	b.record("close")
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Render pulls frames from the most recently opened output as the hardware
// would and returns the decoded float32 samples.
func (b *Backend) Render(frames uint32) ([]float32, error) {
	b.mu.Lock()
	render := b.render
	var channels uint32
	if n := len(b.opened); n > 0 {
		channels = b.opened[n-1].Channels
	}
	b.mu.Unlock()

	if render == nil {
		return nil, errors.New("no output opened")
	}
	out := make([]byte, int(frames*channels)*4)
	render(out, frames)

	samples := make([]float32, len(out)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
	}
	return samples, nil
}

type unit struct {
	b *Backend
}

func (u *unit) Start() error {
	u.b.record("start")
	return u.b.StartErr
}

func (u *unit) Stop() error {
	u.b.record("stop")
	return nil
}

func (u *unit) Uninit() {
	u.b.record("uninit")
}

// constant yields frames frames of value on both channels.
type constant struct {
	frames int
	value  float64
}

func (c *constant) Stream(samples [][2]float64) (int, bool) {
	if c.frames == 0 {
		return 0, false
	}
	n := len(samples)
	if n > c.frames {
		n = c.frames
	}
	for i := 0; i < n; i++ {
		samples[i] = [2]float64{c.value, c.value}
	}
	c.frames -= n
	return n, true
}

func (c *constant) Err() error { return nil }

// WriteWAV writes a 16-bit WAV file of frames frames holding value.
func WriteWAV(t testing.TB, path string, sampleRate, channels, frames int, value float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: channels, Precision: 2}
	if err := wav.Encode(f, &constant{frames: frames, value: value}, format); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// FirstFrame returns the first frame of path as the decoder reports it.
// Decoders scale integer PCM differently, so tests compare against this
// rather than the value the fixture was written with.
func FirstFrame(t testing.TB, path string) [2]float64 {
	t.Helper()

	f, err := audio.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	buf := make([][2]float64, 1)
	if n, _ := f.Streamer().Stream(buf); n != 1 {
		t.Fatalf("decode %s: no frames", path)
	}
	return buf[0]
}

// WriteAIFF writes a 16-bit AIFF file of frames frames holding value.
func WriteAIFF(t testing.TB, path string, sampleRate, channels, frames int, value float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := aiff.NewEncoder(f, sampleRate, 16, channels)
	data := make([]int, frames*channels)
	for i := range data {
		data[i] = int(value * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finish %s: %v", path, err)
	}
}
