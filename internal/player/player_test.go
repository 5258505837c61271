package player

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/777genius/playto/internal/audio"
	"github.com/777genius/playto/internal/audio/audiotest"
	"github.com/777genius/playto/internal/errorhandler"
)

func testDevices() []audiotest.Device {
	return []audiotest.Device{
		{Name: "Built-in Microphone", Channels: 0},
		{Name: "Built-in Output", Channels: 2, IsDefault: true},
		{Name: "USB Audio CODEC", Channels: 2},
	}
}

func writeSong(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.wav")
	audiotest.WriteWAV(t, path, 8000, 2, 4000, 0.5)
	return path
}

// hardwareSleep renders as many frames as the sleep lasts, standing in for
// the device clock.
func hardwareSleep(t *testing.T, backend *audiotest.Backend, rate float64, slept *time.Duration) func(time.Duration) {
	return func(d time.Duration) {
		*slept = d
		frames := uint32(d.Seconds() * rate)
		for frames > 0 {
			n := uint32(512)
			if n > frames {
				n = frames
			}
			_, err := backend.Render(n)
			require.NoError(t, err)
			frames -= n
		}
	}
}

func TestPlayDefaultDevice(t *testing.T) {
	backend := &audiotest.Backend{DeviceList: testDevices()}
	var stdout bytes.Buffer
	var slept time.Duration

	res, err := Play(backend, Options{
		Path:   writeSong(t),
		Stdout: &stdout,
		Sleep:  hardwareSleep(t, backend, 8000, &slept),
	})
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, slept)
	assert.Equal(t, 500*time.Millisecond, res.Duration)
	assert.Equal(t, audio.DefaultDevice, res.Device)
	assert.True(t, res.Completed)
	assert.Equal(t, uint64(4000), res.FramesPlayed)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "Using default output device.\n", stdout.String())

	assert.Equal(t, []string{"open:0", "start", "stop", "uninit"}, backend.Calls())
	assert.False(t, backend.Closed(), "backend is owned by the caller")
}

func TestPlayNamedDevice(t *testing.T) {
	backend := &audiotest.Backend{DeviceList: testDevices()}
	var stdout bytes.Buffer

	res, err := Play(backend, Options{
		Path:       writeSong(t),
		DeviceName: "Built-in Output",
		Stdout:     &stdout,
		Sleep:      func(time.Duration) {},
	})
	require.NoError(t, err)

	assert.Equal(t, audio.DeviceID(2), res.Device)
	assert.Equal(t, "Using output device 'Built-in Output' (id 2)\n", stdout.String())

	opened := backend.Opened()
	require.Len(t, opened, 1)
	assert.Equal(t, audio.DeviceID(2), opened[0].Device, "device bound before initialization")
	assert.Equal(t, []string{"devices", "channels:2", "open:2", "start", "stop", "uninit"}, backend.Calls())
}

// An unmatched device name silently falls back to the default output. This
// mirrors long-standing behavior; output.strictDevice opts into failing.
func TestPlayUnknownDeviceFallsBackToDefault(t *testing.T) {
	backend := &audiotest.Backend{DeviceList: testDevices()}
	var stdout bytes.Buffer

	res, err := Play(backend, Options{
		Path:       writeSong(t),
		DeviceName: "NonexistentCard",
		Stdout:     &stdout,
		Sleep:      func(time.Duration) {},
	})
	require.NoError(t, err)

	assert.Equal(t, audio.DefaultDevice, res.Device)
	assert.Equal(t, "Using default output device.\n", stdout.String())
	assert.Equal(t, audio.DefaultDevice, backend.Opened()[0].Device)
}

func TestPlayUnknownDeviceStrict(t *testing.T) {
	backend := &audiotest.Backend{DeviceList: testDevices()}

	_, err := Play(backend, Options{
		Path:         writeSong(t),
		DeviceName:   "NonexistentCard",
		StrictDevice: true,
		Sleep:        func(time.Duration) { t.Fatal("must not sleep") },
	})
	require.Error(t, err)
	assert.Equal(t, errorhandler.StatusBadDevice, errorhandler.StatusOf(err))
	assert.Empty(t, backend.Opened())
}

func TestPlayInputOnlyDeviceNotSelected(t *testing.T) {
	backend := &audiotest.Backend{DeviceList: testDevices()}

	res, err := Play(backend, Options{
		Path:       writeSong(t),
		DeviceName: "Built-in Microphone",
		Sleep:      func(time.Duration) {},
	})
	require.NoError(t, err)
	assert.Equal(t, audio.DefaultDevice, res.Device)
}

func TestPlayCorruptFileBuildsNoGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	require.NoError(t, os.WriteFile(path, []byte("garbage, not audio"), 0644))

	backend := &audiotest.Backend{DeviceList: testDevices()}
	_, err := Play(backend, Options{
		Path:  path,
		Sleep: func(time.Duration) { t.Fatal("must not sleep") },
	})
	require.Error(t, err)

	var buf bytes.Buffer
	assert.Equal(t, errorhandler.ExitFatal, errorhandler.Report(&buf, err))
	assert.Equal(t, "Error: couldn't read file's data format ('dta?')\n", buf.String())
	assert.Empty(t, backend.Calls(), "no graph is built")
}

func TestPlayMissingFile(t *testing.T) {
	backend := &audiotest.Backend{}
	_, err := Play(backend, Options{
		Path:  filepath.Join(t.TempDir(), "missing.wav"),
		Sleep: func(time.Duration) { t.Fatal("must not sleep") },
	})
	assert.Equal(t, errorhandler.StatusFileNotFound, errorhandler.StatusOf(err))
}

func TestPlayEnumerationFailure(t *testing.T) {
	backend := &audiotest.Backend{EnumErr: errors.New("audio server gone")}
	_, err := Play(backend, Options{
		Path:       writeSong(t),
		DeviceName: "Built-in Output",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enumerate audio devices failed")
}

func TestPlayStartFailureStillTearsDown(t *testing.T) {
	backend := &audiotest.Backend{StartErr: errors.New("device unplugged")}

	_, err := Play(backend, Options{
		Path:  writeSong(t),
		Sleep: func(time.Duration) { t.Fatal("must not sleep") },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start graph failed")
	assert.Equal(t, []string{"open:0", "start", "uninit"}, backend.Calls())
}

func TestPlayOpenOutputFailure(t *testing.T) {
	backend := &audiotest.Backend{OpenErr: errorhandler.Check(errorhandler.StatusUnspecified, "init output device failed")}

	_, err := Play(backend, Options{Path: writeSong(t)})
	require.Error(t, err)
	assert.Equal(t, errorhandler.StatusUnspecified, errorhandler.StatusOf(err))
}

func TestPlayIncompleteWhenDeviceStalls(t *testing.T) {
	// The fixed sleep is the only synchronization: a device that never pulls
	// frames still ends the session after the computed duration.
	backend := &audiotest.Backend{}

	res, err := Play(backend, Options{
		Path:  writeSong(t),
		Sleep: func(time.Duration) {},
	})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Zero(t, res.FramesPlayed)
	assert.Equal(t, []string{"open:0", "start", "stop", "uninit"}, backend.Calls())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := &Session{}
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
