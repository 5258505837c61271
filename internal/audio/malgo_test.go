package audio_test

import (
	"os"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/777genius/playto/internal/audio"
	"github.com/777genius/playto/internal/errorhandler"
)

func TestParseBackends(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []malgo.Backend
		wantErr bool
	}{
		{"empty uses miniaudio default", nil, nil, false},
		{"single", []string{"alsa"}, []malgo.Backend{malgo.BackendAlsa}, false},
		{"ordered, case-insensitive", []string{"PulseAudio", "alsa", "Null"},
			[]malgo.Backend{malgo.BackendPulseaudio, malgo.BackendAlsa, malgo.BackendNull}, false},
		{"unknown", []string{"alsa", "beos"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := audio.ParseBackends(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMalgoBackendUnknownBackend(t *testing.T) {
	_, err := audio.NewMalgoBackend(audio.MalgoOptions{Backends: []string{"beos"}})
	require.Error(t, err)
	assert.Equal(t, errorhandler.StatusInvalidPropertyValue, errorhandler.StatusOf(err))
}

// The null backend needs no sound hardware but still goes through miniaudio.
func TestMalgoNullBackend(t *testing.T) {
	if testing.Short() || os.Getenv("CI") != "" {
		t.Skip("skipping miniaudio test in short mode / CI")
	}

	backend, err := audio.NewMalgoBackend(audio.MalgoOptions{
		Backends:           []string{"null"},
		PeriodSizeInFrames: 1024,
		Periods:            2,
	})
	if errorhandler.StatusOf(err) == errorhandler.StatusNotRunning {
		t.Skipf("miniaudio null backend unavailable: %v", err)
	}
	require.NoError(t, err)
	defer func() { assert.NoError(t, backend.Close()) }()

	devices, err := backend.Devices()
	require.NoError(t, err)
	require.NotEmpty(t, devices)

	channels, err := backend.OutputChannels(devices[0].ID)
	require.NoError(t, err)
	assert.Greater(t, channels, 0)

	name, err := backend.DeviceName(devices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, devices[0].Name, name)

	_, err = backend.DeviceName(audio.DeviceID(len(devices) + 1))
	assert.Equal(t, errorhandler.StatusBadDevice, errorhandler.StatusOf(err))

	id, err := audio.ResolveOutputDevice(backend, devices[0].Name)
	require.NoError(t, err)
	assert.Equal(t, devices[0].ID, id)

	unit, err := backend.OpenOutput(audio.OutputConfig{Device: id, SampleRate: 44100, Channels: 2},
		func(out []byte, frameCount uint32) {
			for i := range out {
				out[i] = 0
			}
		})
	require.NoError(t, err)
	require.NoError(t, unit.Start())
	require.NoError(t, unit.Stop())
	unit.Uninit()
}
