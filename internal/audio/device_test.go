package audio_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/777genius/playto/internal/audio"
	"github.com/777genius/playto/internal/audio/audiotest"
	"github.com/777genius/playto/internal/errorhandler"
)

func TestResolveOutputDevice(t *testing.T) {
	devices := []audiotest.Device{
		{Name: "Built-in Microphone", Channels: 0},
		{Name: "Built-in Output", Channels: 2, IsDefault: true},
		{Name: "USB Audio CODEC", Channels: 2},
		{Name: "Loopback", Channels: 0},
		{Name: "Loopback", Channels: 8},
		{Name: "Broken Card", ChannelErr: errors.New("stream configuration unavailable")},
	}

	tests := []struct {
		name    string
		devices []audiotest.Device
		query   string
		want    audio.DeviceID
	}{
		{"absent name uses default", devices, "", audio.DefaultDevice},
		{"empty device list", nil, "Built-in Output", audio.DefaultDevice},
		{"exact match", devices, "Built-in Output", 2},
		{"second device", devices, "USB Audio CODEC", 3},
		{"no match falls back to default", devices, "NonexistentCard", audio.DefaultDevice},
		{"case-sensitive", devices, "built-in output", audio.DefaultDevice},
		{"no normalization", devices, "Built-in Output ", audio.DefaultDevice},
		{"input-only device never returned", devices, "Built-in Microphone", audio.DefaultDevice},
		{"first device with output channels wins", devices, "Loopback", 5},
		{"channel query failure counts as zero", devices, "Broken Card", audio.DefaultDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &audiotest.Backend{DeviceList: tt.devices}
			got, err := audio.ResolveOutputDevice(backend, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveOutputDeviceAbsentNameSkipsEnumeration(t *testing.T) {
	backend := &audiotest.Backend{EnumErr: errors.New("should not be called")}

	got, err := audio.ResolveOutputDevice(backend, "")
	require.NoError(t, err)
	assert.Equal(t, audio.DefaultDevice, got)
	assert.Empty(t, backend.Calls())
}

func TestResolveOutputDeviceEnumerationFailure(t *testing.T) {
	backend := &audiotest.Backend{EnumErr: errors.New("no audio server")}

	_, err := audio.ResolveOutputDevice(backend, "Built-in Output")
	require.Error(t, err)
	assert.Equal(t, errorhandler.StatusUnspecified, errorhandler.StatusOf(err))
	assert.Contains(t, err.Error(), "enumerate audio devices failed")
}
