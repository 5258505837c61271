package audio_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/777genius/playto/internal/audio"
	"github.com/777genius/playto/internal/audio/audiotest"
	"github.com/777genius/playto/internal/errorhandler"
)

type playerFixture struct {
	backend *audiotest.Backend
	graph   *audio.Graph
	player  *audio.FilePlayer
	file    *audio.File
	sample  float64 // decoded left channel of every fixture frame
}

func newPlayerFixture(t *testing.T, rate, frames int) *playerFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	audiotest.WriteWAV(t, path, rate, 2, frames, 0.5)
	sample := audiotest.FirstFrame(t, path)[0]

	f, err := audio.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	backend := &audiotest.Backend{}
	g, player, err := audio.BuildGraph(backend, f.Format(), audio.DefaultDevice)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	return &playerFixture{backend: backend, graph: g, player: player, file: f, sample: sample}
}

func fullRegion(frames uint64) audio.ScheduledRegion {
	return audio.ScheduledRegion{
		TimeStamp:    audio.TimeStamp{SampleTime: 0, SampleTimeValid: true},
		FramesToPlay: frames,
	}
}

func TestFilePlayerPropertyOrdering(t *testing.T) {
	fx := newPlayerFixture(t, 8000, 800)

	err := fx.player.SetScheduledRegion(fullRegion(800))
	assert.Equal(t, errorhandler.StatusUninitialized, errorhandler.StatusOf(err), "no file bound")

	err = fx.player.Prime(0)
	assert.Equal(t, errorhandler.StatusUninitialized, errorhandler.StatusOf(err))

	err = fx.player.SetStartTimeStamp(audio.StartImmediately)
	assert.Equal(t, errorhandler.StatusUninitialized, errorhandler.StatusOf(err))

	err = fx.player.SetScheduledFile(nil)
	assert.Equal(t, errorhandler.StatusInvalidPropertyValue, errorhandler.StatusOf(err))

	require.NoError(t, fx.player.SetScheduledFile(fx.file))
	require.NoError(t, fx.player.SetScheduledRegion(fullRegion(800)))
	require.NoError(t, fx.player.Prime(0))
	require.NoError(t, fx.player.SetStartTimeStamp(audio.StartImmediately))
}

func TestFilePlayerRejectsInvalidRegions(t *testing.T) {
	fx := newPlayerFixture(t, 8000, 800)
	require.NoError(t, fx.player.SetScheduledFile(fx.file))

	looping := fullRegion(800)
	looping.LoopCount = 1

	tooLong := fullRegion(801)

	offset := fullRegion(700)
	offset.StartFrame = 200

	noTime := fullRegion(800)
	noTime.TimeStamp.SampleTimeValid = false

	for name, r := range map[string]audio.ScheduledRegion{
		"looping":         looping,
		"past end":        tooLong,
		"offset past end": offset,
		"no timestamp":    noTime,
	} {
		t.Run(name, func(t *testing.T) {
			err := fx.player.SetScheduledRegion(r)
			assert.Equal(t, errorhandler.StatusInvalidPropertyValue, errorhandler.StatusOf(err))
		})
	}
}

func TestFilePlayerRejectsSampleRateMismatch(t *testing.T) {
	fx := newPlayerFixture(t, 8000, 800)

	other := filepath.Join(t.TempDir(), "other.wav")
	audiotest.WriteWAV(t, other, 44100, 2, 100, 0.1)
	f, err := audio.OpenFile(other)
	require.NoError(t, err)
	defer f.Close()

	err = fx.player.SetScheduledFile(f)
	assert.Equal(t, errorhandler.StatusInvalidPropertyValue, errorhandler.StatusOf(err))
}

func TestFilePlayerSilentWithoutStartTime(t *testing.T) {
	fx := newPlayerFixture(t, 8000, 800)
	require.NoError(t, fx.player.SetScheduledFile(fx.file))
	require.NoError(t, fx.player.SetScheduledRegion(fullRegion(800)))
	require.NoError(t, fx.player.Prime(0))

	out, err := fx.backend.Render(256)
	require.NoError(t, err)
	for _, s := range out {
		assert.Zero(t, s)
	}
	assert.Zero(t, fx.player.FramesPlayed())

	select {
	case <-fx.player.Done():
		t.Fatal("done before start")
	default:
	}
}

func TestFilePlayerDelayedStart(t *testing.T) {
	fx := newPlayerFixture(t, 8000, 800)
	require.NoError(t, fx.player.SetScheduledFile(fx.file))
	require.NoError(t, fx.player.SetScheduledRegion(fullRegion(800)))
	require.NoError(t, fx.player.SetStartTimeStamp(audio.TimeStamp{SampleTime: 100, SampleTimeValid: true}))

	out, err := fx.backend.Render(256)
	require.NoError(t, err)

	// Stereo: frame i lives at out[2i], out[2i+1].
	assert.Zero(t, out[2*99])
	assert.NotZero(t, out[2*100])
	assert.InDelta(t, fx.sample, out[2*100], 1e-6)
	assert.Equal(t, uint64(156), fx.player.FramesPlayed())
}

func TestFilePlayerStartFrame(t *testing.T) {
	fx := newPlayerFixture(t, 8000, 800)
	require.NoError(t, fx.player.SetScheduledFile(fx.file))

	r := fullRegion(300)
	r.StartFrame = 500
	require.NoError(t, fx.player.SetScheduledRegion(r))
	require.NoError(t, fx.player.Prime(64))
	require.NoError(t, fx.player.SetStartTimeStamp(audio.StartImmediately))

	for i := 0; i < 3; i++ {
		_, err := fx.backend.Render(128)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(300), fx.player.FramesPlayed())
	select {
	case <-fx.player.Done():
	default:
		t.Fatal("region should be exhausted")
	}
}
