// ABOUTME: Playback session: resolves the output device, builds and schedules the graph,
// ABOUTME: sleeps for the file's duration and tears everything down in order on every path.

package player

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/777genius/playto/internal/audio"
	"github.com/777genius/playto/internal/errorhandler"
	"github.com/777genius/playto/internal/logging"
)

// Options configures a single Play call.
type Options struct {
	Path         string
	DeviceName   string // empty = system default output
	StrictDevice bool   // fail instead of falling back when DeviceName matches nothing

	Stdout io.Writer           // progress lines; nil = io.Discard
	Sleep  func(time.Duration) // nil = time.Sleep
}

// Result describes a finished playback.
type Result struct {
	SessionID    string
	Device       audio.DeviceID
	Format       audio.StreamFormat
	Duration     time.Duration
	Completed    bool // file player reported the region fully rendered at wake time
	FramesPlayed uint64
}

// Session owns the input file and the playback graph for one Play call.
type Session struct {
	ID string

	file   *audio.File
	graph  *audio.Graph
	fileAU *audio.FilePlayer
}

// Close stops, uninitializes and closes the graph, then closes the input
// file. Every step runs even if an earlier one fails; the errors are joined.
func (s *Session) Close() error {
	var errs []error
	if s.graph != nil {
		if err := s.graph.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := s.graph.Uninitialize(); err != nil {
			errs = append(errs, err)
		}
		if err := s.graph.Close(); err != nil {
			errs = append(errs, err)
		}
		s.graph = nil
		s.fileAU = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
		s.file = nil
	}
	return errors.Join(errs...)
}

// Play plays opts.Path once through backend and returns after the file's
// computed duration has elapsed. The session is torn down before returning,
// on success and on every failure path.
func Play(backend audio.Backend, opts Options) (*Result, error) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	s := &Session{ID: uuid.NewString()}
	logging.SetPrefix("session:" + s.ID[:8])
	defer func() {
		if err := s.Close(); err != nil {
			errorhandler.HandleError(err, "Session teardown failed")
		}
	}()

	logging.Debug("=== Playback started: %s ===", opts.Path)

	device, err := resolveDevice(backend, opts.DeviceName, opts.StrictDevice)
	if err != nil {
		return nil, err
	}

	s.file, err = audio.OpenFile(opts.Path)
	if err != nil {
		return nil, err
	}
	format := s.file.Format()
	logging.Debug("Input format: %s, %.0f Hz, %d ch, %d frames/packet",
		format.Container, format.SampleRate, format.ChannelsPerFrame, format.FramesPerPacket)

	if device != audio.DefaultDevice {
		name, err := backend.DeviceName(device)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(stdout, "Using output device '%s' (id %d)\n", name, device)
	} else {
		fmt.Fprintln(stdout, "Using default output device.")
	}

	s.graph, s.fileAU, err = audio.BuildGraph(backend, format, device)
	if err != nil {
		return nil, err
	}

	seconds, err := audio.PrepareFilePlayer(s.fileAU, s.file)
	if err != nil {
		return nil, err
	}

	if err := s.graph.Start(); err != nil {
		return nil, err
	}

	duration := time.Duration(seconds * float64(time.Second))
	sleep(duration)

	result := &Result{
		SessionID:    s.ID,
		Device:       device,
		Format:       format,
		Duration:     duration,
		FramesPlayed: s.fileAU.FramesPlayed(),
	}
	select {
	case <-s.fileAU.Done():
		result.Completed = true
	default:
	}
	logging.Debug("=== Playback finished: %s (completed=%v, frames=%d) ===",
		opts.Path, result.Completed, result.FramesPlayed)

	return result, nil
}

func resolveDevice(backend audio.Backend, name string, strict bool) (audio.DeviceID, error) {
	device, err := audio.ResolveOutputDevice(backend, name)
	if err != nil {
		return audio.DefaultDevice, err
	}
	if name != "" && device == audio.DefaultDevice {
		if strict {
			return audio.DefaultDevice, errorhandler.Check(errorhandler.StatusBadDevice,
				fmt.Sprintf("output device %q not found", name))
		}
		logging.Warn("Output device %q not found, using default output", name)
	}
	return device, nil
}
