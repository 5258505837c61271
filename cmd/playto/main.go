// ABOUTME: playto plays an audio file once, optionally routed to an output device chosen by name.
// ABOUTME: Exits after the file's duration; 0 on success, 1 on an audio failure, 255 on usage error.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/777genius/playto/internal/audio"
	"github.com/777genius/playto/internal/config"
	"github.com/777genius/playto/internal/errorhandler"
	"github.com/777genius/playto/internal/logging"
	"github.com/777genius/playto/internal/notifier"
	"github.com/777genius/playto/internal/player"
)

const version = "1.0.0"

// newBackend is swapped in tests
var newBackend = func(cfg *config.Config) (audio.Backend, error) {
	return audio.NewMalgoBackend(audio.MalgoOptions{
		Backends:           cfg.Output.Backends,
		PeriodSizeInFrames: cfg.Output.PeriodSizeInFrames,
		Periods:            cfg.Output.Periods,
	})
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) (code int) {
	// Panics are reported on stderr and recovered
	errorhandler.Init(stderr, true)
	defer func() {
		if errorhandler.Panicked() {
			code = errorhandler.ExitFatal
		}
	}()
	defer errorhandler.HandlePanic()

	if len(args) < 1 {
		printUsage(stdout)
		return errorhandler.ExitUsage
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "playto v%s\n", version)
		return errorhandler.ExitOK
	case "help", "--help", "-h":
		printUsage(stdout)
		return errorhandler.ExitOK
	}

	path := args[0]
	deviceName := ""
	if len(args) > 1 {
		deviceName = args[1]
	}

	return play(path, deviceName, stdout, stderr)
}

func play(path, deviceName string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(config.DefaultPath())
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return errorhandler.Report(stderr, err)
	}

	if _, err := logging.InitLogger(cfg.Logging.File, cfg.Logging.Level); err != nil {
		return errorhandler.Report(stderr, fmt.Errorf("failed to initialize logger: %w", err))
	}
	defer logging.Close()

	backend, err := newBackend(cfg)
	if err != nil {
		return errorhandler.Report(stderr, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			errorhandler.HandleError(err, "Failed to close audio backend")
		}
	}()

	res, err := player.Play(backend, player.Options{
		Path:         path,
		DeviceName:   deviceName,
		StrictDevice: cfg.Output.StrictDevice,
		Stdout:       stdout,
	})
	if err != nil {
		return errorhandler.Report(stderr, err)
	}

	if cfg.IsDesktopEnabled() {
		shown := ""
		if res.Device != audio.DefaultDevice {
			shown = deviceName
		}
		if err := notifier.New(cfg).SendFinished(path, shown, res.Duration); err != nil {
			errorhandler.HandleError(err, "Failed to send notification")
		}
	}

	return errorhandler.ExitOK
}

func printUsage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "playto - audio player that can output to a certain device.\n\n")
	fmt.Fprintf(w, "Usage: %s <path-to-audio-file> [<output-device-name>]\n\n", name)
	fmt.Fprintf(w, "Supported formats: MP3, WAV, FLAC, OGG/Vorbis, AIFF\n\n")
	fmt.Fprintf(w, "Examples:\n")
	fmt.Fprintf(w, "  %s song.wav\n", name)
	fmt.Fprintf(w, "  %s song.mp3 \"Built-in Output\"\n", name)
	fmt.Fprintf(w, "\nThe device name must match exactly; an unknown name plays on the default output\n")
	fmt.Fprintf(w, "unless output.strictDevice is set in %s\n", config.DefaultPath())
}
