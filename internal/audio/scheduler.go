package audio

import (
	"github.com/777genius/playto/internal/logging"
)

// Duration returns the playback length in seconds of packets packets of
// framesPerPacket frames at sampleRate. A non-positive rate yields 0.
func Duration(packets uint64, framesPerPacket uint32, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(packets) * float64(framesPerPacket) / sampleRate
}

// PrepareFilePlayer schedules the whole of file on player: it binds the file,
// schedules a single non-looping region from frame 0, primes the player and
// sets it to start on the next render cycle. Returns the duration in seconds.
func PrepareFilePlayer(player *FilePlayer, file *File) (float64, error) {
	if err := player.SetScheduledFile(file); err != nil {
		return 0, err
	}

	packets, err := file.PacketCount()
	if err != nil {
		return 0, err
	}
	format := file.Format()

	region := ScheduledRegion{
		TimeStamp:    TimeStamp{SampleTime: 0, SampleTimeValid: true},
		StartFrame:   0,
		FramesToPlay: packets * uint64(format.FramesPerPacket),
		LoopCount:    0,
	}
	if err := player.SetScheduledRegion(region); err != nil {
		return 0, err
	}

	if err := player.Prime(0); err != nil {
		return 0, err
	}

	if err := player.SetStartTimeStamp(StartImmediately); err != nil {
		return 0, err
	}

	seconds := Duration(packets, format.FramesPerPacket, format.SampleRate)
	logging.Debug("Scheduled %s: %d packets × %d frames @ %.0f Hz = %.3fs",
		file.Path(), packets, format.FramesPerPacket, format.SampleRate, seconds)
	return seconds, nil
}
