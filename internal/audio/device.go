package audio

import (
	"github.com/777genius/playto/internal/errorhandler"
	"github.com/777genius/playto/internal/logging"
)

// ResolveOutputDevice returns the first device that has output channels and
// whose display name equals name exactly (case-sensitive). An empty name, an
// empty device list or no match all yield DefaultDevice. Only a failed
// enumeration is an error; a failed channel query counts as zero channels.
func ResolveOutputDevice(enum DeviceEnumerator, name string) (DeviceID, error) {
	if name == "" {
		return DefaultDevice, nil
	}

	devices, err := enum.Devices()
	if err != nil {
		return DefaultDevice, errorhandler.Wrap(err, errorhandler.StatusOf(err), "enumerate audio devices failed")
	}

	for _, dev := range devices {
		if dev.Name != name {
			continue
		}
		channels, err := enum.OutputChannels(dev.ID)
		if err != nil {
			logging.Debug("Channel query failed for %q (id %d): %v", dev.Name, dev.ID, err)
			channels = 0
		}
		if channels > 0 {
			logging.Debug("Audio device found: %s (id %d, %d channels)", dev.Name, dev.ID, channels)
			return dev.ID, nil
		}
		logging.Debug("Skipping %q (id %d): no output channels", dev.Name, dev.ID)
	}

	logging.Debug("No output device named %q", name)
	return DefaultDevice, nil
}
