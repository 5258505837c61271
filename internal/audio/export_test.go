package audio

var MP3FramesPerPacket = mp3FramesPerPacket

// ScheduledRegion returns the region the player was given, if any.
func (p *FilePlayer) ScheduledRegion() (ScheduledRegion, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.region == nil {
		return ScheduledRegion{}, false
	}
	return *p.region, true
}
