package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/777genius/playto/internal/errorhandler"
)

// DefaultPrimeFrames is the read-ahead used when Prime is called with 0.
const DefaultPrimeFrames = 4096

// TimeStamp is a render-clock position in sample frames.
type TimeStamp struct {
	SampleTime      float64
	SampleTimeValid bool
}

// StartImmediately starts playback on the next render cycle.
var StartImmediately = TimeStamp{SampleTime: -1, SampleTimeValid: true}

// ScheduledRegion is the window of a file the player renders.
// LoopCount must be 0; looping is not supported.
type ScheduledRegion struct {
	TimeStamp    TimeStamp
	StartFrame   uint64
	FramesToPlay uint64
	LoopCount    uint32
}

// FilePlayer is the generator node of a Graph. It renders a scheduled region
// of a File into the output node's buffers.
type FilePlayer struct {
	mu sync.Mutex

	channels   int
	sampleRate float64

	file   *File
	region *ScheduledRegion
	start  *TimeStamp

	skip      uint64
	remaining uint64
	primed    [][2]float64
	scratch   [][2]float64

	sampleTime float64
	started    bool
	played     uint64

	done     chan struct{}
	doneOnce sync.Once
}

func newFilePlayer() *FilePlayer {
	return &FilePlayer{
		channels: 2,
		done:     make(chan struct{}),
	}
}

// setOutputFormat fixes the rendered stream format. Called by Graph.Initialize.
func (p *FilePlayer) setOutputFormat(sampleRate float64, channels int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampleRate = sampleRate
	p.channels = channels
}

// SetScheduledFile binds file as the player's source and clears any previous
// region, prime and start time.
func (p *FilePlayer) SetScheduledFile(file *File) error {
	const op = "set scheduled file failed"
	if file == nil {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampleRate > 0 && file.Format().SampleRate != p.sampleRate {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}

	p.file = file
	p.region = nil
	p.start = nil
	p.primed = nil
	p.skip = 0
	p.remaining = 0
	return nil
}

// SetScheduledRegion selects the frames to render.
func (p *FilePlayer) SetScheduledRegion(r ScheduledRegion) error {
	const op = "set scheduled region failed"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return errorhandler.Check(errorhandler.StatusUninitialized, op)
	}
	if r.LoopCount != 0 || !r.TimeStamp.SampleTimeValid {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}
	if r.StartFrame+r.FramesToPlay > p.file.TotalFrames() {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}

	region := r
	p.region = &region
	p.skip = r.StartFrame
	p.remaining = r.FramesToPlay
	p.primed = nil
	return nil
}

// Prime decodes up to frames frames of the region ahead of rendering.
// Zero selects DefaultPrimeFrames.
func (p *FilePlayer) Prime(frames uint32) error {
	const op = "prime file player failed"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.region == nil {
		return errorhandler.Check(errorhandler.StatusUninitialized, op)
	}
	if frames == 0 {
		frames = DefaultPrimeFrames
	}

	want := uint64(frames)
	if left := p.remaining - uint64(len(p.primed)); want > left {
		want = left
	}
	if err := p.skipLocked(); err != nil {
		return errorhandler.Wrap(err, errorhandler.StatusInvalidFile, op)
	}

	buf := make([][2]float64, want)
	n := p.readLocked(buf)
	p.primed = append(p.primed, buf[:n]...)
	if err := p.file.Streamer().Err(); err != nil {
		return errorhandler.Wrap(err, errorhandler.StatusInvalidFile, op)
	}
	return nil
}

// SetStartTimeStamp sets when rendering of the region begins, measured on the
// player's render clock. A SampleTime of -1 means the next render cycle.
func (p *FilePlayer) SetStartTimeStamp(ts TimeStamp) error {
	const op = "set start time failed"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.region == nil {
		return errorhandler.Check(errorhandler.StatusUninitialized, op)
	}
	if !ts.SampleTimeValid {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}
	start := ts
	p.start = &start
	return nil
}

// Done is closed once every frame of the region has been rendered.
func (p *FilePlayer) Done() <-chan struct{} {
	return p.done
}

// FramesPlayed returns the number of region frames rendered so far.
func (p *FilePlayer) FramesPlayed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

// Render writes frameCount interleaved float32 frames into out. Frames before
// the start time and after the region are silent.
func (p *FilePlayer) Render(out []byte, frameCount uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	channels := p.channels
	total := int(frameCount)
	if limit := len(out) / (4 * channels); total > limit {
		total = limit
	}

	offset := total
	if p.started {
		offset = 0
	} else if p.start != nil && p.region != nil {
		switch {
		case p.start.SampleTime < 0:
			offset = 0
		case p.start.SampleTime < p.sampleTime+float64(total):
			offset = int(p.start.SampleTime - p.sampleTime)
			if offset < 0 {
				offset = 0
			}
		}
		if offset < total {
			p.started = true
		}
	}
	p.sampleTime += float64(total)

	for i := 0; i < offset; i++ {
		writeFrame(out, i, channels, [2]float64{})
	}

	i := offset
	for i < total && p.remaining > 0 {
		frames := p.pullLocked(total - i)
		if len(frames) == 0 {
			p.remaining = 0
			break
		}
		for _, f := range frames {
			writeFrame(out, i, channels, f)
			i++
		}
	}
	for ; i < total; i++ {
		writeFrame(out, i, channels, [2]float64{})
	}

	if p.started && p.remaining == 0 {
		p.doneOnce.Do(func() { close(p.done) })
	}
}

// pullLocked returns up to n region frames, primed ones first.
func (p *FilePlayer) pullLocked(n int) [][2]float64 {
	if p.file == nil {
		return nil
	}
	if uint64(n) > p.remaining {
		n = int(p.remaining)
	}

	if len(p.primed) > 0 {
		if n > len(p.primed) {
			n = len(p.primed)
		}
		frames := p.primed[:n]
		p.primed = p.primed[n:]
		p.remaining -= uint64(n)
		p.played += uint64(n)
		return frames
	}

	if p.skipLocked() != nil {
		return nil
	}
	if cap(p.scratch) < n {
		p.scratch = make([][2]float64, n)
	}
	got := p.readLocked(p.scratch[:n])
	p.remaining -= uint64(got)
	p.played += uint64(got)
	return p.scratch[:got]
}

// readLocked fills buf from the file's streamer.
func (p *FilePlayer) readLocked(buf [][2]float64) int {
	stream := p.file.Streamer()
	read := 0
	for read < len(buf) {
		n, ok := stream.Stream(buf[read:])
		read += n
		if !ok || n == 0 {
			break
		}
	}
	return read
}

// skipLocked discards frames before the region's start frame.
func (p *FilePlayer) skipLocked() error {
	if p.skip == 0 {
		return nil
	}
	stream := p.file.Streamer()
	buf := make([][2]float64, 1024)
	for p.skip > 0 {
		want := uint64(len(buf))
		if want > p.skip {
			want = p.skip
		}
		n, ok := stream.Stream(buf[:want])
		p.skip -= uint64(n)
		if !ok || n == 0 {
			p.skip = 0
			return stream.Err()
		}
	}
	return nil
}

// writeFrame stores one frame as little-endian float32. Mono output takes the
// left channel.
func writeFrame(out []byte, frame, channels int, s [2]float64) {
	off := frame * channels * 4
	for c := 0; c < channels; c++ {
		v := s[0]
		if c == 1 {
			v = s[1]
		}
		binary.LittleEndian.PutUint32(out[off+c*4:], math.Float32bits(float32(v)))
	}
}
