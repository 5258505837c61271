package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/777genius/playto/internal/errorhandler"
)

// mp3PacketFrames is the number of frames in an MPEG-1 Layer III packet.
const mp3PacketFrames = 1152

// StreamFormat describes a file's decoded audio stream.
type StreamFormat struct {
	SampleRate       float64
	FramesPerPacket  uint32
	ChannelsPerFrame uint32
	BitsPerChannel   uint32
	Container        string
}

// File is an opened, decodable input file.
type File struct {
	path    string
	f       *os.File
	format  StreamFormat
	packets uint64
	stream  beep.Streamer
	closer  func() error

	mu     sync.Mutex
	closed bool
}

// OpenFile opens path and reads its data format. A missing file fails with
// StatusFileNotFound, an unknown container with StatusUnsupportedFileType and
// an undecodable header with StatusInvalidFile.
func OpenFile(path string) (*File, error) {
	const openOp = "open input file failed"
	const formatOp = "couldn't read file's data format"

	ext := strings.ToLower(filepath.Ext(path))
	open, ok := decoders[ext]
	if !ok {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, errorhandler.Wrap(err, errorhandler.StatusFileNotFound, openOp)
		}
		return nil, errorhandler.Wrap(fmt.Errorf("unsupported audio format: %q", ext), errorhandler.StatusUnsupportedFileType, openOp)
	}

	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, errorhandler.Wrap(err, errorhandler.StatusFileNotFound, openOp)
		case errors.Is(err, os.ErrPermission):
			return nil, errorhandler.Wrap(err, errorhandler.StatusPermissions, openOp)
		default:
			return nil, errorhandler.Wrap(err, errorhandler.StatusUnspecified, openOp)
		}
	}

	file := &File{path: path, f: f}
	if err := open(file); err != nil {
		_ = f.Close()
		return nil, errorhandler.Wrap(err, errorhandler.StatusInvalidFile, formatOp)
	}
	file.format.Container = strings.TrimPrefix(ext, ".")
	return file, nil
}

var decoders = map[string]func(*File) error{
	".wav":  openBeep(wav.Decode),
	".flac": openBeep(flac.Decode),
	".ogg":  openVorbis,
	".oga":  openVorbis,
	".mp3":  openMP3,
	".aiff": openAIFF,
	".aif":  openAIFF,
}

func openBeep(decode func(io.Reader) (beep.StreamSeekCloser, beep.Format, error)) func(*File) error {
	return func(file *File) error {
		s, format, err := decode(file.f)
		if err != nil {
			return err
		}
		file.setBeep(s, format)
		return nil
	}
}

func openVorbis(file *File) error {
	s, format, err := vorbis.Decode(file.f)
	if err != nil {
		return err
	}
	file.setBeep(s, format)
	return nil
}

func (file *File) setBeep(s beep.StreamSeekCloser, format beep.Format) {
	file.format = StreamFormat{
		SampleRate:       float64(format.SampleRate),
		FramesPerPacket:  1,
		ChannelsPerFrame: uint32(format.NumChannels),
		BitsPerChannel:   uint32(format.Precision * 8),
	}
	if n := s.Len(); n > 0 {
		file.packets = uint64(n)
	}
	file.stream = s
	file.closer = s.Close
}

func openMP3(file *File) error {
	d, err := gomp3.NewDecoder(file.f)
	if err != nil {
		return err
	}
	length := d.Length()
	if length < 0 {
		return fmt.Errorf("mp3 stream length unknown")
	}

	// go-mp3 always decodes to 16-bit stereo.
	frames := uint64(length) / 4
	fpp := mp3FramesPerPacket(frames)

	file.format = StreamFormat{
		SampleRate:       float64(d.SampleRate()),
		FramesPerPacket:  fpp,
		ChannelsPerFrame: 2,
		BitsPerChannel:   16,
	}
	file.packets = frames / uint64(fpp)
	file.stream = &mp3Streamer{r: d}
	return nil
}

// mp3FramesPerPacket picks the packet size that divides frames exactly:
// 1152 for MPEG-1, 576 for MPEG-2/2.5 streams, else 1.
func mp3FramesPerPacket(frames uint64) uint32 {
	for _, size := range []uint32{mp3PacketFrames, mp3PacketFrames / 2} {
		if frames > 0 && frames%uint64(size) == 0 {
			return size
		}
	}
	return 1
}

func openAIFF(file *File) error {
	d := aiff.NewDecoder(file.f)
	if !d.IsValidFile() {
		return fmt.Errorf("invalid AIFF file")
	}
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return err
	}
	if d.NumChans == 0 || d.SampleRate <= 0 {
		return fmt.Errorf("invalid AIFF header: %d channels at %d Hz", d.NumChans, d.SampleRate)
	}

	file.format = StreamFormat{
		SampleRate:       float64(d.SampleRate),
		FramesPerPacket:  1,
		ChannelsPerFrame: uint32(d.NumChans),
		BitsPerChannel:   uint32(d.BitDepth),
	}
	file.packets = uint64(d.NumSampleFrames)
	file.stream = newAIFFStreamer(d)
	return nil
}

// Path returns the path the file was opened from.
func (file *File) Path() string {
	return file.path
}

// Format returns the decoded stream format.
func (file *File) Format() StreamFormat {
	return file.format
}

// PacketCount returns the number of decodable packets in the file.
func (file *File) PacketCount() (uint64, error) {
	file.mu.Lock()
	defer file.mu.Unlock()
	if file.closed {
		return 0, errorhandler.Check(errorhandler.StatusInvalidFile, "read packet count failed")
	}
	return file.packets, nil
}

// TotalFrames is PacketCount × FramesPerPacket.
func (file *File) TotalFrames() uint64 {
	return file.packets * uint64(file.format.FramesPerPacket)
}

// Streamer returns the decoded sample stream.
func (file *File) Streamer() beep.Streamer {
	return file.stream
}

// Close releases the decoder and the underlying file. Closing twice is a no-op.
func (file *File) Close() error {
	file.mu.Lock()
	defer file.mu.Unlock()
	if file.closed {
		return nil
	}
	file.closed = true

	var errs []error
	if file.closer != nil {
		if err := file.closer(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := file.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	return errorhandler.Wrap(errors.Join(errs...), errorhandler.StatusUnspecified, "close input file failed")
}

// mp3Streamer adapts go-mp3's 16-bit stereo byte stream to beep.Streamer.
type mp3Streamer struct {
	r   io.Reader
	buf []byte
	err error
}

func (s *mp3Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}
	need := len(samples) * 4
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	read, err := io.ReadFull(s.r, buf)
	n = read / 4
	for i := 0; i < n; i++ {
		l := int16(uint16(buf[i*4]) | uint16(buf[i*4+1])<<8)
		r := int16(uint16(buf[i*4+2]) | uint16(buf[i*4+3])<<8)
		samples[i][0] = float64(l) / 32768
		samples[i][1] = float64(r) / 32768
	}
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = err
		}
		return n, n > 0
	}
	return n, true
}

func (s *mp3Streamer) Err() error {
	return s.err
}

// aiffStreamer adapts the go-audio AIFF decoder to beep.Streamer.
type aiffStreamer struct {
	d        *aiff.Decoder
	buf      *goaudio.IntBuffer
	channels int
	scale    float64
	err      error
}

func newAIFFStreamer(d *aiff.Decoder) *aiffStreamer {
	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	channels := int(d.NumChans)
	return &aiffStreamer{
		d: d,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: d.SampleRate},
		},
		channels: channels,
		scale:    float64(uint64(1) << uint(bitDepth-1)),
	}
}

func (s *aiffStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}
	need := len(samples) * s.channels
	if cap(s.buf.Data) < need {
		s.buf.Data = make([]int, need)
	}
	s.buf.Data = s.buf.Data[:need]

	read, err := s.d.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	n = read / s.channels
	for i := 0; i < n; i++ {
		l := float64(s.buf.Data[i*s.channels]) / s.scale
		r := l
		if s.channels > 1 {
			r = float64(s.buf.Data[i*s.channels+1]) / s.scale
		}
		samples[i][0] = l
		samples[i][1] = r
	}
	return n, n > 0
}

func (s *aiffStreamer) Err() error {
	return s.err
}
