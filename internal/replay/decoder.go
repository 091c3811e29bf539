package replay

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// pcmDecoder yields interleaved signed 16-bit little-endian PCM.
type pcmDecoder interface {
	io.Reader
	SampleRate() int
	ChannelCount() int
}

// Supported reports whether path has an extension replay can decode.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav", ".flac", ".ogg":
		return true
	}
	return false
}

func newDecoder(f *os.File) (pcmDecoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".mp3":
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			return nil, fmt.Errorf("decoding MP3: %w", err)
		}
		return mp3Decoder{dec}, nil
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	default:
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}
}

// go-mp3 always decodes to 16-bit stereo.
type mp3Decoder struct{ *mp3.Decoder }

func (d mp3Decoder) ChannelCount() int { return 2 }

type wavDecoder struct {
	r        io.Reader
	rate     int
	channels int
	bitDepth int
	src      []byte
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}
	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", depth)
	}
	return &wavDecoder{
		r:        io.LimitReader(f, dec.PCMLen()),
		rate:     int(dec.SampleRate),
		channels: int(dec.NumChans),
		bitDepth: depth,
	}, nil
}

func (d *wavDecoder) SampleRate() int   { return d.rate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

func (d *wavDecoder) Read(p []byte) (int, error) {
	width := d.bitDepth / 8
	samples := len(p) / 2
	if samples == 0 {
		return 0, nil
	}
	if cap(d.src) < samples*width {
		d.src = make([]byte, samples*width)
	}
	src := d.src[:samples*width]
	n, err := io.ReadFull(d.r, src)
	samples = n / width
	if samples == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}
	for i := range samples {
		off := i * width
		var s int
		switch d.bitDepth {
		case 8:
			// 8-bit WAV is unsigned
			s = (int(src[off]) - 128) << 8
		case 16:
			s = int(int16(binary.LittleEndian.Uint16(src[off:])))
		case 24:
			v := int32(src[off]) | int32(src[off+1])<<8 | int32(src[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			s = int(v >> 8)
		case 32:
			s = int(int32(binary.LittleEndian.Uint32(src[off:])) >> 16)
		}
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(s)))
	}
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return samples * 2, err
}

type flacDecoder struct {
	stream   *flac.Stream
	buf      []byte
	channels int
	bps      int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	return &flacDecoder{
		stream:   stream,
		channels: int(stream.Info.NChannels),
		bps:      int(stream.Info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) SampleRate() int   { return int(d.stream.Info.SampleRate) }
func (d *flacDecoder) ChannelCount() int { return d.channels }

func (d *flacDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		n := copy(p, d.buf)
		d.buf = d.buf[n:]
		return n, nil
	}
	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}
	nSamples := int(frame.Subframes[0].NSamples)
	raw := make([]byte, nSamples*d.channels*2)
	for i := range nSamples {
		for ch := range d.channels {
			s := int(frame.Subframes[ch].Samples[i])
			switch {
			case d.bps > 16:
				s >>= d.bps - 16
			case d.bps < 16:
				s <<= 16 - d.bps
			}
			binary.LittleEndian.PutUint16(raw[(i*d.channels+ch)*2:], uint16(int16(clamp16(s))))
		}
	}
	n := copy(p, raw)
	d.buf = raw[n:]
	return n, nil
}

type oggDecoder struct {
	reader  *oggvorbis.Reader
	samples []float32
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggDecoder{reader: reader}, nil
}

func (d *oggDecoder) SampleRate() int   { return d.reader.SampleRate() }
func (d *oggDecoder) ChannelCount() int { return d.reader.Channels() }

func (d *oggDecoder) Read(p []byte) (int, error) {
	if cap(d.samples) < len(p)/2 {
		d.samples = make([]float32, len(p)/2)
	}
	samples := d.samples[:len(p)/2]
	n, err := d.reader.Read(samples)
	for i, s := range samples[:n] {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(clamp16(int(s*32767)))))
	}
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n * 2, err
}

func clamp16(s int) int {
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return s
}
