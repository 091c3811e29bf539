package replay

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	playbackRate     = 48000
	playbackChannels = 2
	playbackFrame    = playbackChannels * 2
)

// normalizer presents any mono or stereo decoder as a fixed-rate stereo s16le
// stream, so one audio output can play every file. Samples between source
// frames are linearly interpolated.
type normalizer struct {
	src         pcmDecoder
	srcRate     int
	srcChannels int
	outRate     int
	passthrough bool

	raw    []byte
	carry  []byte
	frames []int16 // buffered source frames, interleaved stereo
	base   int64   // index of frames[0]
	eof    bool

	pos     int64 // source position in units of 1/outRate frames
	out     []byte
	pending []byte
}

func newNormalizer(src pcmDecoder, outRate int) (*normalizer, error) {
	rate, channels := src.SampleRate(), src.ChannelCount()
	if rate <= 0 {
		return nil, fmt.Errorf("unsupported sample rate: %d", rate)
	}
	if channels < 1 || channels > playbackChannels {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	return &normalizer{
		src:         src,
		srcRate:     rate,
		srcChannels: channels,
		outRate:     outRate,
		passthrough: rate == outRate && channels == playbackChannels,
	}, nil
}

func (n *normalizer) SampleRate() int   { return n.outRate }
func (n *normalizer) ChannelCount() int { return playbackChannels }

func (n *normalizer) Read(p []byte) (int, error) {
	if n.passthrough {
		return n.src.Read(p)
	}
	if len(n.pending) > 0 {
		c := copy(p, n.pending)
		n.pending = n.pending[c:]
		return c, nil
	}

	want := max(1, (len(p)+playbackFrame-1)/playbackFrame)
	if cap(n.out) < want*playbackFrame {
		n.out = make([]byte, want*playbackFrame)
	}
	out := n.out[:0]

	var err error
	for range want {
		frame := n.pos / int64(n.outRate)
		n.compact(frame)
		var ok bool
		if ok, err = n.load(frame); !ok {
			break
		}
		l0, r0 := n.at(frame)
		l1, r1 := l0, r0
		if ok, err = n.load(frame + 1); ok {
			l1, r1 = n.at(frame + 1)
		} else if err != nil {
			break
		}
		frac := n.pos % int64(n.outRate)
		out = binary.LittleEndian.AppendUint16(out, uint16(interpolate(l0, l1, frac, n.outRate)))
		out = binary.LittleEndian.AppendUint16(out, uint16(interpolate(r0, r1, frac, n.outRate)))
		n.pos += int64(n.srcRate)
	}

	if len(out) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	c := copy(p, out)
	n.pending = out[c:]
	return c, nil
}

// load buffers source frames up to abs. It reports false once the source
// ends before abs.
func (n *normalizer) load(abs int64) (bool, error) {
	for abs >= n.base+int64(len(n.frames)/2) {
		if n.eof {
			return false, nil
		}
		if err := n.fill(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// compact drops frames before abs.
func (n *normalizer) compact(abs int64) {
	drop := abs - n.base
	if drop <= 0 {
		return
	}
	avail := int64(len(n.frames) / 2)
	if drop >= avail {
		n.frames = n.frames[:0]
		n.base += avail
		return
	}
	k := copy(n.frames, n.frames[drop*2:])
	n.frames = n.frames[:k]
	n.base += drop
}

func (n *normalizer) fill() error {
	const chunkFrames = 2048
	size := n.srcChannels * 2
	need := len(n.carry) + chunkFrames*size
	if cap(n.raw) < need {
		n.raw = make([]byte, need)
	}
	buf := append(n.raw[:0], n.carry...)
	k, err := n.src.Read(buf[len(buf):need])
	data := buf[:len(buf)+k]
	whole := len(data) / size * size

	for off := 0; off < whole; off += size {
		l := int16(binary.LittleEndian.Uint16(data[off:]))
		r := l
		if n.srcChannels == 2 {
			r = int16(binary.LittleEndian.Uint16(data[off+2:]))
		}
		n.frames = append(n.frames, l, r)
	}
	n.carry = append(n.carry[:0], data[whole:]...)

	if err != nil {
		if err == io.EOF {
			n.eof = true
			return nil
		}
		return err
	}
	return nil
}

func (n *normalizer) at(abs int64) (int16, int16) {
	i := (abs - n.base) * 2
	return n.frames[i], n.frames[i+1]
}

func interpolate(a, b int16, frac int64, rate int) int16 {
	if frac == 0 || a == b {
		return a
	}
	diff := int64(b) - int64(a)
	return int16(int64(a) + (diff*frac+int64(rate)/2)/int64(rate))
}
