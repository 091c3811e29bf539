package replay

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

type rawDecoder struct {
	*bytes.Reader
	rate, channels int
}

func (d rawDecoder) SampleRate() int   { return d.rate }
func (d rawDecoder) ChannelCount() int { return d.channels }

func pcm(samples ...int16) []byte {
	var b []byte
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

func TestNormalizerUpsamplesMonoToStereo(t *testing.T) {
	src := rawDecoder{bytes.NewReader(pcm(0, 1000, 2000)), 24000, 1}
	n, err := newNormalizer(src, playbackRate)
	if err != nil {
		t.Fatalf("newNormalizer: %v", err)
	}
	out, err := io.ReadAll(n)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []int16{0, 500, 1000, 1500, 2000, 2000}
	if len(out) != len(want)*playbackFrame {
		t.Fatalf("expected %d frames, got %d bytes", len(want), len(out))
	}
	for i, w := range want {
		l := int16(binary.LittleEndian.Uint16(out[i*4:]))
		r := int16(binary.LittleEndian.Uint16(out[i*4+2:]))
		if l != w || r != w {
			t.Fatalf("frame %d: expected %d/%d, got %d/%d", i, w, w, l, r)
		}
	}
}

func TestNormalizerPassesThroughPlaybackFormat(t *testing.T) {
	in := pcm(1, 2, 3, 4, 5, 6)
	n, err := newNormalizer(rawDecoder{bytes.NewReader(in), playbackRate, 2}, playbackRate)
	if err != nil {
		t.Fatalf("newNormalizer: %v", err)
	}
	out, _ := io.ReadAll(n)
	if !bytes.Equal(out, in) {
		t.Fatalf("expected passthrough %v, got %v", in, out)
	}
}

func TestNormalizerSmallReads(t *testing.T) {
	src := rawDecoder{bytes.NewReader(pcm(100, -100, 100, -100)), 48000, 2}
	n, err := newNormalizer(src, 24000)
	if err != nil {
		t.Fatalf("newNormalizer: %v", err)
	}
	var out []byte
	buf := make([]byte, 3)
	for {
		k, err := n.Read(buf)
		out = append(out, buf[:k]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if !bytes.Equal(out, pcm(100, -100)) {
		t.Fatalf("expected one downsampled frame, got %v", out)
	}
}

func TestNormalizerRejectsSurround(t *testing.T) {
	if _, err := newNormalizer(rawDecoder{bytes.NewReader(nil), 48000, 6}, playbackRate); err == nil {
		t.Fatal("expected error for 6 channels")
	}
}
