package source

import (
	"encoding/binary"
	"testing"

	"github.com/olivier-w/vudial/internal/meter"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// stereoFrames builds n identical monitor frames with the given channel values.
func stereoFrames(n int, left, right int16) []byte {
	out := make([]byte, 0, n*MonitorFrameSize)
	for i := 0; i < n; i++ {
		out = append(out, pcm16(left, right)...)
	}
	return out
}

func TestWindowFoldsChannels(t *testing.T) {
	tap := NewTap(16)
	tap.Write(stereoFrames(8, 1000, 3000))

	cases := []struct {
		mode meter.ChannelMode
		want float32
	}{
		{meter.ModeMono, (1000 + 3000) / 2.0 / 32768},
		{meter.ModeLeft, 1000.0 / 32768},
		{meter.ModeRight, 3000.0 / 32768},
	}
	for _, tc := range cases {
		dst := make([]float32, 4)
		if !tap.Window(dst, tc.mode) {
			t.Fatalf("Window(%v) = false, want true", tc.mode)
		}
		for i, got := range dst {
			if got != tc.want {
				t.Fatalf("mode %v sample %d = %v, want %v", tc.mode, i, got, tc.want)
			}
		}
		tap.Write(stereoFrames(1, 1000, 3000)) // refresh for the next mode
	}
}

func TestWindowRequiresFullWindow(t *testing.T) {
	tap := NewTap(8)
	dst := make([]float32, 4)

	if tap.Window(dst, meter.ModeMono) {
		t.Fatal("expected no window from an empty tap")
	}
	tap.Write(stereoFrames(3, 100, 100))
	if tap.Window(dst, meter.ModeMono) {
		t.Fatal("expected no window before a full window arrived")
	}
	tap.Write(stereoFrames(1, 100, 100))
	if !tap.Window(dst, meter.ModeMono) {
		t.Fatal("expected a window once enough frames arrived")
	}
}

func TestWindowStallsWithoutFreshData(t *testing.T) {
	tap := NewTap(8)
	tap.Write(stereoFrames(8, 500, 500))

	dst := make([]float32, 4)
	if !tap.Window(dst, meter.ModeMono) {
		t.Fatal("expected first window")
	}
	if tap.Window(dst, meter.ModeMono) {
		t.Fatal("expected stall without new data")
	}
	tap.Write(stereoFrames(1, 500, 500))
	if !tap.Window(dst, meter.ModeMono) {
		t.Fatal("expected window after fresh data")
	}
}

func TestWindowKeepsMostRecentOnOverflow(t *testing.T) {
	tap := NewTap(4)
	for i := int16(0); i < 8; i++ {
		tap.Write(stereoFrames(1, i*100, i*100))
	}

	dst := make([]float32, 4)
	if !tap.Window(dst, meter.ModeLeft) {
		t.Fatal("expected window from overflowing tap")
	}
	for i, got := range dst {
		want := float32((i+4)*100) / 32768
		if got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestWindowIgnoresPartialFrame(t *testing.T) {
	tap := NewTap(8)
	tap.Write(stereoFrames(2, 1000, 1000))
	tap.Write(pcm16(2000)) // half of the next frame

	dst := make([]float32, 2)
	if !tap.Window(dst, meter.ModeLeft) {
		t.Fatal("expected window from the complete frames")
	}
	for i, got := range dst {
		if want := float32(1000) / 32768; got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}

	// Completing the split frame makes it readable.
	tap.Write(pcm16(3000))
	dst = make([]float32, 3)
	if !tap.Window(dst, meter.ModeLeft) {
		t.Fatal("expected window after the frame completed")
	}
	if want := float32(2000) / 32768; dst[2] != want {
		t.Fatalf("completed frame = %v, want %v", dst[2], want)
	}
}

func TestBufferedCountsCompleteFrames(t *testing.T) {
	tap := NewTap(8)
	if got := tap.Buffered(); got != 0 {
		t.Fatalf("Buffered() = %d, want 0", got)
	}
	tap.Write(stereoFrames(3, 0, 0))
	tap.Write(pcm16(0))
	if got := tap.Buffered(); got != 3 {
		t.Fatalf("Buffered() = %d, want 3", got)
	}
}

func TestResetDropsBufferedAudio(t *testing.T) {
	tap := NewTap(8)
	tap.Write(stereoFrames(8, 1000, 1000))
	tap.Reset()

	if got := tap.Buffered(); got != 0 {
		t.Fatalf("Buffered() after reset = %d, want 0", got)
	}
	if tap.Window(make([]float32, 4), meter.ModeMono) {
		t.Fatal("expected no window after reset")
	}
}
