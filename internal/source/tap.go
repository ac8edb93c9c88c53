package source

import (
	"encoding/binary"
	"sync"

	"github.com/olivier-w/vudial/internal/meter"
)

// Tap sits between a realtime PCM producer and the tick-driven metering
// consumer. The producer writes monitor-format bytes as they pass through;
// the consumer pulls the most recent analysis window at its own cadence.
type Tap struct {
	buf     []byte
	size    int
	w       int   // write position
	fill    int   // current fill level
	written int64 // bytes ever written
	taken   int64 // written count at the last delivered window
	scratch []byte
	mu      sync.Mutex
}

// NewTap creates a tap able to hold the given number of monitor frames.
func NewTap(frames int) *Tap {
	if frames < 1 {
		frames = 1
	}
	size := frames * MonitorFrameSize
	return &Tap{
		buf:  make([]byte, size),
		size: size,
	}
}

// Write appends monitor PCM to the tap, overwriting the oldest data when
// full. Safe to call from the producer goroutine.
func (t *Tap) Write(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range p {
		t.buf[t.w] = b
		t.w = (t.w + 1) % t.size
	}
	t.fill += len(p)
	if t.fill > t.size {
		t.fill = t.size
	}
	t.written += int64(len(p))
}

// Window fills dst with the most recent len(dst) frames folded to one
// channel per mode. It reports false while the producer has not yet
// delivered a full window, and false again until fresh data arrives, so a
// stalled producer reads as a pause rather than as repeating audio.
func (t *Tap) Window(dst []float32, mode meter.ChannelMode) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(dst) == 0 {
		return false
	}
	need := len(dst) * MonitorFrameSize

	// Trailing bytes of a partially written frame are not readable yet.
	partial := int(t.written % MonitorFrameSize)
	if t.fill-partial < need || t.written == t.taken {
		return false
	}

	if cap(t.scratch) < need {
		t.scratch = make([]byte, need)
	}
	raw := t.scratch[:need]
	start := (t.w - partial - need + 2*t.size) % t.size
	for i := 0; i < need; i++ {
		raw[i] = t.buf[(start+i)%t.size]
	}
	t.taken = t.written

	for i := range dst {
		off := i * MonitorFrameSize
		left := int16(binary.LittleEndian.Uint16(raw[off:]))
		right := int16(binary.LittleEndian.Uint16(raw[off+2:]))
		switch mode {
		case meter.ModeLeft:
			dst[i] = float32(left) / 32768
		case meter.ModeRight:
			dst[i] = float32(right) / 32768
		default:
			dst[i] = (float32(left) + float32(right)) / 2 / 32768
		}
	}
	return true
}

// Buffered returns the number of complete frames currently held.
func (t *Tap) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return (t.fill - int(t.written%MonitorFrameSize)) / MonitorFrameSize
}

// Reset drops all buffered audio, e.g. after a seek.
func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w = 0
	t.fill = 0
	t.written = 0
	t.taken = 0
}
