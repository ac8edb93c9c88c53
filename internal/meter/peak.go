package meter

import "time"

// snapOff is the intensity below which the lamp reports unlit. A glow
// under a tenth of a percent would render as lit forever otherwise.
const snapOff = 0.001

// ClipTracker drives the peak lamp. A needle excursion past the clip
// threshold lights the lamp at full intensity for a hold period, after
// which it fades out linearly. Re-crossing while fading snaps straight
// back to full.
type ClipTracker struct {
	thresholdDeg float64
	hold         time.Duration
	fade         time.Duration

	lastClip time.Time
	clipped  bool
}

// NewClipTracker returns a tracker with the lamp dark.
func NewClipTracker(thresholdDeg float64, hold, fade time.Duration) *ClipTracker {
	return &ClipTracker{thresholdDeg: thresholdDeg, hold: hold, fade: fade}
}

// Observe records a threshold crossing at the given tick time. The most
// recent crossing always wins.
func (t *ClipTracker) Observe(angleDeg float64, now time.Time) {
	if angleDeg >= t.thresholdDeg {
		t.lastClip = now
		t.clipped = true
	}
}

// Intensity reports the lamp intensity in [0,1] and whether the lamp is
// lit at the given tick time.
func (t *ClipTracker) Intensity(now time.Time) (float64, bool) {
	if !t.clipped {
		return 0, false
	}
	since := now.Sub(t.lastClip)
	if since <= t.hold {
		return 1, true
	}

	faded := float64(since-t.hold) / float64(t.fade)
	if faded > 1 {
		faded = 1
	}
	intensity := 1 - faded
	if intensity <= snapOff {
		return 0, false
	}
	return intensity, true
}

// Reset darkens the lamp and forgets the last crossing.
func (t *ClipTracker) Reset() {
	t.lastClip = time.Time{}
	t.clipped = false
}
