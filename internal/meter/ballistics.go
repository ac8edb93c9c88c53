package meter

import (
	"math"
	"time"
)

// Ballistics smooths the needle position with separate attack and release
// time constants, approximating the inertia of a mechanical movement. It
// operates on the normalized deflection (angle+25)/50 so the smoothing is
// linear regardless of the non-linear VU scale.
type Ballistics struct {
	attackSec  float64
	releaseSec float64
	level      float64 // normalized deflection in [0,1], 0 = at rest
}

// NewBallistics returns a filter at rest with the given time constants in
// seconds.
func NewBallistics(attackSec, releaseSec float64) *Ballistics {
	return &Ballistics{attackSec: attackSec, releaseSec: releaseSec}
}

// Process moves the smoothed needle toward targetDeg and returns the new
// needle angle. dt is the time since the previous tick; dt <= 0 leaves the
// state unchanged, so irregular or non-monotonic tick clocks degrade to a
// frozen needle rather than a jump.
func (b *Ballistics) Process(targetDeg float64, dt time.Duration) float64 {
	if dt < 0 {
		dt = 0
	}
	target := (targetDeg - MinAngle) / (MaxAngle - MinAngle)

	sec := dt.Seconds()
	coeff := 1 - math.Exp(-sec/b.releaseSec)
	if target > b.level {
		coeff = 1 - math.Exp(-sec/b.attackSec)
	}
	b.level += (target - b.level) * coeff

	return b.level*(MaxAngle-MinAngle) + MinAngle
}

// Angle returns the current needle angle without advancing the filter.
func (b *Ballistics) Angle() float64 {
	return b.level*(MaxAngle-MinAngle) + MinAngle
}

// Reset returns the needle to rest.
func (b *Ballistics) Reset() {
	b.level = 0
}
