package meter

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// rmsFloor keeps silent windows off negative infinity. The resulting
// loudness floor is 20*log10(1e-5), about -100 dBFS.
const rmsFloor = 1e-5

// monoFoldDB compensates for the level drop when a true stereo signal is
// averaged down to a single mono window.
const monoFoldDB = 3.8

var floorDB = 20 * math.Log10(rmsFloor)

// Estimator measures the RMS loudness of sample windows in dBFS.
type Estimator struct {
	mode           ChannelMode
	sourceChannels int
	squares        []float32
}

// NewEstimator returns an estimator for the given channel mode and
// underlying source channel count.
func NewEstimator(mode ChannelMode, sourceChannels int) *Estimator {
	return &Estimator{mode: mode, sourceChannels: sourceChannels}
}

// Estimate returns the loudness of the window in dBFS. The window is a
// snapshot owned by the caller; it is read but never retained. An empty
// window measures as silence.
func (e *Estimator) Estimate(window []float32) float64 {
	rms := 0.0
	if len(window) > 0 {
		if cap(e.squares) < len(window) {
			e.squares = make([]float32, len(window))
		}
		squares := vek32.Mul_Into(e.squares[:len(window)], window, window)
		rms = math.Sqrt(float64(vek32.Mean(squares)))
	}

	if rms < rmsFloor {
		rms = rmsFloor
	}
	db := 20 * math.Log10(rms)

	if e.mode == ModeMono && e.sourceChannels == 2 {
		db += monoFoldDB
	}
	return db
}
