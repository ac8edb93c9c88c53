package meter

import (
	"math"
	"testing"
)

// sineWindow builds a window holding whole periods of a sine at the given
// amplitude, so its RMS is exactly amp/sqrt(2).
func sineWindow(n, periods int, amp float64) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(amp * math.Sin(2*math.Pi*float64(periods)*float64(i)/float64(n)))
	}
	return w
}

func TestEstimateSilenceReturnsFloor(t *testing.T) {
	e := NewEstimator(ModeMono, 1)

	got := e.Estimate(make([]float32, 1024))
	want := 20 * math.Log10(1e-5)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected floor %v for silence, got %v", want, got)
	}
}

func TestEstimateEmptyWindowReturnsFloor(t *testing.T) {
	e := NewEstimator(ModeMono, 1)

	got := e.Estimate(nil)
	want := 20 * math.Log10(1e-5)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected floor %v for empty window, got %v", want, got)
	}
}

func TestEstimateFullScaleSine(t *testing.T) {
	e := NewEstimator(ModeMono, 1)

	got := e.Estimate(sineWindow(1024, 32, 1.0))
	want := 20 * math.Log10(1/math.Sqrt2)
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("expected %.4f dBFS for full-scale sine, got %.4f", want, got)
	}
}

func TestEstimateReferenceToneLevel(t *testing.T) {
	e := NewEstimator(ModeMono, 1)

	rms := math.Pow(10, -18.0/20)
	got := e.Estimate(sineWindow(2048, 64, rms*math.Sqrt2))
	if math.Abs(got-(-18)) > 0.01 {
		t.Fatalf("expected -18 dBFS, got %.4f", got)
	}
}

func TestEstimateMonoFoldOfStereoSourceIsCorrected(t *testing.T) {
	window := sineWindow(1024, 16, 0.25)

	plain := NewEstimator(ModeMono, 1).Estimate(window)
	folded := NewEstimator(ModeMono, 2).Estimate(window)

	if diff := folded - plain; math.Abs(diff-3.8) > 1e-9 {
		t.Fatalf("expected +3.8 dB mono fold correction, got %+.4f", diff)
	}
}

func TestEstimateSingleChannelModesSkipCorrection(t *testing.T) {
	window := sineWindow(1024, 16, 0.25)
	want := NewEstimator(ModeMono, 1).Estimate(window)

	for _, mode := range []ChannelMode{ModeLeft, ModeRight} {
		got := NewEstimator(mode, 2).Estimate(window)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("expected no correction in %s mode, got %v want %v", mode, got, want)
		}
	}
}

func TestEstimateDoesNotMutateWindow(t *testing.T) {
	window := sineWindow(256, 8, 0.5)
	snapshot := make([]float32, len(window))
	copy(snapshot, window)

	NewEstimator(ModeMono, 1).Estimate(window)

	for i := range window {
		if window[i] != snapshot[i] {
			t.Fatalf("expected window to be untouched, sample %d changed %v -> %v", i, snapshot[i], window[i])
		}
	}
}
