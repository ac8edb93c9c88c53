package meter

// Dial range in degrees. 0° is straight up; the needle rests at MinAngle.
const (
	MinAngle = -25.0
	MaxAngle = 25.0
)

// anchors reproduce a measured VU scale response: compressed at the ends,
// expanded around 0 VU. Interpolation is linear within each segment and
// boundary ties resolve to the lower segment.
var anchors = [...]struct{ vu, deg float64 }{
	{-20, -23},
	{-10, -16},
	{-7, -12},
	{-5, -8},
	{-3, -3},
	{-2, 0},
	{-1, 3.5},
	{0, 8},
	{1, 13},
	{2, 18},
	{3, 25},
}

// ToAngle maps a VU value to a needle deflection in degrees. Below -20 VU
// the needle pins to MinAngle, at or above +3 VU to MaxAngle.
func ToAngle(vu float64) float64 {
	if vu < anchors[0].vu {
		return MinAngle
	}
	if vu >= anchors[len(anchors)-1].vu {
		return MaxAngle
	}
	return interpolateAngle(vu)
}

func interpolateAngle(vu float64) float64 {
	if vu <= anchors[0].vu {
		return anchors[0].deg
	}
	for i := 1; i < len(anchors); i++ {
		if vu <= anchors[i].vu {
			lo, hi := anchors[i-1], anchors[i]
			t := (vu - lo.vu) / (hi.vu - lo.vu)
			return lo.deg + t*(hi.deg-lo.deg)
		}
	}
	return anchors[len(anchors)-1].deg
}

// Scale fixes the 0 VU reference for a session and converts absolute
// loudness readings to VU and needle angle.
type Scale struct {
	reference float64
}

// NewScale returns a scale with the given 0 VU reference in dBFS.
func NewScale(referenceDB float64) Scale {
	return Scale{reference: referenceDB}
}

// VU converts an absolute loudness in dBFS to VU units.
func (s Scale) VU(dbfs float64) float64 {
	return dbfs - s.reference
}

// Angle converts an absolute loudness in dBFS to a needle angle.
func (s Scale) Angle(dbfs float64) float64 {
	return ToAngle(s.VU(dbfs))
}
