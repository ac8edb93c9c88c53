package meter

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ChannelMode selects which channel of the source drives the needle.
type ChannelMode uint8

const (
	ModeMono ChannelMode = iota
	ModeLeft
	ModeRight
)

func (m ChannelMode) String() string {
	switch m {
	case ModeLeft:
		return "left"
	case ModeRight:
		return "right"
	default:
		return "mono"
	}
}

// Next cycles mono -> left -> right -> mono.
func (m ChannelMode) Next() ChannelMode {
	switch m {
	case ModeMono:
		return ModeLeft
	case ModeLeft:
		return ModeRight
	default:
		return ModeMono
	}
}

// ParseChannelMode parses a channel mode name as used in config files and flags.
func ParseChannelMode(s string) (ChannelMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mono":
		return ModeMono, nil
	case "left", "l":
		return ModeLeft, nil
	case "right", "r":
		return ModeRight, nil
	default:
		return ModeMono, fmt.Errorf("unknown channel mode %q (want mono, left or right)", s)
	}
}

// Defaults applied by DefaultConfig and by the configuration layer.
const (
	DefaultWindowSec   = 0.05
	DefaultAttackSec   = 0.3
	DefaultReleaseSec  = 0.3
	DefaultClipDeg     = 23.0
	DefaultPeakHold    = 1000 * time.Millisecond
	DefaultPeakFade    = 5000 * time.Millisecond
	DefaultStereoRefDB = -18.0
	DefaultMonoRefDB   = -20.0
)

const (
	minWindowLen = 32
	maxWindowLen = 32768
)

// Config holds the immutable parameters of one metering session. A session
// must be rebuilt if the sample rate or channel mode changes.
type Config struct {
	SampleRate     int
	Mode           ChannelMode
	SourceChannels int // channel count of the underlying source, before any fold

	ReferenceDB float64 // dBFS level treated as 0 VU
	WindowSec   float64 // analysis window duration
	AttackSec   float64 // ballistics time constant, rising
	ReleaseSec  float64 // ballistics time constant, falling
	ClipDeg     float64 // needle angle that lights the peak lamp
	PeakHold    time.Duration
	PeakFade    time.Duration
}

// DefaultConfig returns a Config with standard values for the given source.
// The 0 VU reference defaults to -18 dBFS for two-channel sources and
// -20 dBFS for single-channel ones.
func DefaultConfig(sampleRate, sourceChannels int) Config {
	ref := DefaultStereoRefDB
	if sourceChannels < 2 {
		ref = DefaultMonoRefDB
	}
	return Config{
		SampleRate:     sampleRate,
		Mode:           ModeMono,
		SourceChannels: sourceChannels,
		ReferenceDB:    ref,
		WindowSec:      DefaultWindowSec,
		AttackSec:      DefaultAttackSec,
		ReleaseSec:     DefaultReleaseSec,
		ClipDeg:        DefaultClipDeg,
		PeakHold:       DefaultPeakHold,
		PeakFade:       DefaultPeakFade,
	}
}

// Validate rejects invalid parameters before a session starts. Nothing is
// re-validated mid-session.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Mode > ModeRight {
		return fmt.Errorf("unknown channel mode %d", c.Mode)
	}
	if c.SourceChannels < 1 || c.SourceChannels > 2 {
		return fmt.Errorf("source channel count must be 1 or 2, got %d", c.SourceChannels)
	}
	if c.WindowSec <= 0 {
		return fmt.Errorf("window duration must be positive, got %g", c.WindowSec)
	}
	if c.AttackSec <= 0 || c.ReleaseSec <= 0 {
		return fmt.Errorf("attack and release time constants must be positive, got %g/%g", c.AttackSec, c.ReleaseSec)
	}
	if c.ClipDeg <= MinAngle || c.ClipDeg > MaxAngle {
		return fmt.Errorf("clip threshold must be within (%g, %g] degrees, got %g", MinAngle, MaxAngle, c.ClipDeg)
	}
	if c.PeakHold <= 0 {
		return fmt.Errorf("peak hold duration must be positive, got %s", c.PeakHold)
	}
	if c.PeakFade <= 0 {
		return fmt.Errorf("peak fade duration must be positive, got %s", c.PeakFade)
	}
	return nil
}

// WindowLen returns the analysis window length in samples: the window
// duration rounded to the nearest power of two, clamped to [32, 32768].
func (c Config) WindowLen() int {
	target := float64(c.SampleRate) * c.WindowSec
	n := minWindowLen
	for n < maxWindowLen && float64(n)*math.Sqrt2 < target {
		n <<= 1
	}
	return n
}
