package meter

import (
	"sync"
	"time"
)

// Frame is the output of one metering tick.
type Frame struct {
	DBFS          float64 `json:"dbfs"`
	VU            float64 `json:"vu"`
	AngleDeg      float64 `json:"angle_deg"`
	PeakActive    bool    `json:"peak_active"`
	PeakIntensity float64 `json:"peak_intensity"`
}

// Session owns the mutable metering state for one source: the ballistics
// level, the clip lamp and the tick clock. Feed it one sample window per
// tick. Ticks are expected from a single goroutine; the mutex guards the
// occasional cross-goroutine Last reader.
type Session struct {
	cfg        Config
	estimator  *Estimator
	scale      Scale
	ballistics *Ballistics
	clips      *ClipTracker

	mu       sync.Mutex
	prevTick time.Time
	running  bool
	last     Frame
}

// NewSession validates cfg and returns a stopped session at rest.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg}
	s.rebuild()
	return s, nil
}

// rebuild resets all owned state. Callers hold s.mu (or own s exclusively).
func (s *Session) rebuild() {
	s.estimator = NewEstimator(s.cfg.Mode, s.cfg.SourceChannels)
	s.scale = NewScale(s.cfg.ReferenceDB)
	s.ballistics = NewBallistics(s.cfg.AttackSec, s.cfg.ReleaseSec)
	s.clips = NewClipTracker(s.cfg.ClipDeg, s.cfg.PeakHold, s.cfg.PeakFade)
	s.prevTick = time.Time{}
	s.last = Frame{
		DBFS:     floorDB,
		VU:       s.scale.VU(floorDB),
		AngleDeg: MinAngle,
	}
}

// Start arms the session. Restarting resets the needle, the lamp and the
// tick clock.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuild()
	s.running = true
}

// Stop halts the session. Later ticks are no-ops and the last emitted
// frame stays observable.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Tick advances the meter by one animation frame and returns the output.
// The window is a transient snapshot: read within the tick, never kept.
// An empty window means the provider had nothing new; the session holds
// its last output and the elapsed time is charged to the next real tick.
// The first tick after Start establishes the clock and leaves the needle
// at rest.
func (s *Session) Tick(window []float32, now time.Time) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || len(window) == 0 {
		return s.last
	}

	var dt time.Duration
	if !s.prevTick.IsZero() {
		dt = now.Sub(s.prevTick)
		if dt < 0 {
			dt = 0
		}
	}
	s.prevTick = now

	dbfs := s.estimator.Estimate(window)
	vu := s.scale.VU(dbfs)
	angle := s.ballistics.Process(ToAngle(vu), dt)

	s.clips.Observe(angle, now)
	intensity, active := s.clips.Intensity(now)

	s.last = Frame{
		DBFS:          dbfs,
		VU:            vu,
		AngleDeg:      angle,
		PeakActive:    active,
		PeakIntensity: intensity,
	}
	return s.last
}

// Last returns the most recently emitted frame.
func (s *Session) Last() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Running reports whether the session is accepting ticks.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Config returns the session parameters.
func (s *Session) Config() Config {
	return s.cfg
}
