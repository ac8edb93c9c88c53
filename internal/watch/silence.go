// Package watch raises an alarm when the metered source goes quiet. The
// watcher rides along the metering loop and applies hysteresis so a brief
// dropout, or a brief blip of audio mid-outage, does not flap the alarm.
package watch

import (
	"log/slog"
	"time"

	"github.com/olivier-w/vudial/internal/meter"
)

type EventKind string

const (
	EventSilence   EventKind = "silence"
	EventRecovered EventKind = "recovered"
)

// Event describes a confirmed transition of the silence alarm.
type Event struct {
	Kind      EventKind
	At        time.Time
	DBFS      float64
	Threshold float64
	// Outage spans from silence onset to the return of audio. Set on
	// EventRecovered only.
	Outage time.Duration
}

// Notifier delivers an event to one destination. Notify runs on its own
// goroutine and may block.
type Notifier interface {
	Name() string
	Notify(ev Event) error
}

// Config holds the alarm thresholds.
type Config struct {
	Threshold float64       // dBFS below which a frame counts as silent
	Trigger   time.Duration // continuous silence before the alarm raises
	Recovery  time.Duration // continuous audio before the alarm clears
}

// Watcher tracks the alarm state. Observe is called from the metering
// tick; it is not safe for concurrent use.
type Watcher struct {
	cfg   Config
	log   *slog.Logger
	sinks []Notifier

	silenceStart  time.Time
	recoveryStart time.Time
	onset         time.Time
	inSilence     bool
}

func NewWatcher(cfg Config, log *slog.Logger, sinks ...Notifier) *Watcher {
	return &Watcher{cfg: cfg, log: log, sinks: sinks}
}

// Active reports whether the alarm is currently raised.
func (w *Watcher) Active() bool { return w.inSilence }

// Observe feeds one metering frame into the alarm state machine.
func (w *Watcher) Observe(frame meter.Frame, now time.Time) {
	if frame.DBFS < w.cfg.Threshold {
		w.recoveryStart = time.Time{}
		if w.silenceStart.IsZero() {
			w.silenceStart = now
		}
		if !w.inSilence && now.Sub(w.silenceStart) >= w.cfg.Trigger {
			w.inSilence = true
			w.onset = w.silenceStart
			w.log.Warn("silence detected", "dbfs", frame.DBFS, "threshold", w.cfg.Threshold)
			w.dispatch(Event{Kind: EventSilence, At: now, DBFS: frame.DBFS, Threshold: w.cfg.Threshold})
		}
		return
	}

	w.silenceStart = time.Time{}
	if !w.inSilence {
		return
	}
	if w.recoveryStart.IsZero() {
		w.recoveryStart = now
	}
	if now.Sub(w.recoveryStart) >= w.cfg.Recovery {
		outage := w.recoveryStart.Sub(w.onset)
		w.inSilence = false
		w.onset = time.Time{}
		w.recoveryStart = time.Time{}
		w.log.Info("audio recovered", "outage", outage)
		w.dispatch(Event{Kind: EventRecovered, At: now, DBFS: frame.DBFS, Threshold: w.cfg.Threshold, Outage: outage})
	}
}

// Reset clears the alarm state, for session rebuilds.
func (w *Watcher) Reset() {
	w.silenceStart = time.Time{}
	w.recoveryStart = time.Time{}
	w.onset = time.Time{}
	w.inSilence = false
}

func (w *Watcher) dispatch(ev Event) {
	for _, sink := range w.sinks {
		go func(s Notifier) {
			if err := s.Notify(ev); err != nil {
				w.log.Error("notification failed", "sink", s.Name(), "error", err)
				return
			}
			w.log.Info("notification sent", "sink", s.Name(), "event", string(ev.Kind))
		}(sink)
	}
}
