package watch

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/olivier-w/vudial/internal/meter"
)

type recordingSink struct {
	events chan Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan Event, 8)}
}

func (s *recordingSink) Name() string          { return "recording" }
func (s *recordingSink) Notify(ev Event) error { s.events <- ev; return nil }

type failingSink struct{}

func (failingSink) Name() string       { return "failing" }
func (failingSink) Notify(Event) error { return errors.New("unreachable") }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{Threshold: -45, Trigger: 2 * time.Second, Recovery: 1 * time.Second}
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected %s event", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func silent() meter.Frame { return meter.Frame{DBFS: -80} }
func loud() meter.Frame   { return meter.Frame{DBFS: -12} }

func TestWatcherRaisesAfterTriggerDuration(t *testing.T) {
	sink := newRecordingSink()
	w := NewWatcher(testConfig(), discardLogger(), sink)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	w.Observe(silent(), base)
	w.Observe(silent(), base.Add(1*time.Second))
	if w.Active() {
		t.Fatal("alarm raised before the trigger duration elapsed")
	}
	assertNoEvent(t, sink.events)

	w.Observe(silent(), base.Add(2*time.Second))
	if !w.Active() {
		t.Fatal("expected alarm after 2s of silence")
	}
	ev := waitEvent(t, sink.events)
	if ev.Kind != EventSilence {
		t.Errorf("expected silence event, got %s", ev.Kind)
	}
	if ev.Threshold != -45 || ev.DBFS != -80 {
		t.Errorf("expected threshold -45 and dbfs -80, got %v and %v", ev.Threshold, ev.DBFS)
	}

	// Continued silence must not re-fire.
	w.Observe(silent(), base.Add(10*time.Second))
	assertNoEvent(t, sink.events)
}

func TestWatcherAudioBlipResetsTriggerTimer(t *testing.T) {
	sink := newRecordingSink()
	w := NewWatcher(testConfig(), discardLogger(), sink)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	w.Observe(silent(), base)
	w.Observe(loud(), base.Add(1*time.Second))
	w.Observe(silent(), base.Add(1100*time.Millisecond))
	w.Observe(silent(), base.Add(3*time.Second))
	if w.Active() {
		t.Fatal("alarm raised even though the timer was reset by audio")
	}
	assertNoEvent(t, sink.events)

	w.Observe(silent(), base.Add(3200*time.Millisecond))
	if !w.Active() {
		t.Fatal("expected alarm once silence ran the full trigger duration")
	}
}

func TestWatcherRecoversAfterHoldAndReportsOutage(t *testing.T) {
	sink := newRecordingSink()
	w := NewWatcher(testConfig(), discardLogger(), sink)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	w.Observe(silent(), base)
	w.Observe(silent(), base.Add(2*time.Second))
	if waitEvent(t, sink.events).Kind != EventSilence {
		t.Fatal("expected silence event first")
	}

	// Audio returns at t+10s; the alarm must hold through the recovery window.
	w.Observe(loud(), base.Add(10*time.Second))
	if !w.Active() {
		t.Fatal("alarm cleared before the recovery hold elapsed")
	}
	assertNoEvent(t, sink.events)

	w.Observe(loud(), base.Add(11*time.Second))
	if w.Active() {
		t.Fatal("expected alarm to clear after 1s of audio")
	}
	ev := waitEvent(t, sink.events)
	if ev.Kind != EventRecovered {
		t.Fatalf("expected recovered event, got %s", ev.Kind)
	}
	if ev.Outage != 10*time.Second {
		t.Errorf("expected a 10s outage, got %s", ev.Outage)
	}
}

func TestWatcherSilenceBlipResetsRecoveryTimer(t *testing.T) {
	sink := newRecordingSink()
	w := NewWatcher(testConfig(), discardLogger(), sink)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	w.Observe(silent(), base)
	w.Observe(silent(), base.Add(2*time.Second))
	waitEvent(t, sink.events)

	w.Observe(loud(), base.Add(5*time.Second))
	w.Observe(silent(), base.Add(5500*time.Millisecond))
	w.Observe(loud(), base.Add(6*time.Second))
	w.Observe(loud(), base.Add(6900*time.Millisecond))
	if !w.Active() {
		t.Fatal("alarm cleared even though audio never held for the recovery window")
	}
	assertNoEvent(t, sink.events)

	w.Observe(loud(), base.Add(7*time.Second))
	if !w.Active() {
		t.Fatal("recovery timer should have restarted at 6s")
	}
	w.Observe(loud(), base.Add(7100*time.Millisecond))
	if w.Active() {
		t.Fatal("expected recovery once audio held for 1s")
	}
}

func TestWatcherNotifiesEverySink(t *testing.T) {
	a := newRecordingSink()
	b := newRecordingSink()
	w := NewWatcher(testConfig(), discardLogger(), failingSink{}, a, b)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	w.Observe(silent(), base)
	w.Observe(silent(), base.Add(2*time.Second))

	if waitEvent(t, a.events).Kind != EventSilence {
		t.Error("first sink missed the event")
	}
	if waitEvent(t, b.events).Kind != EventSilence {
		t.Error("second sink missed the event")
	}
}

func TestWatcherResetClearsAlarm(t *testing.T) {
	sink := newRecordingSink()
	w := NewWatcher(testConfig(), discardLogger(), sink)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	w.Observe(silent(), base)
	w.Observe(silent(), base.Add(2*time.Second))
	waitEvent(t, sink.events)

	w.Reset()
	if w.Active() {
		t.Fatal("expected reset to clear the alarm")
	}

	// After reset the trigger window starts over.
	w.Observe(silent(), base.Add(3*time.Second))
	if w.Active() {
		t.Fatal("alarm re-raised without a fresh trigger window")
	}
	w.Observe(silent(), base.Add(5*time.Second))
	if !w.Active() {
		t.Fatal("expected alarm after a fresh trigger window")
	}
}
