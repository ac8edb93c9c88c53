package ui

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/vudial/internal/meter"
	"github.com/olivier-w/vudial/internal/source"
)

type recordingObserver struct {
	frames []meter.Frame
}

func (r *recordingObserver) Observe(frame meter.Frame, _ time.Time) {
	r.frames = append(r.frames, frame)
}

func newTestModel(t *testing.T, obs ...Observer) Model {
	t.Helper()
	sess, err := meter.NewSession(meter.DefaultConfig(48000, 2))
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	m := New(Options{
		Session:   sess,
		Tap:       source.NewTap(8192),
		Title:     "Test Tone",
		Observers: obs,
	})
	m.session.Start()
	return m
}

func toneBytes(frames int, amp float64) []byte {
	buf := make([]byte, frames*source.MonitorFrameSize)
	for i := 0; i < frames; i++ {
		s := uint16(int16(amp * 32767 * math.Sin(2*math.Pi*float64(i)/64)))
		binary.LittleEndian.PutUint16(buf[i*4:], s)
		binary.LittleEndian.PutUint16(buf[i*4+2:], s)
	}
	return buf
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestTickMetersWindowAndNotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	m := newTestModel(t, obs)
	m.tap.Write(toneBytes(4096, 0.5))

	now := time.Now()
	next, cmd := m.Update(tickMsg(now))
	nm := next.(Model)
	if cmd == nil {
		t.Fatal("expected tick to re-arm")
	}
	if !nm.ready {
		t.Fatal("expected model ready after a fresh window")
	}
	if nm.frame.DBFS < -15 {
		t.Fatalf("expected tone loudness in the first frame, got %g dBFS", nm.frame.DBFS)
	}
	if nm.frame.AngleDeg != meter.MinAngle {
		t.Fatalf("expected needle at rest on the first tick, got %g", nm.frame.AngleDeg)
	}
	if len(obs.frames) != 1 {
		t.Fatalf("expected one observed frame, got %d", len(obs.frames))
	}

	nm.tap.Write(toneBytes(4096, 0.5))
	next, _ = nm.Update(tickMsg(now.Add(frameInterval)))
	nm = next.(Model)
	if nm.frame.AngleDeg <= meter.MinAngle {
		t.Fatalf("expected needle off rest on the second tick, got %g", nm.frame.AngleDeg)
	}
	if len(obs.frames) != 2 {
		t.Fatalf("expected two observed frames, got %d", len(obs.frames))
	}
}

func TestTickWithoutFreshAudioHoldsLastFrame(t *testing.T) {
	m := newTestModel(t)
	m.tap.Write(toneBytes(4096, 0.5))

	now := time.Now()
	next, _ := m.Update(tickMsg(now))
	nm := next.(Model)
	nm.tap.Write(toneBytes(4096, 0.5))
	next, _ = nm.Update(tickMsg(now.Add(frameInterval)))
	nm = next.(Model)
	held := nm.frame

	next, _ = nm.Update(tickMsg(now.Add(2 * frameInterval)))
	nm = next.(Model)
	if nm.frame != held {
		t.Fatalf("expected stalled tap to hold the last frame, got %+v want %+v", nm.frame, held)
	}
	if !nm.ready {
		t.Fatal("expected model to stay ready through a stall")
	}
}

func TestChannelModeKeyRebuildsSession(t *testing.T) {
	m := newTestModel(t)
	old := m.session

	next, _ := m.Update(keyMsg('m'))
	nm := next.(Model)
	if nm.session == old {
		t.Fatal("expected a fresh session after mode change")
	}
	if got := nm.session.Config().Mode; got != meter.ModeLeft {
		t.Fatalf("expected mode left, got %v", got)
	}
	if !nm.session.Running() {
		t.Fatal("expected new session running")
	}
	if nm.frame.AngleDeg != meter.MinAngle {
		t.Fatalf("expected needle reset to rest, got %g", nm.frame.AngleDeg)
	}
}

func TestQuitKeyStopsSession(t *testing.T) {
	m := newTestModel(t)

	next, cmd := m.Update(keyMsg('q'))
	nm := next.(Model)
	if !nm.quitting {
		t.Fatal("expected quitting state")
	}
	if nm.session.Running() {
		t.Fatal("expected session stopped")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if nm.View() != "" {
		t.Fatal("expected empty view while quitting")
	}
}

func TestSourceEndedStopsSessionAndQuits(t *testing.T) {
	m := newTestModel(t)

	next, cmd := m.Update(sourceEndedMsg{})
	nm := next.(Model)
	if !nm.quitting {
		t.Fatal("expected quitting state")
	}
	if nm.session.Running() {
		t.Fatal("expected session stopped")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestViewShowsWarmupUntilFirstWindow(t *testing.T) {
	m := newTestModel(t)

	view := stripANSI(m.View())
	if !strings.Contains(view, "waiting for signal") {
		t.Fatalf("expected warm-up line, got:\n%s", view)
	}

	m.tap.Write(toneBytes(4096, 0.5))
	next, _ := m.Update(tickMsg(time.Now()))
	nm := next.(Model)
	view = stripANSI(nm.View())
	if strings.Contains(view, "waiting for signal") {
		t.Fatalf("expected warm-up line gone, got:\n%s", view)
	}
	for _, want := range []string{"vudial", "Test Tone", "dBFS", "VU", "m channel  q quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestLiveTitleMsgUpdatesTitle(t *testing.T) {
	m := newTestModel(t)
	m.titles = make(chan string, 1)

	next, cmd := m.Update(liveTitleMsg("Artist - Song"))
	nm := next.(Model)
	if nm.title != "Artist - Song" {
		t.Fatalf("expected updated title, got %q", nm.title)
	}
	if cmd == nil {
		t.Fatal("expected window title and re-arm commands")
	}
}

func TestUpdateHintAppearsInView(t *testing.T) {
	m := newTestModel(t)
	m.ready = true

	next, _ := m.Update(updateHintMsg("update available: v1.2.0"))
	nm := next.(Model)
	if !strings.Contains(stripANSI(nm.View()), "update available: v1.2.0") {
		t.Fatal("expected update hint in view")
	}
}

func TestFaceSizeCapsAndDefaults(t *testing.T) {
	m := newTestModel(t)

	w, h := m.faceSize()
	if w != 60 || h != 8 {
		t.Fatalf("expected default face 60x8, got %dx%d", w, h)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	nm := next.(Model)
	w, h = nm.faceSize()
	if w != 72 || h != 14 {
		t.Fatalf("expected capped face 72x14, got %dx%d", w, h)
	}
}
