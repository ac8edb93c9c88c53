package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/vudial/internal/audio"
	"github.com/olivier-w/vudial/internal/meter"
	"github.com/olivier-w/vudial/internal/source"
	"github.com/olivier-w/vudial/internal/util"
)

// Observer receives every emitted frame. The level feed and the silence
// watch attach through this; observers must not block.
type Observer interface {
	Observe(frame meter.Frame, now time.Time)
}

// Options assembles a Model. Exactly one of Player and Pump drives the tap:
// Player when the source is audible, Pump when it is metered silently.
type Options struct {
	Session   *meter.Session
	Tap       *source.Tap
	Player    *audio.Player
	Pump      *source.Pump
	Title     string
	Detail    string
	Observers []Observer
	Titles    <-chan string // live stream title updates, optional
	UpdateCh  <-chan string // release check hint, optional
}

// Model is the Bubbletea model for the vudial TUI. Each animation tick
// pulls the freshest analysis window from the tap, advances the metering
// session and hands the frame to the dial, the scope and the observers.
type Model struct {
	session   *meter.Session
	tap       *source.Tap
	player    *audio.Player
	pump      *source.Pump
	observers []Observer
	titles    <-chan string
	updateCh  <-chan string

	dial  *Dial
	scope *Scope
	spin  spinner.Model

	title  string
	detail string
	frame  meter.Frame
	window []float32
	ready  bool

	elapsed  time.Duration
	duration time.Duration
	volume   float64
	paused   bool

	width      int
	height     int
	quitting   bool
	updateHint string
}

// New wires a model around a started source. The session is armed by Init.
func New(opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	m := Model{
		session:   opts.Session,
		tap:       opts.Tap,
		player:    opts.Player,
		pump:      opts.Pump,
		observers: opts.Observers,
		titles:    opts.Titles,
		updateCh:  opts.UpdateCh,
		dial:      NewDial(),
		scope:     NewScope(),
		spin:      sp,
		title:     opts.Title,
		detail:    opts.Detail,
		frame:     opts.Session.Last(),
		window:    make([]float32, opts.Session.Config().WindowLen()),
	}
	if m.player != nil {
		m.duration = m.player.Duration()
		m.volume = m.player.Volume()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	m.session.Start()
	cmds := []tea.Cmd{
		tickCmd(),
		m.spin.Tick,
		tea.SetWindowTitle(windowTitle(m.title, false)),
	}
	if done := m.doneChan(); done != nil {
		cmds = append(cmds, checkDone(done))
	}
	if m.titles != nil {
		cmds = append(cmds, waitTitle(m.titles))
	}
	if m.updateCh != nil {
		cmds = append(cmds, waitUpdate(m.updateCh))
	}
	return tea.Batch(cmds...)
}

func (m Model) doneChan() <-chan struct{} {
	switch {
	case m.player != nil:
		return m.player.Done()
	case m.pump != nil:
		return m.pump.Done()
	}
	return nil
}

func (m Model) closeSource() {
	if m.player != nil {
		m.player.Close()
	}
	if m.pump != nil {
		m.pump.Close()
	}
}

func checkDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return sourceEndedMsg{}
	}
}

func waitTitle(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		title, ok := <-ch
		if !ok {
			return nil
		}
		return liveTitleMsg(title)
	}
}

func waitUpdate(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		hint, ok := <-ch
		if !ok {
			return nil
		}
		return updateHintMsg(hint)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if isQuit(msg) {
			return m.quit()
		}
		return m.handleKey(msg)

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case spinner.TickMsg:
		if m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case liveTitleMsg:
		m.title = string(msg)
		return m, tea.Batch(
			tea.SetWindowTitle(windowTitle(m.title, m.paused)),
			waitTitle(m.titles),
		)

	case updateHintMsg:
		m.updateHint = string(msg)
		return m, nil

	case sourceEndedMsg:
		m.session.Stop()
		m.quitting = true
		m.closeSource()
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.session.Stop()
	m.quitting = true
	m.closeSource()
	return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		if m.player != nil {
			m.player.TogglePause()
			m.paused = m.player.Paused()
			return m, tea.SetWindowTitle(windowTitle(m.title, m.paused))
		}
	case "left", "h":
		if m.player != nil {
			m.player.Seek(-5 * time.Second)
		}
	case "right", "l":
		if m.player != nil {
			m.player.Seek(5 * time.Second)
		}
	case "up", "k":
		if m.player != nil {
			m.player.AdjustVolume(0.05)
			m.volume = m.player.Volume()
		}
	case "down", "j":
		if m.player != nil {
			m.player.AdjustVolume(-0.05)
			m.volume = m.player.Volume()
		}
	case "r":
		if m.player != nil && m.player.Seekable() {
			m.player.Restart()
			m.session.Start()
			m.frame = m.session.Last()
			m.elapsed = 0
			m.ready = false
			return m, tea.Batch(checkDone(m.player.Done()), m.spin.Tick)
		}
	case "m":
		cfg := m.session.Config()
		cfg.Mode = cfg.Mode.Next()
		if next, err := meter.NewSession(cfg); err == nil {
			m.session.Stop()
			m.session = next
			m.session.Start()
			m.frame = m.session.Last()
		}
	}
	return m, nil
}

func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	mode := m.session.Config().Mode
	fresh := m.tap.Window(m.window, mode)

	var win []float32
	if fresh {
		win = m.window
		m.ready = true
	}
	m.frame = m.session.Tick(win, now)
	for _, o := range m.observers {
		o.Observe(m.frame, now)
	}

	if fresh {
		faceW, _ := m.faceSize()
		m.scope.Update(m.window, faceW)
	}
	if m.player != nil {
		m.elapsed = m.player.Position()
		m.volume = m.player.Volume()
		m.paused = m.player.Paused()
	}
	return m, tickCmd()
}

// faceSize fits the dial into the window, leaving room for the text chrome
// above and below it.
func (m Model) faceSize() (int, int) {
	w := m.width
	if w < 30 {
		w = 64
	}
	fw := w - 4
	if fw > 72 {
		fw = 72
	}

	h := m.height
	if h <= 0 {
		h = 20
	}
	fh := h - 12
	if fh > 14 {
		fh = 14
	}
	return fw, fh
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := m.width
	if w < 30 {
		w = 64
	}

	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(headerStyle.Render("vudial"))
	b.WriteString("\n\n  ")
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	if m.detail != "" {
		b.WriteString("  ")
		b.WriteString(sourceStyle.Render(m.detail))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if !m.ready {
		b.WriteString("  ")
		b.WriteString(m.spin.View())
		b.WriteString(" ")
		b.WriteString(statusStyle.Render("waiting for signal..."))
		b.WriteString("\n\n  ")
		b.WriteString(helpStyle.Render(m.helpLine()))
		b.WriteString("\n")
		return b.String()
	}

	faceW, faceH := m.faceSize()
	m.dial.Resize(faceW, faceH)
	if face := m.dial.Render(m.frame); face != "" {
		b.WriteString(indentBlock(face, "  "))
		b.WriteString("\n")
	}
	if sc := m.scope.View(); sc != "" {
		b.WriteString("  ")
		b.WriteString(sc)
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(readoutStyle.Render(renderReadout(m.frame, m.session.Config().Mode)))
	b.WriteString("\n")

	if m.player != nil {
		m.renderTransport(&b, w)
	}

	b.WriteString("\n  ")
	b.WriteString(helpStyle.Render(m.helpLine()))
	b.WriteString("\n")
	if m.updateHint != "" {
		b.WriteString("  ")
		b.WriteString(hintStyle.Render(m.updateHint))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderTransport(b *strings.Builder, w int) {
	if m.player.Seekable() && m.duration > 0 {
		elapsedStr := util.FormatDuration(m.elapsed)
		durationStr := util.FormatDuration(m.duration)
		barWidth := w - len(elapsedStr) - len(durationStr) - 6
		if barWidth < 10 {
			barWidth = 10
		}
		bar := renderProgressBar(m.elapsed.Seconds(), m.duration.Seconds(), barWidth)
		b.WriteString("  ")
		b.WriteString(fmt.Sprintf("%s %s %s", timeStyle.Render(elapsedStr), bar, timeStyle.Render(durationStr)))
		b.WriteString("\n")
	} else {
		b.WriteString("  ")
		b.WriteString(timeStyle.Render("live  " + util.FormatDuration(m.elapsed)))
		b.WriteString("\n")
	}

	statusIcon := "▶"
	statusText := "playing"
	if m.paused {
		statusIcon = "❚❚"
		statusText = "paused"
	}
	leftText := fmt.Sprintf("%s  %s", statusIcon, statusText)
	volStr := renderVolumePercent(m.volume)
	gap := w - len(leftText) - len(volStr) - 4
	if gap < 2 {
		gap = 2
	}
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(leftText))
	b.WriteString(spaces(gap))
	b.WriteString(statusStyle.Render(volStr))
	b.WriteString("\n")
}

func (m Model) helpLine() string {
	return helpText(m.player != nil, m.player != nil && m.player.Seekable())
}

func windowTitle(title string, paused bool) string {
	if paused {
		return "⏸ " + title + " — vudial"
	}
	return "▶ " + title + " — vudial"
}

func indentBlock(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func spaces(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", n)
}
