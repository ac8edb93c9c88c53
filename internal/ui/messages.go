package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time
type sourceEndedMsg struct{}
type liveTitleMsg string
type updateHintMsg string

const frameInterval = 33 * time.Millisecond

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
