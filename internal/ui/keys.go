package ui

import tea "github.com/charmbracelet/bubbletea"

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

func helpText(transport, seekable bool) string {
	s := ""
	if transport {
		s = "space pause  "
		if seekable {
			s += "←/→ seek  "
		}
		s += "↑/↓ volume  "
		if seekable {
			s += "r restart  "
		}
	}
	s += "m channel  q quit"
	return s
}
