package ui

import (
	"fmt"
	"strings"

	"github.com/olivier-w/vudial/internal/meter"
)

func renderProgressBar(elapsed, total float64, width int) string {
	if width < 10 {
		width = 10
	}
	barWidth := width - 2

	var ratio float64
	if total > 0 {
		ratio = elapsed / total
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(barWidth))
	return strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
}

func renderVolumePercent(vol float64) string {
	return fmt.Sprintf("vol %d%%", int(vol*100))
}

func renderReadout(frame meter.Frame, mode meter.ChannelMode) string {
	return fmt.Sprintf("%6.1f dBFS  %+5.1f VU  %s", frame.DBFS, frame.VU, mode)
}
