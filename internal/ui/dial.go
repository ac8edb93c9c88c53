package ui

import (
	"math"
	"strings"

	"github.com/olivier-w/vudial/internal/meter"
)

type paint uint8

const (
	paintNone paint = iota
	paintGreen
	paintGreenDim
	paintAmber
	paintAmberDim
	paintRed
	paintRedDim
	paintNeedle
	paintCross
	paintHub
	paintLabel
	paintLamp
)

var (
	zoneGreen = colorRGB{R: 13, G: 188, B: 121}
	zoneAmber = colorRGB{R: 229, G: 190, B: 70}
	zoneRed   = colorRGB{R: 225, G: 64, B: 50}
	faceDark  = colorRGB{R: 18, G: 22, B: 30}
	needleInk = colorRGB{R: 255, G: 248, B: 190}
	hubInk    = colorRGB{R: 105, G: 110, B: 120}
	labelInk  = colorRGB{R: 150, G: 150, B: 160}
	lampOff   = colorRGB{R: 70, G: 40, B: 38}
	lampOn    = colorRGB{R: 255, G: 70, B: 56}
)

const (
	dialMinWidth  = 24
	dialMinHeight = 7

	// The mechanical sweep is ±25°; on screen it is widened to ±60° so the
	// needle travel stays readable in a cell grid.
	visualSweep = 60.0
)

// faceTicks are the printed scale positions, one per calibration anchor.
var faceTicks = [...]float64{-20, -10, -7, -5, -3, -2, -1, 0, 1, 2, 3}

var faceLabels = [...]struct {
	vu   float64
	text string
}{
	{-20, "-20"},
	{-10, "-10"},
	{-5, "-5"},
	{0, "0"},
	{3, "+3"},
}

// Dial renders an analog meter face: a calibrated arc with green, amber and
// red zones, a pivoting needle and a peak lamp. Cell geometry assumes
// terminal cells roughly twice as tall as wide.
type Dial struct {
	width   int
	height  int
	profile colorProfile

	cx     int // pivot column
	cy     int // pivot row
	radius int // arc radius in columns

	amberDeg float64
	redDeg   float64
}

// NewDial builds a dial with zone boundaries taken from the calibration
// curve: amber from -3 VU, red from 0 VU.
func NewDial() *Dial {
	return &Dial{
		profile:  currentColorProfile(),
		amberDeg: meter.ToAngle(-3),
		redDeg:   meter.ToAngle(0),
	}
}

// Resize fits the face geometry to a cell area.
func (d *Dial) Resize(width, height int) {
	d.width = width
	d.height = height
	d.cx = width / 2
	d.cy = height - 1

	r := 2 * (height - 3)
	if lim := (width - 8) / 2; r > lim {
		r = lim
	}
	d.radius = r
}

// Render draws one animation frame. Too small an area renders nothing and
// the caller falls back to the text readout.
func (d *Dial) Render(frame meter.Frame) string {
	if d.width < dialMinWidth || d.height < dialMinHeight {
		return ""
	}

	runes := make([][]rune, d.height)
	paints := make([][]paint, d.height)
	for r := range runes {
		runes[r] = make([]rune, d.width)
		paints[r] = make([]paint, d.width)
		for c := range runes[r] {
			runes[r][c] = ' '
		}
	}

	d.drawArc(runes, paints)
	d.drawLabels(runes, paints)
	d.drawNeedle(runes, paints, frame.AngleDeg)
	d.drawBase(runes, paints)
	d.drawLamp(runes, paints, frame)

	lamp := lerpColor(lampOff, lampOn, frame.PeakIntensity)
	var out strings.Builder
	color := newANSIState()
	for r := 0; r < d.height; r++ {
		if r > 0 {
			out.WriteByte('\n')
		}
		for c := 0; c < d.width; c++ {
			if p := paints[r][c]; p != paintNone && d.profile != colorNone {
				color.set(&out, paintColor(p, lamp))
			}
			out.WriteRune(runes[r][c])
		}
		color.reset(&out)
	}
	return out.String()
}

func paintColor(p paint, lamp colorRGB) colorRGB {
	switch p {
	case paintGreen:
		return zoneGreen
	case paintGreenDim:
		return dimmed(zoneGreen)
	case paintAmber:
		return zoneAmber
	case paintAmberDim:
		return dimmed(zoneAmber)
	case paintRed:
		return zoneRed
	case paintRedDim:
		return dimmed(zoneRed)
	case paintNeedle, paintCross:
		return needleInk
	case paintHub:
		return hubInk
	case paintLamp:
		return lamp
	default:
		return labelInk
	}
}

func dimmed(c colorRGB) colorRGB {
	return lerpColor(faceDark, c, 0.45)
}

// polar maps a radius in columns and a screen angle to a cell, halving the
// vertical component for the cell aspect ratio.
func (d *Dial) polar(radius, rad float64) (int, int) {
	x := float64(d.cx) + radius*math.Sin(rad)
	y := float64(d.cy) - radius*math.Cos(rad)/2
	return int(math.Round(x)), int(math.Round(y))
}

func screenRad(meterDeg float64) float64 {
	return meterDeg / meter.MaxAngle * visualSweep * math.Pi / 180
}

func (d *Dial) zonePaint(meterDeg float64, bright bool) paint {
	switch {
	case meterDeg < d.amberDeg:
		if bright {
			return paintGreen
		}
		return paintGreenDim
	case meterDeg < d.redDeg:
		if bright {
			return paintAmber
		}
		return paintAmberDim
	default:
		if bright {
			return paintRed
		}
		return paintRedDim
	}
}

func (d *Dial) drawArc(runes [][]rune, paints [][]paint) {
	steps := int(visualSweep) * 3
	for i := -steps; i <= steps; i++ {
		meterDeg := float64(i) / float64(steps) * meter.MaxAngle
		x, y := d.polar(float64(d.radius), screenRad(meterDeg))
		if y < 0 || y >= d.height || x < 0 || x >= d.width {
			continue
		}
		if paints[y][x] != paintNone {
			continue
		}
		runes[y][x] = '·'
		paints[y][x] = d.zonePaint(meterDeg, false)
	}

	for _, vu := range faceTicks {
		meterDeg := meter.ToAngle(vu)
		x, y := d.polar(float64(d.radius), screenRad(meterDeg))
		if y < 0 || y >= d.height || x < 0 || x >= d.width {
			continue
		}
		runes[y][x] = '●'
		paints[y][x] = d.zonePaint(meterDeg, true)
	}
}

func (d *Dial) drawLabels(runes [][]rune, paints [][]paint) {
	for _, l := range faceLabels {
		meterDeg := meter.ToAngle(l.vu)
		x, y := d.polar(float64(d.radius)+3, screenRad(meterDeg))
		p := paintLabel
		if l.vu >= 0 {
			p = paintRed
		}
		writeText(runes, paints, x-len(l.text)/2, y, l.text, p)
	}
}

// drawNeedle draws a straight line from the pivot to the arc; where the tip
// lands on the printed scale the cell becomes a bright marker.
func (d *Dial) drawNeedle(runes [][]rune, paints [][]paint, meterDeg float64) {
	if meterDeg < meter.MinAngle {
		meterDeg = meter.MinAngle
	}
	if meterDeg > meter.MaxAngle {
		meterDeg = meter.MaxAngle
	}
	tipX, tipY := d.polar(float64(d.radius), screenRad(meterDeg))
	drawLine(runes, paints, d.cx, d.cy, tipX, tipY, needleRune(meterDeg))
}

func needleRune(meterDeg float64) rune {
	screenDeg := meterDeg / meter.MaxAngle * visualSweep
	switch {
	case screenDeg > 15:
		return '╱'
	case screenDeg < -15:
		return '╲'
	default:
		return '│'
	}
}

// drawLine is a Bresenham walk over the cell grid. Needle cells landing on
// the scale arc render as a bright crossing marker; labels and the lamp are
// never overdrawn.
func drawLine(runes [][]rune, paints [][]paint, x0, y0, x1, y1 int, r rune) {
	maxY := len(runes)
	if maxY == 0 {
		return
	}
	maxX := len(runes[0])

	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy

	for {
		if y0 >= 0 && y0 < maxY && x0 >= 0 && x0 < maxX {
			switch paints[y0][x0] {
			case paintGreen, paintGreenDim, paintAmber, paintAmberDim, paintRed, paintRedDim:
				runes[y0][x0] = '✦'
				paints[y0][x0] = paintCross
			case paintLabel, paintLamp:
			default:
				runes[y0][x0] = r
				paints[y0][x0] = paintNeedle
			}
		}

		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (d *Dial) drawBase(runes [][]rune, paints [][]paint) {
	writeText(runes, paints, d.cx-2, d.cy, "━━┻━━", paintHub)
	writeText(runes, paints, d.cx+4, d.cy, "VU", paintLabel)
}

func (d *Dial) drawLamp(runes [][]rune, paints [][]paint, frame meter.Frame) {
	lamp := '○'
	p := paintLabel
	if frame.PeakActive {
		lamp = '●'
		p = paintLamp
	}
	x := d.cx + d.radius - 5
	writeText(runes, paints, x, 0, "PEAK", p)
	if x+5 >= 0 && x+5 < d.width {
		runes[0][x+5] = lamp
		paints[0][x+5] = paintLamp
	}
}

func writeText(runes [][]rune, paints [][]paint, x, y int, s string, p paint) {
	if y < 0 || y >= len(runes) {
		return
	}
	col := x
	for _, r := range s {
		if col >= 0 && col < len(runes[y]) {
			runes[y][col] = r
			paints[y][col] = p
		}
		col++
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
