package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
)

var scopeRamp = []rune(" ▁▂▃▄▅▆▇█")

const scopeGain = 2.5

// Scope is a one-row amplitude strip under the dial face. Column heights
// follow the mean magnitude of their slice of the analysis window through a
// spring, so the strip moves with the needle instead of flickering.
type Scope struct {
	spring  harmonica.Spring
	pos     []float64
	vel     []float64
	profile colorProfile
	output  string
}

func NewScope() *Scope {
	return &Scope{
		spring:  harmonica.NewSpring(harmonica.FPS(30), 14.0, 0.8),
		profile: currentColorProfile(),
	}
}

func (s *Scope) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

func (s *Scope) step(i int, target float64) {
	s.pos[i], s.vel[i] = s.spring.Update(s.pos[i], s.vel[i], target)
}

// Update advances the strip by one tick. An empty window holds the columns
// in place, matching the needle's behavior between windows.
func (s *Scope) Update(window []float32, width int) {
	if width < 8 {
		s.output = ""
		return
	}
	s.resize(width)

	if len(window) > 0 {
		spf := float64(len(window)) / float64(width)
		for c := 0; c < width; c++ {
			lo := int(float64(c) * spf)
			hi := int(float64(c+1) * spf)
			if hi > len(window) {
				hi = len(window)
			}
			if hi <= lo {
				s.step(c, 0)
				continue
			}
			var sum float64
			for i := lo; i < hi; i++ {
				sum += math.Abs(float64(window[i]))
			}
			s.step(c, sum/float64(hi-lo))
		}
	}

	s.output = s.render(width)
}

func (s *Scope) render(width int) string {
	var out strings.Builder
	color := newANSIState()
	for c := 0; c < width; c++ {
		v := clamp01(s.pos[c] * scopeGain)
		idx := int(math.Round(v * float64(len(scopeRamp)-1)))
		if s.profile != colorNone && idx > 0 {
			col := rgbFromHSV(0.53+0.04*math.Sin(float64(c)*0.22), 0.7, 0.5+0.45*v)
			color.set(&out, col)
		}
		out.WriteRune(scopeRamp[idx])
	}
	color.reset(&out)
	return out.String()
}

func (s *Scope) View() string {
	return s.output
}
