// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"

	"eqviewer/internal/series"

	"github.com/charmbracelet/lipgloss"
)

var (
	waveChars  = []rune(" ░▒▓█")
	barChars   = []rune(" ▁▂▃▄▅▆▇█")
	shadeChars = []rune(" .:-=+*#%@")

	playedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676")).Italic(true)
)

const noData = "no data"

// Render draws a slice of any variant into width x height cells.
func Render(s series.Slice, width, height int) string {
	if s.Empty || width < 1 || height < 1 {
		return emptyStyle.Render(noData)
	}
	switch s.Variant {
	case series.Spectrum:
		return renderBars(s.Y, width, height)
	case series.Spectrogram:
		return renderGrid(s.Z, width, height)
	default:
		return renderWaveform(s, width, height)
	}
}

// columns reduces values to width buckets holding each bucket's peak.
func columns(values []float64, width int, abs bool) []float64 {
	cols := make([]float64, width)
	if len(values) == 0 {
		return cols
	}
	per := float64(len(values)) / float64(width)
	for c := range width {
		lo := int(float64(c) * per)
		hi := min(int(float64(c+1)*per), len(values))
		if hi <= lo {
			hi = min(lo+1, len(values))
		}
		peak := math.Inf(-1)
		for _, v := range values[lo:hi] {
			if abs {
				v = math.Abs(v)
			}
			peak = max(peak, v)
		}
		cols[c] = peak
	}
	return cols
}

func normalize(cols []float64) {
	top := 0.01
	for _, v := range cols {
		top = max(top, v)
	}
	for i := range cols {
		cols[i] = max(cols[i], 0) / top
	}
}

// renderWaveform draws a symmetric envelope; columns left of the played
// boundary are highlighted.
func renderWaveform(s series.Slice, width, height int) string {
	env := s.Max
	if len(env) == 0 {
		env = s.Y
	}
	amps := columns(env, width, true)
	if len(s.Min) == len(env) {
		lows := columns(s.Min, width, true)
		for i := range amps {
			amps[i] = max(amps[i], lows[i])
		}
	}
	normalize(amps)

	playedCols := 0
	if n := len(env); n > 0 && s.Played > 0 {
		playedCols = int(math.Round(float64(s.Played) / float64(n) * float64(width)))
	}

	half := float64(height) / 2
	mid := height / 2
	rows := make([]string, height)
	for r := range height {
		line := make([]rune, width)
		dist := math.Abs(float64(r - mid))
		for c := range width {
			bar := amps[c] * half
			switch {
			case dist < bar:
				line[c] = waveChars[len(waveChars)-1]
			case dist < bar+1:
				idx := int((bar + 1 - dist) * float64(len(waveChars)-1))
				line[c] = waveChars[min(idx, len(waveChars)-1)]
			default:
				line[c] = ' '
			}
		}
		if playedCols > 0 {
			cut := min(playedCols, width)
			rows[r] = playedStyle.Render(string(line[:cut])) + string(line[cut:])
		} else {
			rows[r] = string(line)
		}
	}
	return strings.Join(rows, "\n")
}

// renderBars draws magnitudes as vertical bars.
func renderBars(values []float64, width, height int) string {
	levels := columns(values, width, false)
	normalize(levels)

	rows := make([]string, height)
	for row := range height {
		var line strings.Builder
		fromBottom := float64(height - 1 - row)
		for c := range width {
			level := levels[c] * float64(height)
			idx := 0
			if level > fromBottom+1 {
				idx = len(barChars) - 1
			} else if level > fromBottom {
				idx = int((level - fromBottom) * float64(len(barChars)-1))
			}
			line.WriteRune(barChars[idx])
		}
		rows[row] = line.String()
	}
	return strings.Join(rows, "\n")
}

// renderGrid shades a [frequency][time] grid with low frequencies at the
// bottom.
func renderGrid(grid [][]float64, width, height int) string {
	if len(grid) == 0 {
		return emptyStyle.Render(noData)
	}
	bands := make([][]float64, height)
	per := float64(len(grid)) / float64(height)
	for r := range height {
		lo := int(float64(r) * per)
		hi := min(max(int(float64(r+1)*per), lo+1), len(grid))
		acc := make([]float64, width)
		for _, row := range grid[lo:hi] {
			for c, v := range columns(row, width, true) {
				acc[c] = max(acc[c], v)
			}
		}
		bands[r] = acc
	}

	top := 1e-12
	for _, row := range bands {
		for _, v := range row {
			top = max(top, v)
		}
	}

	rows := make([]string, height)
	for r := range height {
		src := bands[height-1-r]
		line := make([]rune, width)
		for c, v := range src {
			idx := int(max(v, 0) / top * float64(len(shadeChars)-1))
			line[c] = shadeChars[min(idx, len(shadeChars)-1)]
		}
		rows[r] = string(line)
	}
	return strings.Join(rows, "\n")
}
