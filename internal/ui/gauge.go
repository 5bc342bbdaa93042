package ui

import (
	"fmt"
	"math"
	"strings"
)

// Gauge range in m/s². Readings outside it pin the gauge at 0% or 100%.
const (
	GaugeMin = -20.0
	GaugeMax = 20.0
)

// Normalize maps v from [GaugeMin, GaugeMax] onto [0, 100], clamped.
func Normalize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	p := (v - GaugeMin) / (GaugeMax - GaugeMin) * 100
	return math.Max(0, math.Min(100, p))
}

// Gauge renders a horizontal bar for one axis value, e.g.
//
//	X  [██████████░░░░░░░░░░]  0.12 m/s²  50%
//
// width is the bar width in cells.
func Gauge(axis string, v float64, width int) string {
	width = max(width, 1)
	pct := Normalize(v)
	filled := int(math.Round(pct / 100 * float64(width)))
	bar := strings.Repeat("█", filled) + RenderMuted(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s  [%s] %7.2f m/s² %3.0f%%",
		RenderAxis(axis, strings.ToUpper(axis)), RenderAxis(axis, bar), v, pct)
}
