package ui

import "math"

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width values as block characters scaled
// between lo and hi. Older values are dropped; missing ones are not padded.
func Sparkline(values []float64, width int, lo, hi float64) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	span := hi - lo
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if span > 0 {
			f := (v - lo) / span
			idx = int(math.Round(math.Max(0, math.Min(1, f)) * float64(len(sparkBlocks)-1)))
		}
		out[i] = sparkBlocks[idx]
	}
	return string(out)
}
