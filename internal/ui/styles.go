package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorX      = 203 // red
	colorY      = 114 // green
	colorZ      = 75  // light blue
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderAxis returns s in the color used for the named axis ("x", "y", "z").
// Unknown axes are returned unstyled.
func RenderAxis(axis, s string) string {
	switch axis {
	case "x":
		return render(colorX, s)
	case "y":
		return render(colorY, s)
	case "z":
		return render(colorZ, s)
	}
	return s
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
