package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorRegress = 203 // red
	colorFixed   = 114 // green
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color. Used for headings.
func RenderAccent(s string) string {
	return render(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return render(colorMuted, s)
}

// RenderRegressed returns s in the regression (red) color.
func RenderRegressed(s string) string {
	return render(colorRegress, s)
}

// RenderFixed returns s in the fixed (green) color.
func RenderFixed(s string) string {
	return render(colorFixed, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
