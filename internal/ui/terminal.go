package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether reports written to stdout should be
// colored. NO_COLOR wins over CLICOLOR_FORCE, which wins over CLICOLOR=0;
// otherwise color is used only on a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Setup disables color when stdout should not be colored or when the
// caller asked for plain output.
func Setup(plain bool) {
	if plain || !ShouldUseColor() {
		ForceNoColor()
	}
}
