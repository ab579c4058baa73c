package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorWarn   = 179 // amber
	colorFail   = 203 // red
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

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderPass returns s in green.
func RenderPass(s string) string { return render(colorPass, s) }

// RenderWarn returns s in amber.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderFail returns s in red.
func RenderFail(s string) string { return render(colorFail, s) }

// RenderStatus colors a discussion, item or execution status by outcome.
func RenderStatus(status string) string {
	switch strings.ToUpper(status) {
	case "APPROVED", "CLOSED", "DECIDED", "QUEUED", "EXECUTED":
		return RenderPass(status)
	case "REJECTED", "ACCEPT_REJECTION", "FAILED":
		return RenderFail(status)
	case "REVISE_REQUIRED", "RESUBMITTED", "PENDING", "IN_PROGRESS":
		return RenderWarn(status)
	}
	return RenderAccent(status)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
