// Package tui renders the signage view for on-floor terminals.
package tui

import "github.com/gdamore/tcell/v2"

// Color scheme
var (
	ColorPrimary   = tcell.ColorBlue
	ColorAccent    = tcell.ColorYellow
	ColorError     = tcell.ColorRed
	ColorConnected = tcell.ColorGreen
	ColorText      = tcell.ColorWhite
)

// Status indicator strings
const (
	StatusIndicatorLive  = "[green]●[-]"
	StatusIndicatorStale = "[yellow]◐[-]"
	StatusIndicatorDown  = "[red]●[-]"
	StatusIndicatorSim   = "[blue]●[-]"
)
