// Package widgets renders refresher views for the TUI. A ViewWidget shows
// one view: its resource data, an error banner with a Retry target, a
// spinner while a tick is in flight and the age of the last success.
package widgets

// Colors shared by the renderers.
const (
	ColorBorderDefault = "#6B7280"
	ColorBorderFocus   = "#7C3AED"
	ColorAccent        = "#A78BFA"
	ColorDim           = "#9CA3AF"
	ColorError         = "#EF4444"
	ColorOK            = "#4CAF50"
	ColorWarn          = "#FF9800"
)
