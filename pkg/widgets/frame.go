package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// rounded border pieces
const (
	bTopLeft     = "╭"
	bTopRight    = "╮"
	bBottomLeft  = "╰"
	bBottomRight = "╯"
	bHorizontal  = "─"
	bVertical    = "│"
)

// Frame draws lines inside a rounded border of exactly width x height cells
// with title embedded in the top edge. Lines are clipped or padded to fit.
func Frame(title string, lines []string, width, height int, focused bool) string {
	if width < 4 || height < 2 {
		return ""
	}
	color := ColorBorderDefault
	if focused {
		color = ColorBorderFocus
	}
	border := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	inner := width - 2

	var b strings.Builder
	b.WriteString(border.Render(bTopLeft))
	b.WriteString(titleBar(title, inner, border))
	b.WriteString(border.Render(bTopRight))

	body := FitLines(lines, inner, height-2)
	for _, l := range body {
		b.WriteByte('\n')
		b.WriteString(border.Render(bVertical))
		b.WriteString(l)
		b.WriteString(border.Render(bVertical))
	}

	b.WriteByte('\n')
	b.WriteString(border.Render(bBottomLeft + strings.Repeat(bHorizontal, inner) + bBottomRight))
	return b.String()
}

func titleBar(title string, width int, border lipgloss.Style) string {
	maxTitle := width - 4
	if title == "" || maxTitle <= 0 {
		return border.Render(strings.Repeat(bHorizontal, width))
	}
	title = ansi.Truncate(title, maxTitle, "…")
	seg := " " + lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)).Render(title) + " "
	rest := width - 1 - ansi.StringWidth(seg)
	if rest < 0 {
		rest = 0
	}
	return border.Render(bHorizontal) + seg + border.Render(strings.Repeat(bHorizontal, rest))
}

// FitLines returns exactly height lines, each exactly width cells wide.
func FitLines(lines []string, width, height int) []string {
	out := make([]string, height)
	for i := range out {
		if i < len(lines) {
			out[i] = FitLine(lines[i], width)
		} else {
			out[i] = strings.Repeat(" ", width)
		}
	}
	return out
}

// FitLine truncates or right-pads s to width visible cells.
func FitLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	vis := ansi.StringWidth(s)
	switch {
	case vis > width:
		return ansi.Truncate(s, width, "…")
	case vis < width:
		return s + strings.Repeat(" ", width-vis)
	}
	return s
}

// Wrap word-wraps s at width, keeping ANSI sequences intact.
func Wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	return strings.Split(ansi.Wrap(s, width, ""), "\n")
}

// PadRight pads s to width visible cells.
func PadRight(s string, width int) string {
	if vis := ansi.StringWidth(s); vis < width {
		return s + strings.Repeat(" ", width-vis)
	}
	return s
}

func dim(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDim)).Render(s)
}

func colored(hex, s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(s)
}
