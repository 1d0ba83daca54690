// Package terminal describes the output stream of a non-interactive command:
// whether it is a terminal, how wide it is and how many colors it takes.
package terminal

import (
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Info is what plain-text printers need to know about their writer.
type Info struct {
	TTY     bool
	Width   int // 0 when unknown; do not truncate
	Profile termenv.Profile
}

// Color reports whether escape sequences should be written.
func (i Info) Color() bool { return i.Profile != termenv.Ascii }

// Detect inspects w. Writers that are not terminals get the Ascii profile
// and no width. NO_COLOR disables color on terminals too; COLUMNS is used
// when the size query fails.
func Detect(w io.Writer) Info {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return Info{Profile: termenv.Ascii}
	}

	info := Info{TTY: true, Profile: termenv.NewOutput(f).EnvColorProfile()}
	if os.Getenv("NO_COLOR") != "" {
		info.Profile = termenv.Ascii
	}
	if cols, _, err := term.GetSize(f.Fd()); err == nil && cols > 0 {
		info.Width = cols
	} else {
		info.Width = envInt("COLUMNS", 0)
	}
	return info
}

// envInt reads a positive integer from the named variable, or fallback.
func envInt(name string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
