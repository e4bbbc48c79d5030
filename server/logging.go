package server

import (
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// SetColorOutput turns colored log lines on only when f is a terminal.
func SetColorOutput(f *os.File) {
	fd := f.Fd()
	color.NoColor = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// logRequest logs an HTTP request with color-coded status
func logRequest(l *log.Logger, method, path string, status int) {
	switch {
	case status >= 200 && status < 300:
		l.Print(color.GreenString("%s %s %d", method, path, status))
	case status >= 400 && status < 500:
		l.Print(color.RedString("%s %s %d", method, path, status))
	case status >= 500:
		l.Print(color.YellowString("%s %s %d", method, path, status))
	default:
		l.Printf("%s %s %d", method, path, status)
	}
}

// logConnError reports why a connection ended. EOF and timeouts are normal
// turnover and only show up when verbose is set.
func logConnError(l *log.Logger, remote string, state connState, err error, verbose bool) {
	kind := KindOf(err)
	if kind.routine() {
		if verbose {
			l.Print(color.HiBlackString("%s closed during %s: %s", remote, state, kind))
		}
		return
	}
	l.Print(color.RedString("%s failed during %s: %v", remote, state, err))
}
