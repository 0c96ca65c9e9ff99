// Package logger wraps logrus behind the small, level-named API the
// command's call sites use, so those call sites do not import logrus
// directly.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ANSI color codes, used only by Section/Banner which print straight to
// stdout rather than through the structured logger.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[37m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

var std = logrus.New()

func init() {
	std.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	std.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the minimum log level by name: debug, info, warn, error.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		std.Warnf("unknown log level %q, keeping %s", level, std.GetLevel())
		return
	}
	std.SetLevel(lvl)
}

// SetTimeFormat sets the timestamp format used in each log line.
func SetTimeFormat(format string) {
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: format})
}

// ShowTime enables or disables the timestamp in each log line.
func ShowTime(show bool) {
	std.SetFormatter(&logrus.TextFormatter{DisableTimestamp: !show, FullTimestamp: show})
}

// Entry returns a logrus entry on the package-level logger, for handing
// to the listener and its sessions, which attach structured fields
// (e.g. WithField("remote", addr)) to it.
func Entry() *logrus.Entry {
	return logrus.NewEntry(std)
}

func Debug(format string, args ...interface{}) { std.Debugf(format, args...) }
func Info(format string, args ...interface{})  { std.Infof(format, args...) }
func Warn(format string, args ...interface{})  { std.Warnf(format, args...) }
func Error(format string, args ...interface{}) { std.Errorf(format, args...) }

// Success logs at info level with a distinguishing field, since logrus has
// no built-in success level.
func Success(format string, args ...interface{}) {
	std.WithField("result", "success").Infof(format, args...)
}

// InfoCyan logs at info level; retained for call-site compatibility with
// the places that want a visually distinct informational line.
func InfoCyan(format string, args ...interface{}) {
	std.WithField("highlight", true).Infof(format, args...)
}

// Fatal logs at fatal level and exits the process, matching logrus's own
// Fatal semantics.
func Fatal(format string, args ...interface{}) {
	std.Fatalf(format, args...)
}

// Section prints a section header straight to stdout; used for the CLI's
// human-facing startup output, not for structured log lines.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Fprintf(os.Stdout, "\n%s╔%s╗%s\n", ColorCyan, border, ColorReset)
	fmt.Fprintf(os.Stdout, "%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, title, ColorCyan, ColorReset)
	fmt.Fprintf(os.Stdout, "%s╚%s╝%s\n\n", ColorCyan, border, ColorReset)
}

// Banner prints the application banner shown once at startup.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ██████╗  █████╗ ██╗  ██╗███╗   ██╗███████╗████████╗    ║
║   ██╔══██╗██╔══██╗██║ ██╔╝████╗  ██║██╔════╝╚══██╔══╝    ║
║   ██████╔╝███████║█████╔╝ ██╔██╗ ██║█████╗     ██║       ║
║   ██╔══██╗██╔══██║██╔═██╗ ██║╚██╗██║██╔══╝     ██║       ║
║   ██║  ██║██║  ██║██║  ██╗██║ ╚████║███████╗   ██║       ║
║   ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝╚══════╝   ╚═╝       ║
║                                                           ║
║              %s%-37s%s║
║                    %sVersion %-7s%s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Fprintf(os.Stdout, banner, ColorCyan, title, ColorReset, ColorGreen, version, ColorReset)
}
