// Package logger writes leveled "[Component] message" lines. Level tags are
// colored when the output is a terminal.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
)

var (
	infoTag  = color.New(color.FgCyan).SprintFunc()
	warnTag  = color.New(color.FgYellow).SprintFunc()
	errorTag = color.New(color.FgRed, color.Bold).SprintFunc()
	debugTag = color.New(color.FgHiBlack).SprintFunc()

	std   = log.New(os.Stdout, "", log.LstdFlags)
	debug atomic.Bool
)

// SetOutput redirects all log output. Colors are disabled for non-terminal writers.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
	if f, ok := w.(*os.File); !ok || f != os.Stdout {
		color.NoColor = true
	}
}

// SetDebug enables or disables Debug output.
func SetDebug(enabled bool) {
	debug.Store(enabled)
}

// Info logs a general message.
func Info(format string, args ...interface{}) {
	std.Output(2, infoTag("INFO ")+" "+fmt.Sprintf(format, args...))
}

// Warn logs a recoverable problem.
func Warn(format string, args ...interface{}) {
	std.Output(2, warnTag("WARN ")+" "+fmt.Sprintf(format, args...))
}

// Error logs a failure.
func Error(format string, args ...interface{}) {
	std.Output(2, errorTag("ERROR")+" "+fmt.Sprintf(format, args...))
}

// Debug logs only when debug output is enabled.
func Debug(format string, args ...interface{}) {
	if !debug.Load() {
		return
	}
	std.Output(2, debugTag("DEBUG")+" "+fmt.Sprintf(format, args...))
}

// Fatal logs a failure and exits.
func Fatal(format string, args ...interface{}) {
	std.Output(2, errorTag("FATAL")+" "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
