package main

import (
	"github.com/fatih/color"
)

var (
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
	passColor = color.New(color.FgGreen)
)

// logWarning reports a recoverable oddity (unparsable tsconfig, skipped entry
// file) on stderr without affecting the exit code.
func logWarning(format string, args ...interface{}) {
	warnColor.Fprintf(color.Error, "Warning: "+format+"\n", args...)
}

func logFailure(format string, args ...interface{}) {
	failColor.Fprintf(color.Error, format+"\n", args...)
}

func logSuccess(format string, args ...interface{}) {
	passColor.Fprintf(color.Output, format+"\n", args...)
}
