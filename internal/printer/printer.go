package printer

import (
	"fmt"

	"github.com/fatih/color"
)

type ColorPrinter struct {
	Success func(format string, a ...interface{}) string
	Error   func(format string, a ...interface{}) string
	Warning func(format string, a ...interface{}) string
	Info    func(format string, a ...interface{}) string
	Debug   func(format string, a ...interface{}) string
	Accent  func(format string, a ...interface{}) string
}

func NewColorPrinter() *ColorPrinter {
	return &ColorPrinter{
		Success: color.New(color.FgGreen).SprintfFunc(),
		Error:   color.New(color.FgRed).SprintfFunc(),
		Warning: color.New(color.FgYellow).SprintfFunc(),
		Info:    color.New(color.FgBlue).SprintfFunc(),
		Debug:   color.New(color.FgCyan).SprintfFunc(),
		Accent:  color.New(color.FgHiBlue, color.Bold).SprintfFunc(),
	}
}

// NewPlainPrinter returns a printer that never emits ANSI sequences (JSON logs, pipes).
func NewPlainPrinter() *ColorPrinter {
	plain := func(format string, a ...interface{}) string { return fmt.Sprintf(format, a...) }
	return &ColorPrinter{
		Success: plain,
		Error:   plain,
		Warning: plain,
		Info:    plain,
		Debug:   plain,
		Accent:  plain,
	}
}
