package model

import (
	"fmt"
	"io"
)

// Reporter receives per-scenario progress lines while a Runner works.
type Reporter interface {
	Printf(format string, args ...interface{})
}

type SilentReporter struct{}

func (r *SilentReporter) Printf(format string, args ...interface{}) {}

// ColorReporter writes progress to a writer, typically stderr. Color codes
// come from the caller; gookit/color strips them when color is disabled.
type ColorReporter struct {
	Writer io.Writer
}

func (r *ColorReporter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(r.Writer, format, args...)
}
