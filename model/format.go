package model

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/timewinder-dev/looptrace/trace"
)

const (
	heavyRule = "================================================================================"
	lightRule = "--------------------------------------------------------------------------------"
)

// FormatStep renders one step: its header, the changes it made and the
// registers it left behind.
func FormatStep(s trace.Step) string {
	var b strings.Builder
	writeStep(&b, s)
	return b.String()
}

func writeStep(w io.Writer, s trace.Step) {
	phase := color.Cyan.Sprint(s.Phase)
	if s.Phase == trace.EventLoop {
		phase = color.Magenta.Sprint(s.Phase)
	}
	fmt.Fprintf(w, "%s %s", color.Bold.Sprintf("Step %d", s.Index), phase)
	if s.ActiveLine != trace.NoLine {
		fmt.Fprintf(w, " line %d", s.ActiveLine)
	}
	if s.SchedulerActive {
		fmt.Fprint(w, color.Yellow.Sprint(" [event loop]"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", s.Description)
	if len(s.Changes) > 0 {
		fmt.Fprint(w, "  ├─ Changes:\n")
		for _, c := range s.Changes {
			fmt.Fprintf(w, "  │    %s %s", color.Gray.Sprint(c.Type), c.Target)
			if c.Value != "" {
				fmt.Fprintf(w, " = %s", c.Value)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprint(w, "  └─ State:\n")
	iw := &indentWriter{w: w, indent: "       ", atLineStart: true}
	io.WriteString(iw, s.State.PrettyPrint())
}

// FormatTrace renders every step of a trace.
func FormatTrace(tr *trace.Trace) string {
	var b strings.Builder
	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprintf("Trace %s (%d steps)\n", tr.ID, len(tr.Steps)))
	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")
	for i, s := range tr.Steps {
		if i > 0 {
			b.WriteString("\n")
		}
		writeStep(&b, s)
	}
	return b.String()
}

func FormatPropertyViolation(v PropertyViolation) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")
	b.WriteString(color.Red.Sprint("PROPERTY VIOLATION"))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Scenario: "))
	b.WriteString(fmt.Sprintf("%s\n", v.Scenario))
	b.WriteString(color.Bold.Sprint("Property: "))
	b.WriteString(color.Yellow.Sprintf("%s\n", v.PropertyName))
	b.WriteString(color.Bold.Sprint("Message:  "))
	b.WriteString(color.Red.Sprintf("%s\n", v.Message))
	b.WriteString(color.Bold.Sprint("Trace:    "))
	b.WriteString(fmt.Sprintf("%s\n", v.TraceID))
	b.WriteString(color.Bold.Sprint("Hash:     "))
	b.WriteString(fmt.Sprintf("%s\n", v.Hash))

	if v.Step != nil {
		b.WriteString("\n")
		b.WriteString(color.Gray.Sprint(lightRule))
		b.WriteString("\n")
		b.WriteString(color.Cyan.Sprint("Violating Step:"))
		b.WriteString("\n")
		b.WriteString(color.Gray.Sprint(lightRule))
		b.WriteString("\n")
		writeStep(&b, *v.Step)
	}

	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")
	return b.String()
}

// indentWriter prefixes every line written through it.
type indentWriter struct {
	w           io.Writer
	indent      string
	atLineStart bool
}

func (iw *indentWriter) Write(p []byte) (n int, err error) {
	total := 0
	for len(p) > 0 {
		if iw.atLineStart {
			if _, err := io.WriteString(iw.w, iw.indent); err != nil {
				return total, err
			}
			iw.atLineStart = false
		}
		idx := 0
		for idx < len(p) && p[idx] != '\n' {
			idx++
		}
		if idx < len(p) {
			idx++
			iw.atLineStart = true
		}
		written, err := iw.w.Write(p[:idx])
		total += written
		if err != nil {
			return total, err
		}
		p = p[idx:]
	}
	return total, nil
}

func FormatAllViolations(violations []PropertyViolation) string {
	if len(violations) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")
	b.WriteString(color.Red.Sprintf("PROPERTY VIOLATIONS FOUND: %d\n", len(violations)))
	b.WriteString(color.Gray.Sprint(heavyRule))
	b.WriteString("\n")

	for i, v := range violations {
		b.WriteString(color.Yellow.Sprintf("\nViolation #%d:\n", i+1))
		b.WriteString(FormatPropertyViolation(v))
	}
	return b.String()
}

func FormatStatistics(stats CheckStatistics) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("=== Scenario check statistics ==="))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Scenarios: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.Scenarios))
	b.WriteString(color.Bold.Sprint("Passed: "))
	b.WriteString(color.Green.Sprintf("%d\n", stats.Passed))
	b.WriteString(color.Bold.Sprint("Failed: "))
	if stats.Failed > 0 {
		b.WriteString(color.Red.Sprintf("%d\n", stats.Failed))
	} else {
		b.WriteString(fmt.Sprintf("%d\n", stats.Failed))
	}
	if stats.Skipped > 0 {
		b.WriteString(color.Bold.Sprint("Skipped: "))
		b.WriteString(color.Yellow.Sprintf("%d\n", stats.Skipped))
	}
	b.WriteString(color.Bold.Sprint("Steps analyzed: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.TotalSteps))

	b.WriteString(color.Bold.Sprint("Property violations found: "))
	if stats.ViolationCount > 0 {
		b.WriteString(color.Red.Sprintf("%d\n", stats.ViolationCount))
	} else {
		b.WriteString(color.Green.Sprintf("%d\n", stats.ViolationCount))
	}
	b.WriteString(color.Bold.Sprint("Elapsed: "))
	b.WriteString(fmt.Sprintf("%s\n", stats.Elapsed.Round(time.Millisecond)))
	return b.String()
}
