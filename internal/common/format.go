package common

import (
	"fmt"
	"io"
	"strings"
)

// ReportWidth is the separator width used by the console reports.
const ReportWidth = 100

// Report writes a boxed console report. Write errors are ignored; reports
// go to a terminal.
type Report struct {
	w     io.Writer
	width int
}

func NewReport(w io.Writer, width int) *Report {
	if width <= 0 {
		width = ReportWidth
	}
	return &Report{w: w, width: width}
}

func (r *Report) rule(char string) {
	fmt.Fprintln(r.w, strings.Repeat(char, r.width))
}

// Header prints title between two rules.
func (r *Report) Header(title string) {
	fmt.Fprintln(r.w)
	r.rule("=")
	fmt.Fprintln(r.w, title)
	r.rule("=")
}

func (r *Report) Footer(message string) {
	fmt.Fprintln(r.w)
	r.rule("=")
	fmt.Fprintln(r.w, message)
	r.rule("=")
	fmt.Fprintln(r.w)
}

// Section opens a box with a label line and one detail line.
func (r *Report) Section(label, detail string) {
	fmt.Fprintf(r.w, "\n┌─ %s\n", label)
	fmt.Fprintf(r.w, "│  %s\n", detail)
	fmt.Fprintln(r.w, "├"+strings.Repeat("─", r.width-2))
}

// Items prints lines as the body of the current section.
func (r *Report) Items(lines []string) {
	for i, line := range lines {
		prefix := "│  "
		if i == len(lines)-1 {
			prefix = "└  "
		}
		fmt.Fprintln(r.w, prefix+line)
	}
}
