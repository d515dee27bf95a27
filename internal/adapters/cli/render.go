package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/gmpsched/internal/core/constraint"
	"github.com/example/gmpsched/internal/core/workflow"
)

var (
	red     = color.New(color.FgRed)
	yellow  = color.New(color.FgYellow)
	green   = color.New(color.FgGreen)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgHiMagenta)
	bold    = color.New(color.Bold)
)

// TimeLayout is how schedule times are shown.
const TimeLayout = "01-02 15:04"

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
}

func stateBanner(s workflow.State) string {
	return magenta.Sprintf("[%s]", s)
}

func formatMoisture(m *float64) string {
	if m == nil {
		return "-"
	}
	return strconv.FormatFloat(*m, 'f', 1, 64) + "%"
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dh%02dm", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// PrintReport writes a validation report. Blocking findings are red,
// warnings yellow.
func PrintReport(out io.Writer, r constraint.Report) {
	if r.Valid {
		fmt.Fprintf(out, "%s no blocking findings", green.Sprint("✓"))
	} else {
		fmt.Fprintf(out, "%s %d blocking finding(s)", red.Sprint("✗"), len(r.Blocking()))
	}
	if w := len(r.Warnings()); w > 0 {
		fmt.Fprintf(out, ", %d warning(s)", w)
	}
	fmt.Fprintln(out)

	for _, f := range r.Findings {
		tag := yellow.Sprint("WARN ")
		if f.Blocking() {
			tag = red.Sprint("BLOCK")
		}
		fmt.Fprintf(out, "  %s %-22s %s", tag, f.Rule, f.Message)
		if f.OrderID != "" {
			fmt.Fprintf(out, " (order %s)", f.OrderID)
		}
		if f.EquipmentID != "" {
			fmt.Fprintf(out, " (equipment %s)", f.EquipmentID)
		}
		fmt.Fprintln(out)
	}
}
