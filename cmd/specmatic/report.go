package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	"github.com/EmmanuelMendoza/specmatic/pkg/testrunner"
)

const (
	colorReset = "\x1b[0m"
	colorGreen = "\x1b[32m"
	colorRed   = "\x1b[31m"

	maxScenarioWidth = 60
	timestampFormat  = "%Y-%m-%d %H:%M:%S %Z"
)

// useColor reports whether w is a terminal that should get ANSI colors.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paint(s, color string, enabled bool) string {
	if !enabled {
		return s
	}
	return color + s + colorReset
}

// renderReport prints one row per test followed by the failure reports.
func renderReport(w io.Writer, report *testrunner.Report, color bool) {
	fmt.Fprintf(w, "Contract tests started %s\n\n", timefmt.Format(report.Started, timestampFormat))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Contract", "Scenario", "Result", "Status", "Duration"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, o := range report.Outcomes {
		verdict := paint("PASS", colorGreen, color)
		if o.Result == nil || !o.Result.IsSuccess() {
			verdict = paint("FAIL", colorRed, color)
		}
		status := "-"
		if o.Response != nil {
			status = strconv.Itoa(o.Response.Status)
		}
		table.Append([]string{
			o.Feature,
			runewidth.Truncate(o.Scenario, maxScenarioWidth, "..."),
			verdict,
			status,
			o.Duration.Round(time.Millisecond).String(),
		})
	}
	table.Render()

	if failures := report.Results().Failures(); len(failures) > 0 {
		fmt.Fprintln(w)
		for _, f := range failures {
			fmt.Fprintln(w, strings.TrimSpace(f.Report().Text()))
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "Tests run: %d, Passed: %d, Failed: %d, Elapsed: %s\n",
		len(report.Outcomes), report.Passed(), report.Failed(), report.Elapsed.Round(time.Millisecond))
}
