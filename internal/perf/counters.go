// Package perf runs a job many times across worker goroutines and reports
// throughput.
package perf

import (
	"fmt"
	"io"
	"time"
)

// Counters accumulate timing and page counts for one or more reports.
type Counters struct {
	TimeGenerate time.Duration
	NumReports   int
	NumPages     int
}

// Add returns the field-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		TimeGenerate: c.TimeGenerate + o.TimeGenerate,
		NumReports:   c.NumReports + o.NumReports,
		NumPages:     c.NumPages + o.NumPages,
	}
}

// Sum folds all counters into one.
func Sum(all ...Counters) Counters {
	var total Counters
	for _, c := range all {
		total = total.Add(c)
	}
	return total
}

// FormatDuration renders d as HH:MM:SS.mmm.
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	h := ms / (60 * 60 * 1000)
	ms %= 60 * 60 * 1000
	m := ms / (60 * 1000)
	ms %= 60 * 1000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// PrintSummary writes the end-of-run statistics. multiThreaded adds a note
// that the generate time is totaled across workers.
func PrintSummary(w io.Writer, start, end time.Time, c Counters, multiThreaded bool) {
	elapsed := end.Sub(start)

	fmt.Fprintf(w, "End time: %s\n", end.Format(time.TimeOnly))
	fmt.Fprintf(w, "Elapsed time: %s\n", FormatDuration(elapsed))
	if c.NumReports == 0 {
		fmt.Fprintln(w, "Time per report: n/a")
		fmt.Fprintln(w, "Pages/report: n/a")
	} else {
		fmt.Fprintf(w, "Time per report: %s\n", FormatDuration(elapsed/time.Duration(c.NumReports)))
		fmt.Fprintf(w, "Pages/report: %d\n", c.NumPages/c.NumReports)
	}
	if elapsed <= 0 {
		fmt.Fprintln(w, "Pages/sec: n/a")
	} else {
		fmt.Fprintf(w, "Pages/sec: %.02f\n", float64(c.NumPages)/elapsed.Seconds())
	}
	if multiThreaded {
		fmt.Fprintln(w, "Below values are totaled across all threads (and so add up to more than the elapsed time)")
	}
	fmt.Fprintf(w, "  Generate: %s\n", FormatDuration(c.TimeGenerate))
}
