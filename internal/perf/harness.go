package perf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docgen/internal/cmdline"
)

// RunFunc runs one report for worker against its private copy of the job.
type RunFunc func(ctx context.Context, worker int, job *cmdline.Job) (Counters, error)

// Harness replays a job NumReports times across NumThreads workers.
type Harness struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Run executes the performance run and prints the summary.
//
// Flow:
//   - The output file's directory must exist. If it does not, a message is
//     printed to Stderr and Run returns without running anything.
//   - Each worker gets job.Clone() and claims reports from a shared
//     Coordinator until all are taken or ctx is done.
//   - A worker whose report fails logs the error and stops. The other
//     workers keep going, so fewer than NumReports may complete.
//
// The returned Counters are the sum over all workers.
func (h *Harness) Run(ctx context.Context, job *cmdline.Job, run RunFunc) (Counters, error) {
	stdout := &lockedWriter{w: h.stdout()}
	stderr := h.stderr()
	now := h.Now
	if now == nil {
		now = time.Now
	}
	logger := h.Log
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	dir := filepath.Dir(job.ReportFilename)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		fmt.Fprintf(stderr, "The directory %s does not exist\n", dir)
		return Counters{}, nil
	}

	threads := job.NumThreads
	if threads < 1 {
		threads = 1
	}

	coord := NewCoordinator(job.NumReports)
	perWorker := make([]Counters, threads)

	start := now()
	fmt.Fprintf(stdout, "Start time: %s, %d threads, %d reports\n", start.Format(time.TimeOnly), threads, job.NumReports)

	coord.Start(threads)
	for w := 0; w < threads; w++ {
		go func(w int, mine *cmdline.Job) {
			defer coord.Done()
			for ctx.Err() == nil && coord.Claim() {
				fmt.Fprintf(stdout, "%d.", w)
				c, err := run(ctx, w, mine)
				if err != nil {
					logger.WithError(err).WithField("worker", w).Errorf("report worker stopped: %+v", err)
					return
				}
				perWorker[w] = perWorker[w].Add(c)
			}
		}(w, job.Clone())
	}
	coord.Wait()

	total := Sum(perWorker...)
	fmt.Fprintln(stdout)
	PrintSummary(stdout, start, now(), total, true)
	return total, ctx.Err()
}

func (h *Harness) stdout() io.Writer {
	if h.Stdout != nil {
		return h.Stdout
	}
	return os.Stdout
}

func (h *Harness) stderr() io.Writer {
	if h.Stderr != nil {
		return h.Stderr
	}
	return os.Stderr
}

// lockedWriter serializes progress output from the workers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
