package perf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen/internal/cmdline"
)

func TestCounters_AddIsAssociativeAndCommutative(t *testing.T) {
	t.Parallel()

	a := Counters{TimeGenerate: 5, NumReports: 1, NumPages: 10}
	b := Counters{TimeGenerate: 3, NumReports: 1, NumPages: 6}
	c := Counters{TimeGenerate: 7, NumReports: 2, NumPages: 1}

	want := Counters{TimeGenerate: 8, NumReports: 2, NumPages: 16}
	assert.Equal(t, want, a.Add(b))
	assert.Equal(t, want, b.Add(a))
	assert.Equal(t, a.Add(b).Add(c), a.Add(b.Add(c)))
	assert.Equal(t, Sum(c, b, a), Sum(a, b, c))
	assert.Equal(t, Counters{}, Sum())
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{7 * time.Millisecond, "00:00:00.007"},
		{time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond, "01:02:03.045"},
		{-time.Second, "00:00:00.000"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatDuration(tc.in), tc.in.String())
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)

	var buf bytes.Buffer
	PrintSummary(&buf, start, end, Counters{TimeGenerate: 3 * time.Second, NumReports: 4, NumPages: 10}, true)
	out := buf.String()
	assert.Contains(t, out, "End time: 10:00:02\n")
	assert.Contains(t, out, "Elapsed time: 00:00:02.000\n")
	assert.Contains(t, out, "Time per report: 00:00:00.500\n")
	assert.Contains(t, out, "Pages/report: 2\n")
	assert.Contains(t, out, "Pages/sec: 5.00\n")
	assert.Contains(t, out, "totaled across all threads")
	assert.Contains(t, out, "  Generate: 00:00:03.000\n")

	buf.Reset()
	PrintSummary(&buf, start, start, Counters{}, false)
	out = buf.String()
	assert.Contains(t, out, "Time per report: n/a")
	assert.Contains(t, out, "Pages/sec: n/a")
	assert.NotContains(t, out, "totaled")
}

func TestCoordinator_ExactlyNClaims(t *testing.T) {
	t.Parallel()

	const n, workers = 1000, 16
	coord := NewCoordinator(n)

	var claimed atomic.Int64
	coord.Start(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer coord.Done()
			for coord.Claim() {
				claimed.Add(1)
			}
		}()
	}
	coord.Wait()

	assert.Equal(t, int64(n), claimed.Load())
	assert.False(t, coord.Claim())
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func perfJob(t *testing.T, reports, threads int) *cmdline.Job {
	t.Helper()
	return &cmdline.Job{
		TemplateFilename: "t.docx",
		ReportFilename:   filepath.Join(t.TempDir(), "out.pdf"),
		NumReports:       reports,
		NumThreads:       threads,
	}
}

func TestHarness_RunsExactlyNReports(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen = map[*cmdline.Job]bool{}
	)
	run := func(ctx context.Context, worker int, job *cmdline.Job) (Counters, error) {
		mu.Lock()
		seen[job] = true
		mu.Unlock()
		return Counters{TimeGenerate: time.Millisecond, NumReports: 1, NumPages: 3}, nil
	}

	job := perfJob(t, 50, 4)
	var out bytes.Buffer
	h := &Harness{Stdout: &out, Stderr: io.Discard, Log: quietLogger()}
	total, err := h.Run(context.Background(), job, run)
	require.NoError(t, err)

	assert.Equal(t, Counters{TimeGenerate: 50 * time.Millisecond, NumReports: 50, NumPages: 150}, total)
	assert.LessOrEqual(t, len(seen), 4)
	assert.False(t, seen[job], "workers must run on clones")
	assert.Contains(t, out.String(), "4 threads, 50 reports")
	lines := strings.Split(out.String(), "\n")
	require.Greater(t, len(lines), 2)
	assert.Equal(t, 50, strings.Count(lines[1], "."), "one progress marker per report")
}

func TestHarness_FailingWorkerDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	run := func(ctx context.Context, worker int, job *cmdline.Job) (Counters, error) {
		calls.Add(1)
		if worker == 0 {
			return Counters{}, errors.New("engine said no")
		}
		time.Sleep(time.Millisecond)
		return Counters{NumReports: 1, NumPages: 1}, nil
	}

	h := &Harness{Stdout: io.Discard, Stderr: io.Discard, Log: quietLogger()}
	total, err := h.Run(context.Background(), perfJob(t, 20, 3), run)
	require.NoError(t, err)

	assert.Equal(t, int64(20), calls.Load())
	assert.GreaterOrEqual(t, total.NumReports, 19)
}

func TestHarness_MissingDirectory(t *testing.T) {
	t.Parallel()

	job := perfJob(t, 5, 2)
	job.ReportFilename = filepath.Join(t.TempDir(), "nope", "out.pdf")

	var stderr bytes.Buffer
	ran := false
	h := &Harness{Stdout: io.Discard, Stderr: &stderr, Log: quietLogger()}
	total, err := h.Run(context.Background(), job, func(context.Context, int, *cmdline.Job) (Counters, error) {
		ran = true
		return Counters{}, nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, Counters{}, total)
	assert.Contains(t, stderr.String(), "does not exist")
}

func TestHarness_ContextCancelStopsClaims(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	run := func(ctx context.Context, worker int, job *cmdline.Job) (Counters, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		return Counters{NumReports: 1}, nil
	}

	h := &Harness{Stdout: io.Discard, Stderr: io.Discard, Log: quietLogger()}
	_, err := h.Run(ctx, perfJob(t, 1000, 1), run)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(3), calls.Load())
}
