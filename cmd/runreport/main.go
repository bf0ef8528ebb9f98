// Command runreport generates one report through the document engine, or
// replays it many times across workers to measure throughput.
//
//	runreport template.docx out.pdf -xml data.xml title=Hello
//	runreport template.docx out.pdf -xml data.xml -performance:200 -threads:8
//
// The engine URL comes from windwardreports.properties (baseuri=...) in the
// working directory or DOCGEN_BASEURI. Run with no arguments for the full
// option list.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"docgen/internal/client"
	"docgen/internal/cmdline"
	"docgen/internal/config"
	"docgen/internal/metrics"
	"docgen/internal/metrics/datadog"
	"docgen/internal/metrics/prompush"
	"docgen/internal/perf"
	"docgen/internal/report"
	"docgen/internal/storage"
	_ "docgen/internal/storage/all"
)

const program = "runreport"

type backendCloser interface {
	metrics.Backend
	Close() error
}

type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	// ConfigPath defaults to config.DefaultFile.
	ConfigPath string
	// BackendFactory returns nil, nil when metrics are off.
	BackendFactory func(ctx context.Context, cfg config.Metrics) (backendCloser, error)
	OpenHistory    func(ctx context.Context, cfg config.History) (storage.RunRepository, error)
	Launcher       report.Opener
	Now            func() time.Time
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		BackendFactory: newBackend,
		OpenHistory:    openHistory,
		Launcher:       report.DefaultLauncher(),
		Now:            time.Now,
	})
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ConfigPath == "" {
		d.ConfigPath = config.DefaultFile
	}

	code := 0
	cmd := &cobra.Command{
		Use:                program + " template_file output_file [options]",
		Short:              "Generate a report with the document engine",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), args, d)
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(d.Stdout)
	cmd.SetErr(d.Stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(d.Stderr)
		fmt.Fprintf(d.Stderr, "Error: %s\n", err)
		fmt.Fprintf(d.Stderr, "Stack trace:\n%+v\n", err)
		code = 1
	}
	return code
}

func runReport(ctx context.Context, args []string, d deps) error {
	job, err := cmdline.Parse(args)
	if errors.Is(err, cmdline.ErrUsage) {
		cmdline.Usage(d.Stdout, program)
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load(d.ConfigPath)
	if err != nil {
		return err
	}
	logger := newLogger(d.Stderr, cfg.LogLevel)

	if d.BackendFactory != nil {
		backend, err := d.BackendFactory(ctx, cfg.Metrics)
		if err != nil {
			return errors.Wrap(err, "metrics backend")
		}
		if backend != nil {
			metrics.SetBackend(backend)
			defer func() {
				if err := backend.Close(); err != nil {
					logger.WithError(err).Warn("metrics flush failed")
				}
				metrics.SetBackend(nil)
			}()
		}
	}

	var history storage.RunRepository
	if cfg.History.Kind != "" && d.OpenHistory != nil {
		if history, err = d.OpenHistory(ctx, cfg.History); err != nil {
			return errors.Wrapf(err, "open %s run history", cfg.History.Kind)
		}
		defer history.Close()
	}

	fmt.Fprintf(d.Stdout, "Connecting to URL %s\n", cfg.BaseURI)
	engine, err := client.New(cfg.BaseURI, client.WithTimeout(cfg.HTTPTimeout), client.WithLogger(logger))
	if err != nil {
		return err
	}
	version, err := engine.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.Stdout, "REST server version = %s\n", version)

	runner := &report.Runner{
		Engine:   engine,
		Stdout:   d.Stdout,
		Stderr:   d.Stderr,
		Poll:     client.PollOptions{Interval: cfg.PollInterval, MaxWait: cfg.PollMaxWait},
		Launcher: d.Launcher,
		History:  history,
		Log:      logger,
		Now:      d.Now,
	}

	start := d.Now()
	if !job.IsPerformance() {
		pc, err := runner.Run(ctx, job)
		if err != nil {
			return err
		}
		perf.PrintSummary(d.Stdout, start, d.Now(), pc, false)
		return nil
	}

	h := &perf.Harness{Stdout: d.Stdout, Stderr: d.Stderr, Log: logger, Now: d.Now}
	_, err = h.Run(ctx, job, func(ctx context.Context, worker int, job *cmdline.Job) (perf.Counters, error) {
		return runner.Run(ctx, job)
	})
	return err
}

func newLogger(w io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		l.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

func newBackend(ctx context.Context, cfg config.Metrics) (backendCloser, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "datadog":
		return datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       datadog.ParseTagsCSV(cfg.Tags),
			FlushEvery: cfg.FlushEvery,
		})
	case "pushgateway":
		return prompush.New(prompush.Options{
			URL:      cfg.Pushgateway,
			Job:      cfg.Job,
			Grouping: prompush.ParseGrouping(cfg.Tags),
		})
	default:
		return nil, errors.Errorf("unknown metrics backend %q", cfg.Backend)
	}
}

func openHistory(ctx context.Context, cfg config.History) (storage.RunRepository, error) {
	return storage.New(ctx, storage.Config{Kind: cfg.Kind, DSN: cfg.DSN})
}
