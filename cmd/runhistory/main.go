// Command runhistory lists the most recent report runs recorded by
// runreport in the history store named by history.kind / history.dsn.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"docgen/internal/config"
	"docgen/internal/storage"
	_ "docgen/internal/storage/all"
)

type deps struct {
	Stdout io.Writer
	Stderr io.Writer
	// ConfigPath defaults to config.DefaultFile.
	ConfigPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{Stdout: os.Stdout, Stderr: os.Stderr})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.ConfigPath == "" {
		d.ConfigPath = config.DefaultFile
	}

	var (
		limit      int
		kind       string
		dsn        string
		onlyErrors bool
	)
	cmd := &cobra.Command{
		Use:           "runhistory",
		Short:         "List recent report runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return list(cmd.Context(), d, limit, kind, dsn, onlyErrors)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	f.StringVar(&kind, "kind", "", "history backend (overrides history.kind)")
	f.StringVar(&dsn, "dsn", "", "history DSN (overrides history.dsn)")
	f.BoolVar(&onlyErrors, "errors", false, "show only failed runs")

	cmd.SetArgs(args)
	cmd.SetOut(d.Stdout)
	cmd.SetErr(d.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(d.Stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

func list(ctx context.Context, d deps, limit int, kind, dsn string, onlyErrors bool) error {
	if kind == "" || dsn == "" {
		cfg, err := config.Load(d.ConfigPath)
		if err != nil {
			return err
		}
		if kind == "" {
			kind = cfg.History.Kind
		}
		if dsn == "" {
			dsn = cfg.History.DSN
		}
	}
	if kind == "" {
		return errors.Errorf("no history store configured (registered kinds: %v)", storage.Kinds())
	}

	repo, err := storage.New(ctx, storage.Config{Kind: kind, DSN: dsn})
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.RecentRuns(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "read runs")
	}

	tw := tabwriter.NewWriter(d.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tPAGES\tDURATION\tREPORT\tGUID\tERROR")
	for _, r := range runs {
		if onlyErrors && r.Status != storage.StatusError {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Status, r.Pages, r.Duration, r.Report, r.Guid, r.Error)
	}
	return tw.Flush()
}
