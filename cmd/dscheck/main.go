// Command dscheck takes a runreport command line and pings every SQL
// datasource on it from this machine, without contacting the engine.
//
//	dscheck report.docx out.pdf username=demo password=demo -postgresql "HOST=db;DATABASE=pagila;"
//
// Exit status is 1 when any datasource failed, 0 otherwise. Connectors with
// no Go driver are listed as skipped.
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

	"docgen/internal/cmdline"
	"docgen/internal/dbcheck"
)

const program = "dscheck"

type deps struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Checker *dbcheck.Checker
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{Stdout: os.Stdout, Stderr: os.Stderr, Checker: &dbcheck.Checker{}})
	stop()
	os.Exit(code)
}

var errFailed = errors.New("one or more datasources failed")

func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Checker == nil {
		d.Checker = &dbcheck.Checker{}
	}

	cmd := &cobra.Command{
		Use:                program + " template_file output_file [options]",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.Context(), args, d)
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(d.Stdout)
	cmd.SetErr(d.Stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		return 1
	default:
		fmt.Fprintf(d.Stderr, "Error: %s\n", err)
		return 2
	}
}

func check(ctx context.Context, args []string, d deps) error {
	job, err := cmdline.Parse(args)
	if errors.Is(err, cmdline.ErrUsage) {
		cmdline.Usage(d.Stdout, program)
		return nil
	}
	if err != nil {
		return err
	}

	results := d.Checker.Check(ctx, job)
	if len(results) == 0 {
		fmt.Fprintln(d.Stdout, "no SQL datasources")
		return nil
	}

	tw := tabwriter.NewWriter(d.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDRIVER\tSTATUS\tTIME\tERROR")
	failed := false
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = "(default)"
		}
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
			failed = true
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, r.Driver, r.Status, r.Elapsed.Round(time.Millisecond), msg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed {
		return errFailed
	}
	return nil
}
