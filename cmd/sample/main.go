// Command sample walks every engine endpoint once: version, then a document,
// its metrics and its tag tree for the same template, then deletes all three.
//
//	sample --template Manufacturing.docx --xml Manufacturing.xml --name MANF_DATA_2009
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"docgen/internal/client"
	"docgen/internal/cmdline"
	"docgen/internal/config"
	"docgen/internal/report"
)

type deps struct {
	Stdout io.Writer
	Stderr io.Writer
	// ConfigPath defaults to config.DefaultFile.
	ConfigPath string
}

type options struct {
	url      string
	template string
	xml      string
	name     string
	format   string
	interval time.Duration
	out      string
	tagOut   string
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

	var o options
	cmd := &cobra.Command{
		Use:           "sample",
		Short:         "Exercise the document, metrics and tag tree endpoints once",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSample(cmd.Context(), o, d)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.url, "url", "", "engine base URL (default: baseuri from "+config.DefaultFile+")")
	f.StringVar(&o.template, "template", "Manufacturing.docx", "template file")
	f.StringVar(&o.xml, "xml", "Manufacturing.xml", "XML datasource file (XPath 1.0)")
	f.StringVar(&o.name, "name", "MANF_DATA_2009", "datasource name")
	f.StringVar(&o.format, "format", "pdf", "output format")
	f.DurationVar(&o.interval, "interval", 2*time.Second, "status poll interval")
	f.StringVar(&o.out, "out", "", "write the document here")
	f.StringVar(&o.tagOut, "tagtree-out", "", "write the tag tree XML here")

	cmd.SetArgs(args)
	cmd.SetOut(d.Stdout)
	cmd.SetErr(d.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(d.Stderr, "Error: %+v\n", err)
		return 1
	}
	return 0
}

func runSample(ctx context.Context, o options, d deps) error {
	base := o.url
	if base == "" {
		cfg, err := config.Load(d.ConfigPath)
		if err != nil {
			return err
		}
		base = cfg.BaseURI
	}
	log := logrus.New()
	log.SetOutput(d.Stderr)

	c, err := client.New(base, client.WithLogger(log))
	if err != nil {
		return err
	}
	out := func(format string, a ...any) { fmt.Fprintf(d.Stdout, format+"\n", a...) }

	version, err := c.Version(ctx)
	if err != nil {
		return err
	}
	out("%s", version)

	job := &cmdline.Job{
		TemplateFilename: cmdline.FullPath(o.template),
		ReportFilename:   "sample." + strings.TrimPrefix(o.format, "."),
		Datasources: []cmdline.Datasource{
			&cmdline.XML{Common: cmdline.Common{Name: o.name}, Location: cmdline.FullPath(o.xml), XPath10: true},
		},
	}
	tpl, err := (&report.Runner{}).BuildTemplate(ctx, job)
	if err != nil {
		return err
	}

	poll := client.PollOptions{
		Interval: o.interval,
		OnStatus: func(status int) { out("Not ready, status = %d", status) },
	}
	wait := func(kind client.Kind, guid string) error {
		if err := c.WaitReady(ctx, kind, guid, poll); err != nil {
			return err
		}
		out("Ready, status = %d", client.StatusReady)
		return nil
	}

	docGuid, err := c.PostDocument(ctx, tpl)
	if err != nil {
		return err
	}
	if err := wait(client.KindDocument, docGuid); err != nil {
		return err
	}
	doc, err := c.GetDocument(ctx, docGuid)
	if err != nil {
		return err
	}
	out("Successfully got document with guid %s", doc.Guid)
	out("Number of pages = %d", doc.NumberOfPages)
	if o.out != "" && doc.Data != nil {
		if err := os.WriteFile(o.out, doc.Data, 0o644); err != nil {
			return errors.Wrapf(err, "could not write %s", o.out)
		}
	}

	metGuid, err := c.PostMetrics(ctx, tpl)
	if err != nil {
		return err
	}
	out("Posting metrics with guid %s", metGuid)
	if err := wait(client.KindMetrics, metGuid); err != nil {
		return err
	}
	met, err := c.GetMetrics(ctx, metGuid)
	if err != nil {
		return err
	}
	out("Successfully got metrics with guid %s", met.Guid)
	if len(met.Datasources) > 0 {
		out("Datasources: %s", strings.Join(met.Datasources, ", "))
	}
	if len(met.Tags) > 0 {
		out("Tags: %s", strings.Join(met.Tags, ", "))
	}

	tagGuid, err := c.PostTagTree(ctx, tpl)
	if err != nil {
		return err
	}
	out("Posting tagtree with guid %s", tagGuid)
	if err := wait(client.KindTagTree, tagGuid); err != nil {
		return err
	}
	tree, err := c.GetTagTree(ctx, tagGuid)
	if err != nil {
		return err
	}
	out("Successfully got tag tree with guid %s", tree.Guid)
	if o.tagOut != "" {
		if err := os.WriteFile(o.tagOut, tree.Xml, 0o644); err != nil {
			return errors.Wrapf(err, "could not write %s", o.tagOut)
		}
	}

	for _, del := range []struct {
		kind  client.Kind
		guid  string
		label string
	}{
		{client.KindDocument, docGuid, "DOCUMENT"},
		{client.KindMetrics, metGuid, "METRICS"},
		{client.KindTagTree, tagGuid, "TAGTREE"},
	} {
		if err := c.Delete(ctx, del.kind, del.guid); err != nil {
			return err
		}
		out("DELETED %s WITH GUID: %s", del.label, del.guid)
	}
	return nil
}
