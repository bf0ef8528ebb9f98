package report

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"docgen/internal/client"
	"docgen/internal/cmdline"
)

// LocaleProperty is the report property carrying -locale.
const LocaleProperty = "report.locale"

// formatOf returns the lower-cased extension of name without the dot. For
// URLs only the path is considered.
func formatOf(name string) string {
	if isHTTP(name) {
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
		return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func isHTTP(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// BuildTemplate assembles the submission for job: template bytes and
// formats, TrackErrors, locale, parameters and one payload per datasource.
func (r *Runner) BuildTemplate(ctx context.Context, job *cmdline.Job) (*client.Template, error) {
	data, err := r.readTemplate(ctx, job.TemplateFilename)
	if err != nil {
		return nil, err
	}

	tpl := &client.Template{
		OutputFormat: formatOf(job.ReportFilename),
		Format:       formatOf(job.TemplateFilename),
		Data:         data,
		TrackErrors:  job.VerifyFlag,
		Datasources:  []client.DataSource{},
		Parameters:   []client.Parameter{},
		Properties:   []client.Property{},
	}
	if job.Locale != nil {
		tpl.Properties = append(tpl.Properties, client.Property{Name: LocaleProperty, Value: job.Locale.String()})
	}
	for _, p := range job.Params.All() {
		tpl.Parameters = append(tpl.Parameters, client.Parameter{Name: p.Key, Value: p.Value})
	}

	for _, ds := range job.Datasources {
		payload, err := buildDatasource(ds)
		if err != nil {
			return nil, err
		}
		tpl.Datasources = append(tpl.Datasources, payload)
	}
	return tpl, nil
}

func (r *Runner) readTemplate(ctx context.Context, name string) ([]byte, error) {
	if !isHTTP(name) {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read template %s", name)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "template url %s", name)
	}
	hc := r.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch template %s", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("could not fetch template %s: %s", name, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch template %s", name)
	}
	return b, nil
}

// buildDatasource converts one command-line datasource to its engine payload.
// Local file locations are read into Data; anything with a scheme or
// connection-string syntax travels as ConnectionString.
func buildDatasource(ds cmdline.Datasource) (client.DataSource, error) {
	base := ds.Base()
	out := client.DataSource{
		Name:     base.Name,
		Username: base.Username,
		Password: base.Password,
		Restful:  base.Restful,
	}
	if base.PodFilename != "" {
		pod, err := readFile("POD", base.PodFilename)
		if err != nil {
			return client.DataSource{}, err
		}
		out.PodData = pod
	}

	switch d := ds.(type) {
	case *cmdline.JSON:
		out.Type = client.TypeJSON
		if cmdline.IsURL(d.Location) {
			out.ConnectionString = d.Location
			out.Encoding = d.Encoding
			break
		}
		b, err := readFile("JSON datasource", d.Location)
		if err != nil {
			return client.DataSource{}, err
		}
		if b, err = toUTF8(b, d.Encoding); err != nil {
			return client.DataSource{}, errors.Wrapf(err, "JSON datasource %s", d.Location)
		}
		out.Data = b

	case *cmdline.XML:
		out.Type = client.TypeXML20
		if d.XPath10 {
			out.Type = client.TypeXML10
		}
		if cmdline.IsURL(d.Location) {
			out.ConnectionString = d.Location
		} else {
			b, err := readFile("XML datasource", d.Location)
			if err != nil {
				return client.DataSource{}, err
			}
			out.Data = b
		}
		if d.SchemaFilename != "" {
			b, err := readFile("XML schema", d.SchemaFilename)
			if err != nil {
				return client.DataSource{}, err
			}
			out.SchemaData = b
		}

	case *cmdline.OData:
		out.Type = client.TypeOData
		out.ConnectionString = d.URL

	case *cmdline.Salesforce:
		out.Type = client.TypeSalesforce
		out.ConnectionString = d.URL

	case *cmdline.SQL:
		out.Type = client.TypeSQL
		out.ClassName = d.Driver.Classname
		out.ConnectionString = d.ConnectionString

	case *cmdline.Dataset:
		out.Type = client.TypeDataset
		out.Dataset = d.Value

	default:
		return client.DataSource{}, errors.Errorf("unknown datasource type %T", ds)
	}
	return out, nil
}

func readFile(what, name string) ([]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s %s", what, name)
	}
	return b, nil
}

// toUTF8 decodes b from the IANA charset name. Empty and UTF-8 names return
// b unchanged.
func toUTF8(b []byte, charset string) ([]byte, error) {
	if charset == "" {
		return b, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding %s", charset)
	}
	if enc == nil {
		return nil, errors.Errorf("unsupported encoding %s", charset)
	}
	if enc == unicode.UTF8 || enc == encoding.Nop {
		return b, nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", charset)
	}
	return out, nil
}
