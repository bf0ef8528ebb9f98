package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"docgen/internal/client"
)

// pageExtensions are outputs the engine may return page by page. They are
// never opened before rendering.
var pageExtensions = map[string]bool{
	".prn": true, ".svg": true, ".eps": true, ".bmp": true, ".gif": true,
	".jpg": true, ".png": true, ".tif": true, ".jpeg": true, ".tiff": true,
}

// IsPageOutput reports whether filename's extension denotes a raster or
// printer target.
func IsPageOutput(filename string) bool {
	return pageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// output is where one run writes. file is nil for page outputs.
type output struct {
	path string
	file *os.File
	// prefix is path without its extension; pages go to prefix_<i>.ext.
	prefix string
	ext    string
}

// openOutput resolves the output for one run. In performance mode every run
// gets a fresh name in the report's directory.
func openOutput(reportFilename string, performance bool) (*output, error) {
	ext := filepath.Ext(reportFilename)
	out := &output{
		path:   reportFilename,
		prefix: strings.TrimSuffix(reportFilename, ext),
		ext:    ext,
	}
	dir := filepath.Dir(reportFilename)

	if IsPageOutput(reportFilename) {
		if performance {
			out.prefix = filepath.Join(dir, "rpt_"+uuid.NewString())
			out.path = out.prefix + ext
		}
		return out, nil
	}

	var (
		f   *os.File
		err error
	)
	if performance {
		f, err = os.CreateTemp(dir, "rpt_*"+ext)
	} else {
		f, err = os.Create(reportFilename)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not create report %s", reportFilename)
	}
	out.file = f
	out.path = f.Name()
	out.prefix = strings.TrimSuffix(out.path, ext)
	return out, nil
}

func (o *output) pagePath(i int) string {
	return fmt.Sprintf("%s_%d%s", o.prefix, i, o.ext)
}

// write stores doc. A combined payload goes to the output file; otherwise
// each page is written to its own numbered file. onPage sees each page path.
func (o *output) write(doc *client.Document, onPage func(path string)) error {
	if doc.Data != nil {
		f := o.file
		if f == nil {
			var err error
			if f, err = os.Create(o.path); err != nil {
				return errors.Wrapf(err, "could not create report %s", o.path)
			}
			o.file = f
		}
		if _, err := f.Write(doc.Data); err != nil {
			return errors.Wrapf(err, "could not write report %s", o.path)
		}
		return o.close()
	}

	if err := o.close(); err != nil {
		return err
	}
	for i, page := range doc.Pages {
		name := o.pagePath(i)
		if err := os.WriteFile(name, page, 0o644); err != nil {
			return errors.Wrapf(err, "could not write page %s", name)
		}
		if onPage != nil {
			onPage(name)
		}
	}
	return nil
}

// close is safe to call more than once.
func (o *output) close() error {
	if o.file == nil {
		return nil
	}
	f := o.file
	o.file = nil
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "could not close report %s", o.path)
	}
	return nil
}
