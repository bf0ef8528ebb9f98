package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen/internal/client"
	"docgen/internal/cmdline"
	"docgen/internal/drivers"
)

func TestBuildDatasource_Variants(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xsd := writeFile(t, dir, "s.xsd", "<xs:schema/>")
	pod := writeFile(t, dir, "a.pod", "POD")
	latin1 := filepath.Join(dir, "l1.json")
	require.NoError(t, writeBytes(latin1, []byte{'"', 0xE9, '"'}))
	sqlDriver, ok := drivers.Lookup("sql")
	require.True(t, ok)

	tests := []struct {
		name string
		in   cmdline.Datasource
		want client.DataSource
	}{
		{
			name: "xml_schema_pod",
			in:   &cmdline.XML{Common: cmdline.Common{Name: "MANF", PodFilename: pod}, Location: writeFile(t, dir, "d.xml", "<a/>"), SchemaFilename: xsd, XPath10: true},
			want: client.DataSource{Name: "MANF", Type: client.TypeXML10, Data: []byte("<a/>"), SchemaData: []byte("<xs:schema/>"), PodData: []byte("POD")},
		},
		{
			name: "xml_url",
			in:   &cmdline.XML{Location: "http://host/data.xml"},
			want: client.DataSource{Type: client.TypeXML20, ConnectionString: "http://host/data.xml"},
		},
		{
			name: "json_transcoded",
			in:   &cmdline.JSON{Location: latin1, Encoding: "ISO-8859-1"},
			want: client.DataSource{Type: client.TypeJSON, Data: []byte("\"é\"")},
		},
		{
			name: "json_url_keeps_encoding",
			in:   &cmdline.JSON{Location: "https://host/d.json", Encoding: "windows-1252"},
			want: client.DataSource{Type: client.TypeJSON, ConnectionString: "https://host/d.json", Encoding: "windows-1252"},
		},
		{
			name: "odata_credentials_rest",
			in:   &cmdline.OData{Common: cmdline.Common{Username: "u", Password: "p", Restful: true}, URL: "http://odata/svc"},
			want: client.DataSource{Type: client.TypeOData, ConnectionString: "http://odata/svc", Username: "u", Password: "p", Restful: true},
		},
		{
			name: "salesforce",
			in:   &cmdline.Salesforce{URL: cmdline.DefaultSalesforceURL},
			want: client.DataSource{Type: client.TypeSalesforce, ConnectionString: cmdline.DefaultSalesforceURL},
		},
		{
			name: "sql",
			in:   &cmdline.SQL{Driver: sqlDriver, ConnectionString: "Data Source=db;"},
			want: client.DataSource{Type: client.TypeSQL, ClassName: "System.Data.SqlClient", ConnectionString: "Data Source=db;"},
		},
		{
			name: "dataset",
			in:   &cmdline.Dataset{Common: cmdline.Common{Name: "ds"}, Value: "select * from x"},
			want: client.DataSource{Name: "ds", Type: client.TypeDataset, Dataset: "select * from x"},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := buildDatasource(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildDatasource_MissingFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "gone.xml")
	_, err := buildDatasource(&cmdline.XML{Location: missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)

	_, err = buildDatasource(&cmdline.JSON{Location: writeFile(t, t.TempDir(), "a.json", "{}"), Encoding: "no-such-charset"})
	assert.Error(t, err)
}

func TestBuildTemplate_LocaleVerifyAndURLTemplate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/t/invoice.xlsx", r.URL.Path)
		_, _ = w.Write([]byte("XL"))
	}))
	t.Cleanup(srv.Close)

	job := &cmdline.Job{
		TemplateFilename: srv.URL + "/t/invoice.xlsx?v=2",
		ReportFilename:   "/tmp/out.HTML",
		Locale:           &cmdline.Locale{Language: "de", Region: "DE"},
		VerifyFlag:       cmdline.VerifyAll,
	}
	tpl, err := (&Runner{}).BuildTemplate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", tpl.Format)
	assert.Equal(t, "html", tpl.OutputFormat)
	assert.Equal(t, []byte("XL"), tpl.Data)
	assert.Equal(t, cmdline.VerifyAll, tpl.TrackErrors)
	assert.Equal(t, []client.Property{{Name: LocaleProperty, Value: "de_DE"}}, tpl.Properties)
	assert.Empty(t, tpl.Datasources)
}

func TestIsPageOutput(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"a.prn", "a.SVG", "b.eps", "c.bmp", "d.gif", "e.jpg", "f.png", "g.tif", "h.jpeg", "i.tiff"} {
		assert.True(t, IsPageOutput(name), name)
	}
	for _, name := range []string{"a.pdf", "a.docx", "a", "a.png.pdf"} {
		assert.False(t, IsPageOutput(name), name)
	}
}

func writeBytes(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
