package client

import (
	"fmt"
)

// Datasource types understood by the engine.
const (
	TypeJSON       = "json"
	TypeXML20      = "xml_20"
	TypeXML10      = "xml_10"
	TypeOData      = "odata"
	TypeSalesforce = "salesforce"
	TypeSQL        = "sql"
	TypeDataset    = "dataset"
)

// Template is the submission body for documents, metrics and tag trees.
type Template struct {
	OutputFormat string       `json:"OutputFormat,omitempty"`
	Format       string       `json:"Format"`
	Data         []byte       `json:"Data"`
	TrackErrors  int          `json:"TrackErrors"`
	Datasources  []DataSource `json:"Datasources"`
	Parameters   []Parameter  `json:"Parameters"`
	Properties   []Property   `json:"Properties"`
	Callback     string       `json:"Callback,omitempty"`
}

// DataSource is one datasource payload. Which fields are set depends on Type.
type DataSource struct {
	Name string `json:"Name"`
	Type string `json:"Type"`

	// Data carries file content; ConnectionString a URL or connection string.
	Data             []byte `json:"Data,omitempty"`
	ConnectionString string `json:"ConnectionString,omitempty"`
	SchemaData       []byte `json:"SchemaData,omitempty"`
	ClassName        string `json:"ClassName,omitempty"`
	Encoding         string `json:"Encoding,omitempty"`
	Dataset          string `json:"Dataset,omitempty"`

	Username string `json:"Username,omitempty"`
	Password string `json:"Password,omitempty"`
	PodData  []byte `json:"PodData,omitempty"`
	Restful  bool   `json:"Restful,omitempty"`
}

// Parameter is a template variable. Value is a string, int64, float64,
// time.Time or a []any of those.
type Parameter struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Property is a report property such as report.locale.
type Property struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// Issue is a problem the engine found while generating.
type Issue struct {
	Type    string `json:"Type,omitempty"`
	Message string `json:"Message"`
}

// Document is a generated report. Data is set for single-payload output;
// Pages holds one entry per page for raster output.
type Document struct {
	Guid          string   `json:"Guid"`
	Data          []byte   `json:"Data,omitempty"`
	Pages         [][]byte `json:"Pages,omitempty"`
	NumberOfPages int      `json:"NumberOfPages"`
	Errors        []Issue  `json:"Errors,omitempty"`
}

// Metrics describes what a template uses.
type Metrics struct {
	Guid        string   `json:"Guid"`
	Datasources []string `json:"Datasources,omitempty"`
	Tags        []string `json:"Tags,omitempty"`
	Vars        []string `json:"Vars,omitempty"`
	Errors      []Issue  `json:"Errors,omitempty"`
}

// TagTree is the tag structure of a template as XML.
type TagTree struct {
	Guid   string  `json:"Guid"`
	Xml    []byte  `json:"Xml,omitempty"`
	Errors []Issue `json:"Errors,omitempty"`
}

// VersionInfo is returned by GET v2/version.
type VersionInfo struct {
	EngineVersion  string `json:"EngineVersion"`
	ServiceVersion string `json:"ServiceVersion"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("engine %s, service %s", v.EngineVersion, v.ServiceVersion)
}

type guidResponse struct {
	Guid string `json:"Guid"`
}
