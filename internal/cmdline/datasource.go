package cmdline

import (
	"docgen/internal/drivers"
)

// Kind identifies the datasource variant.
type Kind int

const (
	KindJSON Kind = iota + 1
	KindXML10
	KindXML20
	KindOData
	KindSalesforce
	KindSQL
	KindDataset
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "JSON"
	case KindXML10:
		return "XML (XPath 1.0)"
	case KindXML20:
		return "XML (XPath 2.0)"
	case KindOData:
		return "OData"
	case KindSalesforce:
		return "SalesForce"
	case KindSQL:
		return "SQL"
	case KindDataset:
		return "Dataset"
	default:
		return "unknown"
	}
}

// DefaultSalesforceURL is the authority used by -sforce.
const DefaultSalesforceURL = "https://login.salesforce.com"

// Datasource is one datasource passed on the command line. The set of
// implementations is closed: JSON, XML, OData, Salesforce, SQL and Dataset.
type Datasource interface {
	Kind() Kind
	// Base exposes the fields every variant carries.
	Base() *Common
	clone() Datasource
}

// Common holds the fields shared by all datasource variants.
type Common struct {
	// Name tags the datasource in the template. Empty for the default datasource.
	Name        string
	Username    string
	Password    string
	PodFilename string
	// Restful is set by -rest. It is stored and forwarded, nothing more.
	Restful bool
}

func (c *Common) Base() *Common { return c }

// JSON is a JSON file, URL or connection string.
type JSON struct {
	Common
	Location string
	Encoding string
}

func (*JSON) Kind() Kind { return KindJSON }
func (d *JSON) clone() Datasource {
	cp := *d
	return &cp
}

// XML is an XML file or connection string with an optional schema.
type XML struct {
	Common
	Location       string
	SchemaFilename string
	// XPath10 selects the legacy XPath 1.0 (dom4j) engine.
	XPath10 bool
}

func (d *XML) Kind() Kind {
	if d.XPath10 {
		return KindXML10
	}
	return KindXML20
}

func (d *XML) clone() Datasource {
	cp := *d
	return &cp
}

// OData is an OData service URL.
type OData struct {
	Common
	URL string
}

func (*OData) Kind() Kind { return KindOData }
func (d *OData) clone() Datasource {
	cp := *d
	return &cp
}

// Salesforce is a Salesforce login. Password is password+security token.
type Salesforce struct {
	Common
	URL string
}

func (*Salesforce) Kind() Kind { return KindSalesforce }
func (d *Salesforce) clone() Datasource {
	cp := *d
	return &cp
}

// SQL is a database reached through one of the catalog drivers.
type SQL struct {
	Common
	Driver           drivers.Driver
	ConnectionString string
}

func (*SQL) Kind() Kind { return KindSQL }
func (d *SQL) clone() Datasource {
	cp := *d
	return &cp
}

// Dataset is an in-memory dataset descriptor passed through to the engine.
type Dataset struct {
	Common
	Value string
}

func (*Dataset) Kind() Kind { return KindDataset }
func (d *Dataset) clone() Datasource {
	cp := *d
	return &cp
}

var (
	_ Datasource = (*JSON)(nil)
	_ Datasource = (*XML)(nil)
	_ Datasource = (*OData)(nil)
	_ Datasource = (*Salesforce)(nil)
	_ Datasource = (*SQL)(nil)
	_ Datasource = (*Dataset)(nil)
)
