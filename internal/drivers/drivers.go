// Package drivers holds the catalog of database connectors the remote engine
// knows about. Each entry maps a command-line flag (for example -sql) to the
// engine-side driver identifier and a sample connection string.
//
// The catalog is built once, sorted by name, and never mutated afterwards, so
// it is safe to read from any goroutine.
package drivers

import (
	"sort"
	"sync"
)

// ProbeKind names the Go database driver used to ping a connector locally.
// ProbeNone means no local driver is wired for that connector.
type ProbeKind string

const (
	ProbeNone      ProbeKind = ""
	ProbePostgres  ProbeKind = "postgres"
	ProbeSQLServer ProbeKind = "sqlserver"
)

// Driver describes one known connector.
type Driver struct {
	// Name is the flag token without the leading dash (ex: "sql").
	Name string
	// Classname is the driver identifier passed to the engine.
	Classname string
	// Example is a sample connection string shown in the usage text.
	Example string
	// Probe selects the local driver used by dbcheck.
	Probe ProbeKind
}

var (
	catalogOnce sync.Once
	catalog     []Driver
)

// All returns the catalog sorted by Name. The returned slice is a copy.
func All() []Driver {
	catalogOnce.Do(func() {
		catalog = build()
	})
	out := make([]Driver, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a driver by exact name.
func Lookup(name string) (Driver, bool) {
	for _, d := range All() {
		if d.Name == name {
			return d, true
		}
	}
	return Driver{}, false
}

func build() []Driver {
	list := []Driver{
		{Name: "db2", Classname: "IBM.Data.DB2", Example: "server=db2.windwardreports.com;database=SAMPLE;Uid=demo;Pwd=demo;"},
		{Name: "mysql", Classname: "MySql.Data.MySqlClient", Example: "server=mysql.windwardreports.com;database=sakila;user id=demo;password=demo;"},
		{Name: "odbc", Classname: "System.Data.Odbc", Example: "Driver={Sql Server};Server=localhost;Database=Northwind;User ID=test;Password=pass;"},
		{Name: "oledb", Classname: "System.Data.OleDb", Example: "Provider=sqloledb;Data Source=localhost;Initial Catalog=Northwind;User ID=test;Password=pass;"},
		{Name: "oracle", Classname: "Oracle.ManagedDataAccess.Client", Example: "Data Source=oracle.windwardreports.com:1521/HR;Persist Security Info=True;Password=HR;User ID=HR"},
		{Name: "sql", Classname: "System.Data.SqlClient", Example: "Data Source=mssql.windwardreports.com;Initial Catalog=Northwind;user=demo;password=demo;", Probe: ProbeSQLServer},
		{Name: "redshift", Classname: "Npgsql", Example: "HOST=localhost;DATABASE=pagila;USER ID=test;PASSWORD=test;", Probe: ProbePostgres},
		{Name: "postgresql", Classname: "Npgsql", Example: "HOST=localhost;DATABASE=pagila;USER ID=test;PASSWORD=test;", Probe: ProbePostgres},
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
