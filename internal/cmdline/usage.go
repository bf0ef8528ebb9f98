package cmdline

import (
	"fmt"
	"io"

	"docgen/internal/drivers"
)

// Usage writes the full command-line help.
func Usage(w io.Writer, program string) {
	p := func(format string, a ...any) { fmt.Fprintf(w, format+"\n", a...) }

	p("Document generation REST engine client")
	p("usage: %s template_file output_file [-basedir path] [-xml xml_file | -sql connection_string | -oracle connection_string | -oledb oledb_connection_string] [key=value | ...]", program)
	p("       The template file can be a docx, pptx, or xlsx file.")
	p("       The output file extension determines the report type created:")
	p("           output.csv - SpreadSheet CSV file")
	p("           output.docx - Word 2007+ DOCX file")
	p("           output.htm - HTML file with no CSS")
	p("           output.html - HTML file with CSS")
	p("           output.pdf - Acrobat PDF file")
	p("           output.pptx - PowerPoint 2007+ PPTX file")
	p("           output.prn - Printer where \"output\" is the printer name")
	p("           output.rtf - Rich Text Format file")
	p("           output.txt - Ascii text file")
	p("           output.xhtml - XHTML file with CSS")
	p("           output.xlsx - Excel 2007+ XLSX file")
	p("           output.xlsm - Excel 2007+ macro enabled XLSM file")
	p("           output.bmp|gif|jpg|jpeg|png|tif|tiff|svg|eps - one file per page, output_0.ext, output_1.ext, ...")
	p("       -basedir c:\\test - sets the datasource base directory to the specified folder (c:\\test in this example)")
	p("       -launch - will launch the report when complete.")
	p("       -performance:123 - will run the report 123 times.")
	p("            output file is used for directory and extension for reports")
	p("       -threads:4 - will create 4 threads when running -performance.")
	p("       -verify:N - turn on the error handling and verify feature where N is a number: 0 (none), 1 (track errors), 2 (verify), 3 (all).  The list of issues is printed to the standard error.")
	p("       -version=9 - sets the template to the passed version (9 in this example)")
	p("       encoding=UTF-8 (or other) - set BEFORE datasource to specify an encoding")
	p("       locale=en_US - set the locale passed to the engine.")
	p("       pod=pod_filename - set a POD file (datasets)")
	p("       username=user password=pass - set BEFORE datasource for database connections")
	p("       The datasource is identified with a pair of parameters")
	for _, d := range drivers.All() {
		p("           -%s connection_string - ex: %s", d.Name, d.Example)
	}
	p("           -json filename - passes a JSON file as the datasource")
	p("                filename can be a url/filename or a connection string")
	p("           -odata url - passes a url as the datasource accessing it using the OData protocol")
	p("           -sforce - password should be password+securitytoken")
	p("           -xml filename - passes an xml file as the datasource")
	p("                -xml xmlFilename=schema:schemaFilename - passes an xml file and a schema file as the datasource")
	p("                filename can be a filename or a connection string")
	p("           -dom4j filename - passes an xml file as the datasource. Uses XPath 1.0 (dom4J)")
	p("                -dom4j xmlFilename=schema:schemaFilename - passes an xml file and a schema file as the datasource")
	p("                filename can be a filename or a connection string")
	p("           -dataset value - passes a dataset definition through to the engine")
	p("           -rest - marks the previous datasource as accessed through a REST url")
	p("           -[xml|sql|...]:name names this datasource with name")
	p("                     must come BEFORE each -xml, -sql, ... part")
	p("       You can have 0-N key=value pairs that are passed to the datasource Map property")
	p("            If the value starts with I', F', or D' it parses it as an integer, float, or date(yyyy-MM-ddTHH:mm:ss)")
	p("                example  date=\"D'1996-08-29\"")
	p("            If the value is \"text,text,...\" it is passed as a list")
}
