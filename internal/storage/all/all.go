// Package all registers every run-history backend with storage.
package all

import (
	_ "docgen/internal/storage/mssql"
	_ "docgen/internal/storage/postgres"
	_ "docgen/internal/storage/sqlite"
)
