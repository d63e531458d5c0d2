// Package all registers every storage backend with the storage factory.
package all

import (
	_ "eams/internal/storage/mssql"
	_ "eams/internal/storage/postgres"
	_ "eams/internal/storage/sqlite"
)
