// Package all wires every built-in storage backend into the storage factory.
// Importing it for side effects makes the "postgres", "sqlite" and "mssql"
// kinds available to storage.Open.
package all

import (
	_ "bizsync/internal/storage/mssql"
	_ "bizsync/internal/storage/postgres"
	_ "bizsync/internal/storage/sqlite"
)
