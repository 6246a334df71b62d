// Package mssql implements storage.DB for Microsoft SQL Server using
// go-mssqldb. Upserts against this backend are rendered as MERGE statements
// by the writer package.
package mssql

import (
	"context"
	"fmt"

	"bizsync/internal/storage"
	"bizsync/internal/storage/sqldb"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// ValidateDSN fails fast on obvious connection string mistakes.
func ValidateDSN(dsn string) error {
	if _, err := msdsn.Parse(dsn); err != nil {
		return fmt.Errorf("mssql dsn: %w", err)
	}
	return nil
}

// Open connects to SQL Server with a sqlserver:// URL or ADO-style DSN.
func Open(ctx context.Context, dsn string) (*sqldb.DB, error) {
	if err := ValidateDSN(dsn); err != nil {
		return nil, err
	}
	return sqldb.Open(ctx, "sqlserver", dsn, storage.SQLServer)
}

func init() {
	storage.Register(string(storage.SQLServer), func(ctx context.Context, cfg storage.Config) (storage.DB, error) {
		return Open(ctx, cfg.DSN)
	})
}
