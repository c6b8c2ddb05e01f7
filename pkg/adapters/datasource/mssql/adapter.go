// Package mssql implements the datasource interfaces for SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
	"github.com/finsight/analytics-engine/pkg/logging"
)

// Adapter provides query execution and schema discovery on one SQL Server
// database.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	_ datasource.QueryExecutor = (*Adapter)(nil)
	_ datasource.SchemaReader  = (*Adapter)(nil)
)

// NewAdapter opens a pooled connection to SQL Server and verifies it.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("sqlserver", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %s", logging.SanitizeError(err))
	}

	logger.Info("Connected to SQL Server",
		zap.String("dsn", logging.SanitizeConnectionString(cfg.DSN())))

	return &Adapter{
		db:     db,
		logger: logger.Named("mssql"),
	}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Query runs a SELECT statement and returns bounded results. The statement is
// wrapped with TOP so a runaway query can never flood the caller.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := limit
	if effectiveLimit <= 0 {
		effectiveLimit = datasource.DefaultQueryLimit
	}
	if effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}
	queryToRun := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", effectiveLimit, sqlQuery)

	a.logger.Debug("Executing query",
		zap.String("query", logging.SanitizeQuery(sqlQuery)),
		zap.Int("limit", effectiveLimit))

	rows, err := a.db.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}
