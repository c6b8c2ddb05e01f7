// Package datasource defines the interfaces the analytics core uses to talk
// to the queryable data source. Implementations live in subpackages.
package datasource

import "context"

// MaxQueryLimit bounds the number of rows any query may return.
const MaxQueryLimit = 10000

// DefaultQueryLimit is used when a caller passes a non-positive limit.
const DefaultQueryLimit = 100

// QueryResult holds the bounded result of a SELECT.
type QueryResult struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int
}

// QueryExecutor runs validated SELECT statements against the data source.
type QueryExecutor interface {
	// Query executes sqlQuery with at most limit rows returned. A limit <= 0
	// falls back to DefaultQueryLimit; anything above MaxQueryLimit is capped.
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)

	Close() error
}

// TableRef identifies one discovered table.
type TableRef struct {
	SchemaName string
	TableName  string
}

// ColumnMeta describes one column of a discovered table.
type ColumnMeta struct {
	Name     string
	DataType string
	Nullable bool
}

// SchemaReader discovers table metadata for schema snapshots.
type SchemaReader interface {
	ListTables(ctx context.Context) ([]TableRef, error)
	ListColumns(ctx context.Context, table TableRef) ([]ColumnMeta, error)
	ListForeignKeys(ctx context.Context, table TableRef) ([]string, error)
	SampleRows(ctx context.Context, table TableRef, n int) ([]map[string]any, error)
	DistinctValues(ctx context.Context, table TableRef, column string, n int) ([]string, error)
}
