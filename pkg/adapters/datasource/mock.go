package datasource

import "context"

// MockQueryExecutor is a configurable mock for testing query execution.
// Set the function fields to control behavior in tests.
type MockQueryExecutor struct {
	// QueryFunc is called when Query is invoked. If nil, returns an empty
	// result and nil error.
	QueryFunc func(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)

	// Call tracking for verification
	QueryCalls int

	// Queries records every statement passed to Query.
	Queries []string
}

// Query implements QueryExecutor.
func (m *MockQueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error) {
	m.QueryCalls++
	m.Queries = append(m.Queries, sqlQuery)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sqlQuery, limit)
	}
	return &QueryResult{}, nil
}

// Close implements QueryExecutor.
func (m *MockQueryExecutor) Close() error {
	return nil
}

var _ QueryExecutor = (*MockQueryExecutor)(nil)

// MockSchemaReader is a configurable mock for testing schema discovery.
type MockSchemaReader struct {
	ListTablesFunc     func(ctx context.Context) ([]TableRef, error)
	ListColumnsFunc    func(ctx context.Context, table TableRef) ([]ColumnMeta, error)
	ListForeignKeysFunc func(ctx context.Context, table TableRef) ([]string, error)
	SampleRowsFunc     func(ctx context.Context, table TableRef, n int) ([]map[string]any, error)
	DistinctValuesFunc func(ctx context.Context, table TableRef, column string, n int) ([]string, error)

	ListTablesCalls int
}

// ListTables implements SchemaReader.
func (m *MockSchemaReader) ListTables(ctx context.Context) ([]TableRef, error) {
	m.ListTablesCalls++
	if m.ListTablesFunc != nil {
		return m.ListTablesFunc(ctx)
	}
	return nil, nil
}

// ListColumns implements SchemaReader.
func (m *MockSchemaReader) ListColumns(ctx context.Context, table TableRef) ([]ColumnMeta, error) {
	if m.ListColumnsFunc != nil {
		return m.ListColumnsFunc(ctx, table)
	}
	return nil, nil
}

// ListForeignKeys implements SchemaReader.
func (m *MockSchemaReader) ListForeignKeys(ctx context.Context, table TableRef) ([]string, error) {
	if m.ListForeignKeysFunc != nil {
		return m.ListForeignKeysFunc(ctx, table)
	}
	return nil, nil
}

// SampleRows implements SchemaReader.
func (m *MockSchemaReader) SampleRows(ctx context.Context, table TableRef, n int) ([]map[string]any, error) {
	if m.SampleRowsFunc != nil {
		return m.SampleRowsFunc(ctx, table, n)
	}
	return nil, nil
}

// DistinctValues implements SchemaReader.
func (m *MockSchemaReader) DistinctValues(ctx context.Context, table TableRef, column string, n int) ([]string, error) {
	if m.DistinctValuesFunc != nil {
		return m.DistinctValuesFunc(ctx, table, column, n)
	}
	return nil, nil
}

var _ SchemaReader = (*MockSchemaReader)(nil)
