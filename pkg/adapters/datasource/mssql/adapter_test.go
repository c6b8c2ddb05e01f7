package mssql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Adapter{db: db, logger: zap.NewNop()}, mock
}

func TestQueryAppliesDefaultLimit(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP (100) * FROM (SELECT [Client] FROM [dbo].[Financial]) AS _limited")).
		WillReturnRows(sqlmock.NewRows([]string{"Client"}).AddRow("Acme").AddRow("Brown Ltd"))

	result, err := adapter.Query(context.Background(), "SELECT [Client] FROM [dbo].[Financial]", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, []string{"Client"}, result.Columns)
	assert.Equal(t, "Acme", result.Rows[0]["Client"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCapsExcessiveLimit(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP (10000) * FROM (SELECT 1 AS n FROM [t]) AS _limited")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	_, err := adapter.Query(context.Background(), "SELECT 1 AS n FROM [t]", datasource.MaxQueryLimit*5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPropagatesError(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT TOP").WillReturnError(assert.AnError)

	_, err := adapter.Query(context.Background(), "SELECT [x] FROM [t]", 10)
	assert.ErrorContains(t, err, "failed to execute query")
}

func TestListTables(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT(.|\\s)+FROM sys.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
			AddRow("dbo", "Financial").
			AddRow("dbo", "Sales"))

	tables, err := adapter.ListTables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []datasource.TableRef{
		{SchemaName: "dbo", TableName: "Financial"},
		{SchemaName: "dbo", TableName: "Sales"},
	}, tables)
}

func TestListColumns(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT(.|\\s)+FROM sys.columns").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("Client", "nvarchar", 1).
			AddRow("Revenue", "decimal", 0))

	columns, err := adapter.ListColumns(context.Background(), datasource.TableRef{
		SchemaName: "dbo", TableName: "Financial",
	})
	require.NoError(t, err)

	assert.Equal(t, []datasource.ColumnMeta{
		{Name: "Client", DataType: "nvarchar", Nullable: true},
		{Name: "Revenue", DataType: "decimal", Nullable: false},
	}, columns)
}

func TestListForeignKeys(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT(.|\\s)+FROM sys.foreign_keys").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"source_column", "target_schema", "target_table", "target_column"}).
			AddRow("ClientId", "dbo", "Clients", "Id"))

	fks, err := adapter.ListForeignKeys(context.Background(), datasource.TableRef{
		SchemaName: "dbo", TableName: "Financial",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"[ClientId] -> [dbo].[Clients].[Id]"}, fks)
}

func TestSampleRows(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP (2) * FROM [dbo].[Financial]")).
		WillReturnRows(sqlmock.NewRows([]string{"Client", "Revenue"}).
			AddRow("Acme", 120.5))

	rows, err := adapter.SampleRows(context.Background(), datasource.TableRef{
		SchemaName: "dbo", TableName: "Financial",
	}, 2)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0]["Client"])
}

func TestDistinctValues(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT TOP (10) [Client] FROM [dbo].[Financial]")).
		WillReturnRows(sqlmock.NewRows([]string{"Client"}).
			AddRow("Acme").
			AddRow("Brown Ltd"))

	values, err := adapter.DistinctValues(context.Background(), datasource.TableRef{
		SchemaName: "dbo", TableName: "Financial",
	}, "Client", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme", "Brown Ltd"}, values)
}

func TestConfigDSN(t *testing.T) {
	cfg := &Config{
		Server:   "db.example.com",
		Database: "analytics",
		Username: "reader",
		Password: "secret",
	}

	dsn := cfg.DSN()

	assert.Contains(t, dsn, "sqlserver://")
	assert.Contains(t, dsn, "db.example.com:1433")
	assert.Contains(t, dsn, "database=analytics")
}

func TestConfigValidate(t *testing.T) {
	assert.ErrorContains(t, (&Config{}).Validate(), "server is required")
	assert.ErrorContains(t, (&Config{Server: "x"}).Validate(), "database is required")
	assert.ErrorContains(t, (&Config{Server: "x", Database: "y"}).Validate(), "username is required")
	assert.NoError(t, (&Config{Server: "x", Database: "y", Username: "z"}).Validate())
}
