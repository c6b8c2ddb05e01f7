package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
)

// ListTables returns all user tables, excluding system schemas.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableRef, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name
	FROM sys.tables t
	WHERE t.is_ms_shipped = 0
	ORDER BY table_schema, table_name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableRef
	for rows.Next() {
		var table datasource.TableRef
		if err := rows.Scan(&table.SchemaName, &table.TableName); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	return tables, nil
}

// ListColumns returns columns for a specific table in ordinal order.
func (a *Adapter) ListColumns(ctx context.Context, table datasource.TableRef) ([]datasource.ColumnMeta, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", table.SchemaName),
		sql.Named("table", table.TableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMeta
	for rows.Next() {
		var col datasource.ColumnMeta
		var isNullable int

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Nullable = isNullable == 1
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// ListForeignKeys returns the outgoing foreign keys of a table rendered as
// "[column] -> [schema].[table].[column]".
func (a *Adapter) ListForeignKeys(ctx context.Context, table datasource.TableRef) ([]string, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
	    SCHEMA_NAME(rt.schema_id) AS target_schema,
	    OBJECT_NAME(fk.referenced_object_id) AS target_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	WHERE fk.is_ms_shipped = 0
	  AND fk.parent_object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY fk.name, fkc.constraint_column_id
	`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", table.SchemaName),
		sql.Named("table", table.TableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []string
	for rows.Next() {
		var sourceColumn, targetSchema, targetTable, targetColumn string
		if err := rows.Scan(&sourceColumn, &targetSchema, &targetTable, &targetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fmt.Sprintf("[%s] -> [%s].[%s].[%s]",
			sourceColumn, targetSchema, targetTable, targetColumn))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

// SampleRows returns up to n rows from the table.
func (a *Adapter) SampleRows(ctx context.Context, table datasource.TableRef, n int) ([]map[string]any, error) {
	query := fmt.Sprintf("SELECT TOP (%d) * FROM [%s].[%s]", n, table.SchemaName, table.TableName)

	result, err := a.rawQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample rows for [%s].[%s]: %w", table.SchemaName, table.TableName, err)
	}
	return result.Rows, nil
}

// DistinctValues returns up to n distinct non-null values of a text column.
func (a *Adapter) DistinctValues(ctx context.Context, table datasource.TableRef, column string, n int) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT TOP (%d) [%s] FROM [%s].[%s] WHERE [%s] IS NOT NULL ORDER BY [%s]",
		n, column, table.SchemaName, table.TableName, column, column)

	result, err := a.rawQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("distinct values for [%s].[%s].[%s]: %w",
			table.SchemaName, table.TableName, column, err)
	}

	values := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if v, ok := row[column]; ok && v != nil {
			values = append(values, fmt.Sprintf("%v", v))
		}
	}
	return values, nil
}

// rawQuery runs a statement as-is, without the TOP wrapper Query applies.
func (a *Adapter) rawQuery(ctx context.Context, query string) (*datasource.QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}
