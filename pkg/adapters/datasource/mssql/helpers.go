package mssql

import (
	"database/sql"
	"fmt"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
)

// stringTypes are the SQL Server types the driver returns as []byte that we
// surface as Go strings.
var stringTypes = map[string]bool{
	"CHAR":             true,
	"VARCHAR":          true,
	"NCHAR":            true,
	"NVARCHAR":         true,
	"TEXT":             true,
	"NTEXT":            true,
	"UNIQUEIDENTIFIER": true,
	"XML":              true,
	"DECIMAL":          true,
	"NUMERIC":          true,
	"MONEY":            true,
	"SMALLMONEY":       true,
}

func isStringType(databaseType string) bool {
	return stringTypes[databaseType]
}

// scanRows drains a result set into a QueryResult, converting []byte text
// columns to strings.
func scanRows(rows *sql.Rows) (*datasource.QueryResult, error) {
	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			val := values[i]
			if b, ok := val.([]byte); ok && isStringType(columnTypes[i].DatabaseTypeName()) {
				val = string(b)
			}
			rowMap[col] = val
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns:  columnNames,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
