package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
	"github.com/finsight/analytics-engine/pkg/apperrors"
	"github.com/finsight/analytics-engine/pkg/models"
)

func newTestReader() *datasource.MockSchemaReader {
	return &datasource.MockSchemaReader{
		ListTablesFunc: func(ctx context.Context) ([]datasource.TableRef, error) {
			return []datasource.TableRef{
				{SchemaName: "dbo", TableName: "Financial"},
				{SchemaName: "dbo", TableName: "SalesOrders"},
			}, nil
		},
		ListColumnsFunc: func(ctx context.Context, table datasource.TableRef) ([]datasource.ColumnMeta, error) {
			return []datasource.ColumnMeta{
				{Name: "Client", DataType: "nvarchar", Nullable: true},
				{Name: "Revenue", DataType: "decimal", Nullable: false},
			}, nil
		},
	}
}

func TestSchemaCacheServesFreshSnapshot(t *testing.T) {
	reader := newTestReader()
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	snapshot, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 2)
	assert.Equal(t, "[dbo].[Financial]", snapshot.Tables[0].QualifiedName)
	assert.Equal(t, "[dbo].[SalesOrders]", snapshot.Tables[1].QualifiedName)
	assert.Equal(t, 1, reader.ListTablesCalls)

	// Second call within the TTL serves the cached snapshot.
	again, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, snapshot, again)
	assert.Equal(t, 1, reader.ListTablesCalls)
}

func TestSchemaCacheRefreshesAfterTTL(t *testing.T) {
	reader := newTestReader()
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	current := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reader.ListTablesCalls)

	current = current.Add(2 * time.Hour)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reader.ListTablesCalls)
}

func TestSchemaCacheDropsFailedTable(t *testing.T) {
	reader := newTestReader()
	reader.ListColumnsFunc = func(ctx context.Context, table datasource.TableRef) ([]datasource.ColumnMeta, error) {
		if table.TableName == "SalesOrders" {
			return nil, errors.New("permission denied")
		}
		return []datasource.ColumnMeta{{Name: "Client", DataType: "nvarchar", Nullable: true}}, nil
	}
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	snapshot, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 1)
	assert.Equal(t, "Financial", snapshot.Tables[0].TableName)
}

func TestSchemaCacheServesStaleOnRefreshFailure(t *testing.T) {
	reader := newTestReader()
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	current := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	snapshot, err := cache.Get(context.Background())
	require.NoError(t, err)

	reader.ListTablesFunc = func(ctx context.Context) ([]datasource.TableRef, error) {
		return nil, errors.New("connection reset")
	}
	current = current.Add(2 * time.Hour)

	stale, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, snapshot, stale)
}

func TestSchemaCacheErrorsWithoutPriorSnapshot(t *testing.T) {
	reader := newTestReader()
	reader.ListTablesFunc = func(ctx context.Context) ([]datasource.TableRef, error) {
		return nil, errors.New("connection reset")
	}
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSchemaUnavailable)
}

func TestSchemaCacheErrorsOnEmptyDatabase(t *testing.T) {
	reader := newTestReader()
	reader.ListTablesFunc = func(ctx context.Context) ([]datasource.TableRef, error) {
		return []datasource.TableRef{}, nil
	}
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSchemaUnavailable)
}

func TestSchemaCacheInvalidate(t *testing.T) {
	reader := newTestReader()
	cache := NewSchemaCache(reader, time.Hour, zap.NewNop())

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reader.ListTablesCalls)

	cache.Invalidate()

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reader.ListTablesCalls)
}

func TestClassifyColumn(t *testing.T) {
	tests := []struct {
		dataType string
		want     models.ColumnClass
	}{
		{"int", models.ColumnNumeric},
		{"DECIMAL", models.ColumnNumeric},
		{"money", models.ColumnNumeric},
		{"nvarchar", models.ColumnText},
		{"varchar", models.ColumnText},
		{"datetime2", models.ColumnDate},
		{"date", models.ColumnDate},
		{"uniqueidentifier", models.ColumnOther},
		{"varbinary", models.ColumnOther},
	}

	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyColumn(tt.dataType))
		})
	}
}
