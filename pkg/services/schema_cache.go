// Package services contains the analytics pipeline: schema caching, LLM
// response parsing, and the orchestrator that ties classification, prompting,
// SQL repair, execution and persistence together.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
	"github.com/finsight/analytics-engine/pkg/apperrors"
	"github.com/finsight/analytics-engine/pkg/models"
)

const (
	// DefaultSchemaTTL is how long a snapshot is served before refresh.
	DefaultSchemaTTL = time.Hour

	sampleRowCount     = 2
	distinctValueCount = 10
)

// SchemaProvider serves schema snapshots to the orchestrator.
type SchemaProvider interface {
	Get(ctx context.Context) (*models.SchemaSnapshot, error)
	Invalidate()
}

// SchemaCache holds a TTL-bounded snapshot of the datasource schema.
// Refresh fetches per-table metadata concurrently and tolerates individual
// table failures. There is deliberately no single-flight guard: concurrent
// expiries may each refresh, which is safe because refresh is a pure re-read.
type SchemaCache struct {
	reader datasource.SchemaReader
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	snapshot  *models.SchemaSnapshot
	fetchedAt time.Time
}

var _ SchemaProvider = (*SchemaCache)(nil)

// NewSchemaCache creates a schema cache over the given reader. A ttl <= 0
// falls back to DefaultSchemaTTL.
func NewSchemaCache(reader datasource.SchemaReader, ttl time.Duration, logger *zap.Logger) *SchemaCache {
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	return &SchemaCache{
		reader: reader,
		ttl:    ttl,
		logger: logger.Named("schema_cache"),
		now:    time.Now,
	}
}

// Get returns the cached snapshot, refreshing it first when expired. On a
// refresh that fails completely, a prior snapshot is served stale; with no
// prior snapshot the error propagates.
func (c *SchemaCache) Get(ctx context.Context) (*models.SchemaSnapshot, error) {
	c.mu.RLock()
	if c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		snapshot := c.snapshot
		c.mu.RUnlock()
		return snapshot, nil
	}
	c.mu.RUnlock()

	snapshot, err := c.refresh(ctx)
	if err != nil {
		c.mu.RLock()
		stale := c.snapshot
		c.mu.RUnlock()
		if stale != nil {
			c.logger.Warn("Schema refresh failed, serving stale snapshot", zap.Error(err))
			return stale, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return snapshot, nil
}

// Invalidate clears the snapshot so the next Get refreshes.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	c.logger.Info("Schema cache invalidated")
}

type tableFetch struct {
	index int
	table *models.TableDescriptor
	err   error
	ref   datasource.TableRef
}

func (c *SchemaCache) refresh(ctx context.Context) (*models.SchemaSnapshot, error) {
	start := c.now()

	refs, err := c.reader.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %v", apperrors.ErrSchemaUnavailable, err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no accessible tables found", apperrors.ErrSchemaUnavailable)
	}

	results := make(chan tableFetch, len(refs))
	for i, ref := range refs {
		go func(i int, ref datasource.TableRef) {
			table, err := c.fetchTable(ctx, ref)
			results <- tableFetch{index: i, table: table, err: err, ref: ref}
		}(i, ref)
	}

	fetched := make([]*models.TableDescriptor, len(refs))
	for range refs {
		r := <-results
		if r.err != nil {
			// A broken table is dropped, not fatal.
			c.logger.Warn("Skipping table with failed metadata fetch",
				zap.String("schema", r.ref.SchemaName),
				zap.String("table", r.ref.TableName),
				zap.Error(r.err))
			continue
		}
		fetched[r.index] = r.table
	}

	tables := make([]models.TableDescriptor, 0, len(refs))
	for _, t := range fetched {
		if t != nil {
			tables = append(tables, *t)
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: metadata fetch failed for all %d tables",
			apperrors.ErrSchemaUnavailable, len(refs))
	}

	c.logger.Info("Schema snapshot refreshed",
		zap.Int("tables", len(tables)),
		zap.Int("skipped", len(refs)-len(tables)),
		zap.Duration("elapsed", c.now().Sub(start)))

	return &models.SchemaSnapshot{Tables: tables}, nil
}

func (c *SchemaCache) fetchTable(ctx context.Context, ref datasource.TableRef) (*models.TableDescriptor, error) {
	columns, err := c.reader.ListColumns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	table := &models.TableDescriptor{
		QualifiedName: fmt.Sprintf("[%s].[%s]", ref.SchemaName, ref.TableName),
		SchemaName:    ref.SchemaName,
		TableName:     ref.TableName,
		Columns:       make([]models.ColumnDescriptor, 0, len(columns)),
	}
	for _, col := range columns {
		table.Columns = append(table.Columns, models.ColumnDescriptor{
			Name:     col.Name,
			DataType: col.DataType,
			Nullable: col.Nullable,
			Class:    ClassifyColumn(col.DataType),
		})
	}

	// Foreign keys, samples and distinct values are enrichment: failures
	// degrade the snapshot instead of dropping the table.
	if fks, err := c.reader.ListForeignKeys(ctx, ref); err == nil {
		table.ForeignKeys = fks
	} else {
		c.logger.Debug("Foreign key fetch failed",
			zap.String("table", ref.TableName), zap.Error(err))
	}

	if rows, err := c.reader.SampleRows(ctx, ref, sampleRowCount); err == nil {
		table.SampleRows = rows
	} else {
		c.logger.Debug("Sample row fetch failed",
			zap.String("table", ref.TableName), zap.Error(err))
	}

	distinct := make(map[string][]string)
	for _, name := range table.TextColumns() {
		values, err := c.reader.DistinctValues(ctx, ref, name, distinctValueCount)
		if err != nil {
			c.logger.Debug("Distinct value fetch failed",
				zap.String("table", ref.TableName),
				zap.String("column", name),
				zap.Error(err))
			continue
		}
		if len(values) > 0 {
			distinct[name] = values
		}
	}
	if len(distinct) > 0 {
		table.DistinctValues = distinct
	}

	return table, nil
}

// ClassifyColumn buckets a SQL Server data type for prompt hints.
func ClassifyColumn(dataType string) models.ColumnClass {
	switch strings.ToLower(dataType) {
	case "int", "bigint", "smallint", "tinyint", "decimal", "numeric",
		"float", "real", "money", "smallmoney", "bit":
		return models.ColumnNumeric
	case "char", "varchar", "nchar", "nvarchar", "text", "ntext":
		return models.ColumnText
	case "date", "datetime", "datetime2", "smalldatetime", "datetimeoffset", "time":
		return models.ColumnDate
	default:
		return models.ColumnOther
	}
}
