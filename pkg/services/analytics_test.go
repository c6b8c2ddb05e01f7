package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
	"github.com/finsight/analytics-engine/pkg/llm"
	"github.com/finsight/analytics-engine/pkg/models"
	"github.com/finsight/analytics-engine/pkg/prompts"
	"github.com/finsight/analytics-engine/pkg/repositories"
)

type stubSchemaProvider struct {
	snapshot    *models.SchemaSnapshot
	err         error
	invalidated int
}

func (s *stubSchemaProvider) Get(ctx context.Context) (*models.SchemaSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubSchemaProvider) Invalidate() {
	s.invalidated++
}

func testSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		Tables: []models.TableDescriptor{
			{
				QualifiedName: "[dbo].[Financial]",
				SchemaName:    "dbo",
				TableName:     "Financial",
				Columns: []models.ColumnDescriptor{
					{Name: "Client", DataType: "nvarchar", Nullable: true, Class: models.ColumnText},
					{Name: "Revenue", DataType: "decimal", Nullable: false, Class: models.ColumnNumeric},
				},
			},
			{
				QualifiedName: "[dbo].[SalesOrders]",
				SchemaName:    "dbo",
				TableName:     "SalesOrders",
				Columns: []models.ColumnDescriptor{
					{Name: "OrderDate", DataType: "date", Nullable: false, Class: models.ColumnDate},
				},
			},
		},
	}
}

type serviceFixture struct {
	service  *AnalyticsService
	repo     *repositories.MockConversationRepository
	schema   *stubSchemaProvider
	llm      *llm.MockLLMClient
	executor *datasource.MockQueryExecutor
}

func newServiceFixture() *serviceFixture {
	repo := &repositories.MockConversationRepository{}
	schema := &stubSchemaProvider{snapshot: testSnapshot()}
	llmClient := llm.NewMockLLMClient()
	executor := &datasource.MockQueryExecutor{}

	service := NewAnalyticsService(
		repo, schema, llmClient,
		prompts.NewBuilder(zap.NewNop()),
		executor, zap.NewNop())

	return &serviceFixture{
		service:  service,
		repo:     repo,
		schema:   schema,
		llm:      llmClient,
		executor: executor,
	}
}

func TestAnalyzeDataQuestion(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT [Client], SUM([Revenue]) AS [Total] FROM [dbo].[Financial] GROUP BY [Client]\n\nANALYSIS:\nRevenue totals per client.", nil
	}
	f.executor.QueryFunc = func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
		return &datasource.QueryResult{
			Columns:  []string{"Client", "Total"},
			Rows:     []map[string]any{{"Client": "Acme", "Total": 1234.5678}},
			RowCount: 1,
		}, nil
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeData, result.ResponseType)
	assert.Contains(t, result.GeneratedSQL, "GROUP BY [Client]")
	assert.Equal(t, "Revenue totals per client.", result.Analysis)
	assert.Equal(t, 1, result.ResultCount)
	require.Len(t, result.SampleData, 1)
	assert.Equal(t, 1234.57, result.SampleData[0]["Total"])
	assert.Equal(t, "powerbi_test", result.SessionID)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 1, f.repo.AppendCalls)
}

func TestAnalyzeGreeting(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "Hello! Ask me about your financial data.", nil
	}

	result, err := f.service.Analyze(context.Background(), "hello", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeConversational, result.ResponseType)
	assert.Equal(t, "Hello! Ask me about your financial data.", result.Analysis)
	assert.Empty(t, result.GeneratedSQL)
	assert.Equal(t, 1, f.llm.CompleteCalls)
	assert.Equal(t, 0, f.repo.LookupCacheCalls)
	assert.Equal(t, 1, f.repo.AppendCalls)
}

func TestAnalyzeCacheHit(t *testing.T) {
	f := newServiceFixture()
	cached := &models.AnalysisResult{
		Question:     "Show me revenue by client",
		ResponseType: models.ResponseTypeData,
		GeneratedSQL: "SELECT [Client] FROM [dbo].[Financial]",
		ResultCount:  4,
	}
	f.repo.LookupCacheFunc = func(ctx context.Context, sessionID, normalizedQuestion string) (*models.AnalysisResult, error) {
		assert.Equal(t, "show me revenue by client", normalizedQuestion)
		return cached, nil
	}

	result, err := f.service.Analyze(context.Background(), "  Show me  Revenue by client ", "powerbi_test")
	require.NoError(t, err)

	assert.True(t, result.CacheHit)
	assert.Equal(t, "powerbi_test", result.SessionID)
	assert.Equal(t, 4, result.ResultCount)
	assert.Equal(t, 0, f.llm.CompleteCalls)
	assert.Equal(t, 0, f.executor.QueryCalls)
	assert.Equal(t, 0, f.repo.AppendCalls)
}

func TestAnalyzeCacheLookupFailureContinues(t *testing.T) {
	f := newServiceFixture()
	f.repo.LookupCacheFunc = func(ctx context.Context, sessionID, normalizedQuestion string) (*models.AnalysisResult, error) {
		return nil, errors.New("connection refused")
	}
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT [Client] FROM [dbo].[Financial]\n\nANALYSIS:\nclients", nil
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeData, result.ResponseType)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 1, f.repo.LookupCacheCalls)
	assert.Equal(t, 1, f.llm.CompleteCalls)
}

func TestAnalyzeContextualBypassesCache(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nNO_SQL_NEEDED\n\nANALYSIS:\nRevenue dropped because of seasonality.", nil
	}

	result, err := f.service.Analyze(context.Background(), "why did that drop", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeConversational, result.ResponseType)
	assert.Equal(t, 0, f.repo.LookupCacheCalls)
	assert.Equal(t, 1, f.llm.CompleteCalls)
}

func TestAnalyzeSchemaUnavailable(t *testing.T) {
	f := newServiceFixture()
	f.schema.snapshot = nil
	f.schema.err = errors.New("connection refused")

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeError, result.ResponseType)
	assert.Equal(t, "No accessible tables found.", result.Error)
	assert.Equal(t, "Check database connection and permissions.", result.Suggestion)
	assert.Equal(t, 0, f.llm.CompleteCalls)
}

func TestAnalyzeLLMFailure(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("rate limited")
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeError, result.ResponseType)
	assert.Contains(t, result.Error, "LLM error:")
	assert.Equal(t, "Failed to process your question with the AI model.", result.Analysis)
	assert.Equal(t, 0, f.executor.QueryCalls)
	assert.Equal(t, 1, f.repo.AppendCalls)
}

func TestAnalyzeRejectsDangerousSQL(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT * FROM [dbo].[Financial]; DROP TABLE [dbo].[Financial]\n\nANALYSIS:\noops", nil
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeError, result.ResponseType)
	assert.Contains(t, result.Error, "Invalid SQL generated:")
	assert.Equal(t, 0, f.executor.QueryCalls)
}

func TestAnalyzeRejectsUnknownTable(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT * FROM [dbo].[Imaginary]\n\nANALYSIS:\nmade up", nil
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeError, result.ResponseType)
	assert.Contains(t, result.Error, "[dbo].[Imaginary]")
	assert.Contains(t, result.Suggestion, "[dbo].[Financial]")
	assert.Equal(t, 0, f.executor.QueryCalls)
}

func TestAnalyzeExecutionFailure(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT [Missing] FROM [dbo].[Financial]\n\nANALYSIS:\nlooks fine", nil
	}
	f.executor.QueryFunc = func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
		return nil, errors.New("invalid column name 'Missing'")
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeError, result.ResponseType)
	assert.Contains(t, result.Error, "SQL execution error:")
	assert.Equal(t, "The generated SQL query failed to execute.", result.Analysis)
	assert.Equal(t, "There may be an issue with the query syntax or database schema.", result.Suggestion)
}

func TestAnalyzeEmptySQLAfterRepair(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\n\nANALYSIS:\nI couldn't form a query here.", nil
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeError, result.ResponseType)
	assert.Contains(t, result.Analysis, "I couldn't generate SQL for your question")
	assert.Equal(t, 0, f.executor.QueryCalls)
}

func TestAnalyzeProbeNotPersisted(t *testing.T) {
	f := newServiceFixture()

	result, err := f.service.Analyze(context.Background(), models.ProbeTablesInfo, "powerbi_test")
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeConversational, result.ResponseType)
	assert.Contains(t, result.Analysis, "[dbo].[Financial]")
	assert.Contains(t, result.Analysis, "[dbo].[SalesOrders]")
	assert.Equal(t, 0, f.llm.CompleteCalls)
	assert.Equal(t, 0, f.repo.AppendCalls)
}

func TestAnalyzePersistFailureSwallowed(t *testing.T) {
	f := newServiceFixture()
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT [Client] FROM [dbo].[Financial]\n\nANALYSIS:\nclients", nil
	}
	f.repo.AppendFunc = func(ctx context.Context, sessionID, question string, result *models.AnalysisResult) error {
		return errors.New("database is down")
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)
	assert.Equal(t, models.ResponseTypeData, result.ResponseType)
}

func TestAnalyzeHistoryLoadFailureContinues(t *testing.T) {
	f := newServiceFixture()
	f.repo.RecentTurnsFunc = func(ctx context.Context, sessionID string, pairs int) ([]models.ConversationTurn, error) {
		return nil, errors.New("database is down")
	}
	f.llm.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "SQL_QUERY:\nSELECT [Client] FROM [dbo].[Financial]\n\nANALYSIS:\nclients", nil
	}

	result, err := f.service.Analyze(context.Background(), "Show me revenue by client", "powerbi_test")
	require.NoError(t, err)
	assert.Equal(t, models.ResponseTypeData, result.ResponseType)
}

func TestInvalidateSchema(t *testing.T) {
	f := newServiceFixture()
	f.service.InvalidateSchema()
	assert.Equal(t, 1, f.schema.invalidated)
}

func TestUnknownTables(t *testing.T) {
	snapshot := testSnapshot()

	assert.Empty(t, unknownTables("SELECT * FROM [dbo].[Financial] JOIN [dbo].[SalesOrders] ON 1=1", snapshot))
	assert.Equal(t, []string{"[dbo].[Ghost]"}, unknownTables("SELECT * FROM [dbo].[Ghost]", snapshot))
	// Matching is case-insensitive.
	assert.Empty(t, unknownTables("select * from [DBO].[FINANCIAL]", snapshot))
}
