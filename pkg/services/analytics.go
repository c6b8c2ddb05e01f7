package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource"
	"github.com/finsight/analytics-engine/pkg/apperrors"
	"github.com/finsight/analytics-engine/pkg/classifier"
	"github.com/finsight/analytics-engine/pkg/llm"
	"github.com/finsight/analytics-engine/pkg/models"
	"github.com/finsight/analytics-engine/pkg/prompts"
	"github.com/finsight/analytics-engine/pkg/repositories"
	"github.com/finsight/analytics-engine/pkg/session"
	"github.com/finsight/analytics-engine/pkg/sqlrepair"
)

const (
	// queryRowLimit bounds executed queries.
	queryRowLimit = 100
	// sampleDataLimit bounds the rows attached to a data result.
	sampleDataLimit = 5
)

// AnalyticsService drives a question through classification, cache lookup,
// prompting, SQL repair, execution and persistence. One request is one
// goroutine end-to-end; no lock is held across external calls and every
// external call runs exactly once, with no internal timeout or retry.
type AnalyticsService struct {
	repo     repositories.ConversationRepository
	schema   SchemaProvider
	llm      llm.LLMClient
	prompts  *prompts.Builder
	executor datasource.QueryExecutor
	parser   *ResponseParser
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalyticsService wires the orchestrator.
func NewAnalyticsService(
	repo repositories.ConversationRepository,
	schema SchemaProvider,
	llmClient llm.LLMClient,
	promptBuilder *prompts.Builder,
	executor datasource.QueryExecutor,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		repo:     repo,
		schema:   schema,
		llm:      llmClient,
		prompts:  promptBuilder,
		executor: executor,
		parser:   NewResponseParser(),
		logger:   logger.Named("analytics"),
		now:      time.Now,
	}
}

// Analyze answers one question within a session. The returned result is
// always non-nil; pipeline failures surface as error-typed results rather
// than Go errors, so the transport layer never sees a raw internal failure.
func (s *AnalyticsService) Analyze(ctx context.Context, question, sessionID string) (*models.AnalysisResult, error) {
	resolvedSession := session.ResolveID(sessionID, s.now())

	s.logger.Info("Starting analysis",
		zap.String("question", question),
		zap.String("session_id", resolvedSession))

	if models.IsProbeQuestion(question) {
		return s.answerProbe(ctx, question, resolvedSession)
	}

	kind := classifier.Classify(question)

	if kind == classifier.KindGreeting {
		return s.answerGreeting(ctx, question, resolvedSession), nil
	}

	// Contextual questions always process fresh: an identical question
	// string can mean something different after a different previous turn.
	if kind == classifier.KindCacheable {
		normalized := session.NormalizeQuestion(question)
		cached, err := s.repo.LookupCache(ctx, resolvedSession, normalized)
		switch {
		case err == nil:
			s.logger.Info("Cache hit",
				zap.String("question", question),
				zap.String("session_id", resolvedSession))
			cached.SessionID = resolvedSession
			cached.CacheHit = true
			return cached, nil
		case !errors.Is(err, apperrors.ErrNotFound):
			// A store failure degrades to a fresh computation, not an error.
			s.logger.Warn("Cache lookup failed", zap.Error(err))
		}
	}

	history, err := s.repo.RecentTurns(ctx, resolvedSession, 0)
	if err != nil {
		s.logger.Warn("Failed to load conversation history", zap.Error(err))
		history = nil
	}

	snapshot, err := s.schema.Get(ctx)
	if err != nil {
		s.logger.Error("Schema unavailable", zap.Error(err))
		result := s.errorResult(question, resolvedSession,
			"No accessible tables found.",
			"The system couldn't find any tables in your database.",
			"Check database connection and permissions.")
		s.persist(ctx, resolvedSession, question, result)
		return result, nil
	}

	prompt := s.prompts.Build(question, snapshot, history)

	llmResponse, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("LLM call failed", zap.Error(err))
		result := s.errorResult(question, resolvedSession,
			fmt.Sprintf("LLM error: %v", err),
			"Failed to process your question with the AI model.",
			"Try rephrasing your question more clearly.")
		s.persist(ctx, resolvedSession, question, result)
		return result, nil
	}

	parsed := s.parser.Parse(llmResponse)

	if parsed.Conversational {
		result := s.conversationalResult(question, resolvedSession, parsed.Analysis)
		s.persist(ctx, resolvedSession, question, result)
		return result, nil
	}

	result := s.runSQL(ctx, question, resolvedSession, snapshot, parsed)
	s.persist(ctx, resolvedSession, question, result)
	return result, nil
}

// runSQL repairs, validates and executes the extracted SQL, mapping every
// failure mode to its user-facing result shape.
func (s *AnalyticsService) runSQL(ctx context.Context, question, sessionID string, snapshot *models.SchemaSnapshot, parsed *ParsedResponse) *models.AnalysisResult {
	cleaned := sqlrepair.Clean(parsed.SQL)
	if cleaned == "" {
		s.logger.Warn("Generated SQL rejected by repair",
			zap.String("raw_sql", parsed.SQL),
			zap.Error(apperrors.ErrSQLRejected))
		return s.errorResult(question, sessionID,
			"",
			fmt.Sprintf("I couldn't generate SQL for your question: '%s'. This appears to be a data question but I wasn't able to create a valid query.", question),
			"Try rephrasing your question more specifically, such as 'Show me revenue by business unit' or 'Calculate profit margins for last year'")
	}

	fixed, message := sqlrepair.ValidateGroupBy(cleaned)
	s.logger.Debug("GROUP BY validation", zap.String("message", message))

	if err := sqlrepair.Sanitize(fixed); err != nil {
		s.logger.Error("Generated SQL failed sanitization",
			zap.String("sql", fixed), zap.Error(err))
		result := s.errorResult(question, sessionID,
			fmt.Sprintf("Invalid SQL generated: %v", err),
			"The generated query contains operations this system does not allow.",
			"Ask a read-only question about your data.")
		result.GeneratedSQL = fixed
		return result
	}

	if unknown := unknownTables(fixed, snapshot); len(unknown) > 0 {
		tableErr := fmt.Errorf("%w: %s", apperrors.ErrUnknownTable, strings.Join(unknown, ", "))
		s.logger.Error("Generated SQL references unknown tables",
			zap.String("sql", fixed),
			zap.Error(tableErr))
		result := s.errorResult(question, sessionID,
			fmt.Sprintf("Invalid SQL generated: %v", tableErr),
			"I generated SQL that references tables that don't exist in your database.",
			fmt.Sprintf("Let me help you with the available tables. Your database contains: %s",
				strings.Join(firstN(snapshot.TableNames(), 3), ", ")))
		result.GeneratedSQL = fixed
		return result
	}

	queryResult, err := s.executor.Query(ctx, fixed, queryRowLimit)
	if err != nil {
		s.logger.Error("SQL execution failed",
			zap.String("sql", fixed), zap.Error(err))
		result := s.errorResult(question, sessionID,
			fmt.Sprintf("SQL execution error: %v", err),
			"The generated SQL query failed to execute.",
			"There may be an issue with the query syntax or database schema.")
		result.GeneratedSQL = fixed
		return result
	}

	s.logger.Info("SQL execution successful",
		zap.Int("result_count", queryResult.RowCount))

	sample := queryResult.Rows
	if len(sample) > sampleDataLimit {
		sample = sample[:sampleDataLimit]
	}

	return &models.AnalysisResult{
		Question:     question,
		ResponseType: models.ResponseTypeData,
		GeneratedSQL: fixed,
		Analysis:     parsed.Analysis,
		ResultCount:  queryResult.RowCount,
		SampleData:   FormatSampleRows(sample),
		SessionID:    sessionID,
		Timestamp:    s.now(),
	}
}

// answerGreeting still calls the LLM for a natural reply, then persists.
func (s *AnalyticsService) answerGreeting(ctx context.Context, question, sessionID string) *models.AnalysisResult {
	reply, err := s.llm.Complete(ctx, s.prompts.BuildGreeting(question))
	if err != nil {
		s.logger.Warn("Greeting LLM call failed", zap.Error(err))
		reply = "Hello! Ask me an analytical question about your financial data, for example 'Show me revenue by client for 2025'."
	}

	result := s.conversationalResult(question, sessionID, reply)
	s.persist(ctx, sessionID, question, result)
	return result
}

// answerProbe describes the schema snapshot. Probe answers are never cached
// or persisted.
func (s *AnalyticsService) answerProbe(ctx context.Context, question, sessionID string) (*models.AnalysisResult, error) {
	snapshot, err := s.schema.Get(ctx)
	if err != nil {
		return s.errorResult(question, sessionID,
			"No accessible tables found.",
			"The system couldn't find any tables in your database.",
			"Check database connection and permissions."), nil
	}

	var analysis string
	switch question {
	case models.ProbeTablesInfo:
		analysis = fmt.Sprintf("Available tables: %s", strings.Join(snapshot.TableNames(), ", "))
	case models.ProbeSchemaInfo:
		analysis = describeSchema(snapshot)
	}

	return s.conversationalResult(question, sessionID, analysis), nil
}

// History returns the latest stored turns of a session, newest first.
func (s *AnalyticsService) History(ctx context.Context, sessionID string, n int) ([]models.HistoryEntry, error) {
	resolvedSession := session.ResolveID(sessionID, s.now())
	return s.repo.Latest(ctx, resolvedSession, n)
}

// InvalidateSchema clears the schema snapshot.
func (s *AnalyticsService) InvalidateSchema() {
	s.schema.Invalidate()
}

// persist appends the turn best-effort: a storage failure is logged and
// swallowed so the user still gets their result.
func (s *AnalyticsService) persist(ctx context.Context, sessionID, question string, result *models.AnalysisResult) {
	if err := s.repo.Append(ctx, sessionID, question, result); err != nil {
		s.logger.Error("Failed to persist conversation turn",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

func (s *AnalyticsService) conversationalResult(question, sessionID, analysis string) *models.AnalysisResult {
	return &models.AnalysisResult{
		Question:     question,
		ResponseType: models.ResponseTypeConversational,
		Analysis:     analysis,
		SessionID:    sessionID,
		Timestamp:    s.now(),
	}
}

func (s *AnalyticsService) errorResult(question, sessionID, errText, analysis, suggestion string) *models.AnalysisResult {
	return &models.AnalysisResult{
		Question:     question,
		ResponseType: models.ResponseTypeError,
		Error:        errText,
		Analysis:     analysis,
		Suggestion:   suggestion,
		SessionID:    sessionID,
		Timestamp:    s.now(),
	}
}

// tableRefPattern matches bracketed table references after FROM or JOIN.
var tableRefPattern = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+(\[[^\]]+\]\.\[[^\]]+\])`)

// unknownTables returns bracketed table references in the SQL that are not
// present in the snapshot. Unbracketed references are not checked; the
// prompt's schema section always presents bracketed names.
func unknownTables(sql string, snapshot *models.SchemaSnapshot) []string {
	known := make(map[string]struct{}, len(snapshot.Tables))
	for _, name := range snapshot.TableNames() {
		known[strings.ToLower(name)] = struct{}{}
	}

	var unknown []string
	seen := make(map[string]struct{})
	for _, match := range tableRefPattern.FindAllStringSubmatch(sql, -1) {
		ref := match[1]
		key := strings.ToLower(ref)
		if _, ok := known[key]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unknown = append(unknown, ref)
	}
	return unknown
}

func describeSchema(snapshot *models.SchemaSnapshot) string {
	var sb strings.Builder
	sb.WriteString("Database schema:\n")
	for _, table := range snapshot.Tables {
		sb.WriteString(fmt.Sprintf("%s (%d columns)\n", table.QualifiedName, len(table.Columns)))
		for _, col := range table.Columns {
			sb.WriteString(fmt.Sprintf("  %s %s\n", col.Name, col.DataType))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
