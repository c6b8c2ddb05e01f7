// Package repositories provides data access for the conversation log.
package repositories

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/apperrors"
	"github.com/finsight/analytics-engine/pkg/database"
	"github.com/finsight/analytics-engine/pkg/models"
)

const (
	// maxPromptPairs bounds the history rendered into prompts.
	maxPromptPairs = 3
	// maxHistoryPairs bounds structured history reads.
	maxHistoryPairs = 15

	// Truncation limits for compressed assistant turns.
	historySQLLimit      = 200
	historyAnalysisLimit = 300
)

// ConversationRepository persists analyzed turns and serves the exact-match
// answer cache on top of the same append-only table.
type ConversationRepository interface {
	// Append stores one analyzed turn. Never idempotent: repeated questions
	// produce repeated rows. Probe questions are silently skipped.
	Append(ctx context.Context, sessionID, question string, result *models.AnalysisResult) error

	// LookupCache returns the most recent stored result matching the
	// normalized question in the session, or apperrors.ErrNotFound.
	LookupCache(ctx context.Context, sessionID, normalizedQuestion string) (*models.AnalysisResult, error)

	// RecentTurns returns up to pairs question/answer pairs, oldest first,
	// with assistant turns compressed for prompt rendering.
	RecentTurns(ctx context.Context, sessionID string, pairs int) ([]models.ConversationTurn, error)

	// Latest returns the newest n stored turns with decoded results,
	// newest first.
	Latest(ctx context.Context, sessionID string, n int) ([]models.HistoryEntry, error)
}

type conversationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *database.DB, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		db:     db,
		logger: logger.Named("conversation_repo"),
	}
}

var _ ConversationRepository = (*conversationRepository)(nil)

// turnContext is the compact context stored alongside each row.
type turnContext struct {
	ResponseType models.ResponseType `json:"response_type"`
	GeneratedSQL string              `json:"generated_sql,omitempty"`
	ResultCount  int                 `json:"result_count"`
}

func (r *conversationRepository) Append(ctx context.Context, sessionID, question string, result *models.AnalysisResult) error {
	if models.IsProbeQuestion(question) {
		return nil
	}

	encodedResponse, err := encodeResult(result)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	encodedContext, err := encodeJSON(turnContext{
		ResponseType: result.ResponseType,
		GeneratedSQL: result.GeneratedSQL,
		ResultCount:  result.ResultCount,
	})
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	query := `
		INSERT INTO chat_history (session_id, "timestamp", conversation_id, question, response, context)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		sessionID, time.Now(), uuid.New(), question, encodedResponse, encodedContext)
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}

	return nil
}

func (r *conversationRepository) LookupCache(ctx context.Context, sessionID, normalizedQuestion string) (*models.AnalysisResult, error) {
	query := `
		SELECT response
		FROM chat_history
		WHERE session_id = $1
		  AND lower(regexp_replace(trim(question), '\s+', ' ', 'g')) = $2
		  AND question NOT IN ($3, $4)
		ORDER BY "timestamp" DESC
		LIMIT 1`

	var encoded string
	err := r.db.QueryRow(ctx, query,
		sessionID, normalizedQuestion, models.ProbeTablesInfo, models.ProbeSchemaInfo).Scan(&encoded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cached answer: %w", err)
	}

	result, err := decodeResult(encoded)
	if err != nil {
		// A corrupt row must not poison the session; treat as a miss.
		r.logger.Warn("Discarding undecodable cached response",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, apperrors.ErrNotFound
	}

	return result, nil
}

func (r *conversationRepository) RecentTurns(ctx context.Context, sessionID string, pairs int) ([]models.ConversationTurn, error) {
	if pairs <= 0 || pairs > maxPromptPairs {
		pairs = maxPromptPairs
	}

	records, err := r.recentRecords(ctx, sessionID, pairs)
	if err != nil {
		return nil, err
	}

	turns := make([]models.ConversationTurn, 0, len(records)*2)
	for _, rec := range records {
		result, err := decodeResult(rec.Response)
		if err != nil {
			r.logger.Warn("Skipping undecodable history row",
				zap.String("session_id", sessionID),
				zap.Error(err))
			continue
		}

		turns = append(turns,
			models.ConversationTurn{
				Role:      models.ChatRoleUser,
				Content:   rec.Question,
				Timestamp: rec.Timestamp,
			},
			models.ConversationTurn{
				Role:      models.ChatRoleAssistant,
				Content:   compressAssistantTurn(result),
				Timestamp: rec.Timestamp,
			},
		)
	}

	return turns, nil
}

func (r *conversationRepository) Latest(ctx context.Context, sessionID string, n int) ([]models.HistoryEntry, error) {
	if n <= 0 || n > maxHistoryPairs {
		n = maxHistoryPairs
	}

	query := `
		SELECT "timestamp", question, response
		FROM chat_history
		WHERE session_id = $1
		  AND question NOT IN ($2, $3)
		ORDER BY "timestamp" DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query,
		sessionID, models.ProbeTablesInfo, models.ProbeSchemaInfo, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var encoded string
		if err := rows.Scan(&entry.Timestamp, &entry.Question, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		result, err := decodeResult(encoded)
		if err != nil {
			r.logger.Warn("Skipping undecodable history row",
				zap.String("session_id", sessionID),
				zap.Error(err))
			continue
		}
		entry.Response = result
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return entries, nil
}

// recentRecords returns the newest pairs rows reordered oldest first.
// Response stays base64-encoded; callers decode per row.
func (r *conversationRepository) recentRecords(ctx context.Context, sessionID string, pairs int) ([]models.ConversationRecord, error) {
	query := `
		SELECT session_id, "timestamp", conversation_id, question, response, context
		FROM chat_history
		WHERE session_id = $1
		  AND question NOT IN ($2, $3)
		  AND question <> ''
		ORDER BY "timestamp" DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query,
		sessionID, models.ProbeTablesInfo, models.ProbeSchemaInfo, pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent turns: %w", err)
	}
	defer rows.Close()

	var records []models.ConversationRecord
	for rows.Next() {
		var rec models.ConversationRecord
		if err := rows.Scan(&rec.SessionID, &rec.Timestamp, &rec.ConversationID, &rec.Question, &rec.Response, &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}

	// Newest-first from the query; prompts want oldest-first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// compressAssistantTurn renders a stored result as a short assistant message
// that keeps the SQL and analysis context without flooding the prompt.
func compressAssistantTurn(result *models.AnalysisResult) string {
	content := fmt.Sprintf("I found %d records. ", result.ResultCount)
	if result.GeneratedSQL != "" {
		content += fmt.Sprintf("I used this query: %s... ", truncate(result.GeneratedSQL, historySQLLimit))
	}
	content += fmt.Sprintf("Analysis: %s...", truncate(result.Analysis, historyAnalysisLimit))
	return content
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func encodeResult(result *models.AnalysisResult) (string, error) {
	return encodeJSON(result)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeResult(encoded string) (*models.AnalysisResult, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid response JSON: %w", err)
	}
	return &result, nil
}
