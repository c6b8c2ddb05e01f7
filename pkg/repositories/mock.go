package repositories

import (
	"context"

	"github.com/finsight/analytics-engine/pkg/apperrors"
	"github.com/finsight/analytics-engine/pkg/models"
)

// MockConversationRepository is a configurable mock for testing conversation
// persistence. Set the function fields to control behavior in tests.
type MockConversationRepository struct {
	AppendFunc      func(ctx context.Context, sessionID, question string, result *models.AnalysisResult) error
	LookupCacheFunc func(ctx context.Context, sessionID, normalizedQuestion string) (*models.AnalysisResult, error)
	RecentTurnsFunc func(ctx context.Context, sessionID string, pairs int) ([]models.ConversationTurn, error)
	LatestFunc      func(ctx context.Context, sessionID string, n int) ([]models.HistoryEntry, error)

	// Call tracking for verification
	AppendCalls      int
	LookupCacheCalls int
	RecentTurnsCalls int
	LatestCalls      int

	// AppendedQuestions records every question passed to Append.
	AppendedQuestions []string
}

// Append implements ConversationRepository.
func (m *MockConversationRepository) Append(ctx context.Context, sessionID, question string, result *models.AnalysisResult) error {
	m.AppendCalls++
	m.AppendedQuestions = append(m.AppendedQuestions, question)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, sessionID, question, result)
	}
	return nil
}

// LookupCache implements ConversationRepository.
func (m *MockConversationRepository) LookupCache(ctx context.Context, sessionID, normalizedQuestion string) (*models.AnalysisResult, error) {
	m.LookupCacheCalls++
	if m.LookupCacheFunc != nil {
		return m.LookupCacheFunc(ctx, sessionID, normalizedQuestion)
	}
	return nil, apperrors.ErrNotFound
}

// RecentTurns implements ConversationRepository.
func (m *MockConversationRepository) RecentTurns(ctx context.Context, sessionID string, pairs int) ([]models.ConversationTurn, error) {
	m.RecentTurnsCalls++
	if m.RecentTurnsFunc != nil {
		return m.RecentTurnsFunc(ctx, sessionID, pairs)
	}
	return nil, nil
}

// Latest implements ConversationRepository.
func (m *MockConversationRepository) Latest(ctx context.Context, sessionID string, n int) ([]models.HistoryEntry, error) {
	m.LatestCalls++
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, sessionID, n)
	}
	return nil, nil
}

var _ ConversationRepository = (*MockConversationRepository)(nil)
