package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/models"
)

const maxQuestionLength = 2000

// AnalyticsService is the pipeline surface the chat handler depends on.
type AnalyticsService interface {
	Analyze(ctx context.Context, question, sessionID string) (*models.AnalysisResult, error)
	History(ctx context.Context, sessionID string, n int) ([]models.HistoryEntry, error)
	InvalidateSchema()
}

// ChatRequest for POST body.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// HistoryResponse wraps array for frontend compatibility.
type HistoryResponse struct {
	SessionID string                `json:"session_id"`
	History   []models.HistoryEntry `json:"history"`
}

// ChatHandler handles analytics chat HTTP requests.
type ChatHandler struct {
	analytics AnalyticsService
	logger    *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(analytics AnalyticsService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /api/sessions/{sid}/history", h.History)
	mux.HandleFunc("POST /api/schema/refresh", h.RefreshSchema)
}

// Chat handles POST /api/chat requests. The pipeline maps its own failures
// to error-typed results, so this always answers 200 once the request parses.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}
	if len(req.Question) > maxQuestionLength {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is too long")
		return
	}

	result, err := h.analytics.Analyze(r.Context(), req.Question, req.SessionID)
	if err != nil {
		h.logger.Error("Analysis failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "analysis failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// History handles GET /api/sessions/{sid}/history requests.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sid")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	history, err := h.analytics.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("Failed to load history",
			zap.String("session_id", sessionID), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	if history == nil {
		history = []models.HistoryEntry{}
	}

	response := HistoryResponse{SessionID: sessionID, History: history}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode history response", zap.Error(err))
	}
}

// RefreshSchema handles POST /api/schema/refresh requests. The next question
// sees a freshly discovered schema.
func (h *ChatHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	h.analytics.InvalidateSchema()
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		h.logger.Error("Failed to encode refresh response", zap.Error(err))
	}
}
