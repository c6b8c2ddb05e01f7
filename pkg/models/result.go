package models

import "time"

// ResponseType distinguishes the three terminal shapes of an analysis.
type ResponseType string

const (
	ResponseTypeData           ResponseType = "data"
	ResponseTypeConversational ResponseType = "conversational"
	ResponseTypeError          ResponseType = "error"
)

// AnalysisResult is the immutable outcome of one analyzed question. It is
// what gets persisted to the conversation log and served from the cache.
type AnalysisResult struct {
	Question     string           `json:"question"`
	ResponseType ResponseType     `json:"response_type"`
	GeneratedSQL string           `json:"generated_sql,omitempty"`
	Analysis     string           `json:"analysis,omitempty"`
	ResultCount  int              `json:"result_count"`
	SampleData   []map[string]any `json:"sample_data,omitempty"`
	Error        string           `json:"error,omitempty"`
	Suggestion   string           `json:"suggestion,omitempty"`
	SessionID    string           `json:"session_id"`
	Timestamp    time.Time        `json:"timestamp"`
	CacheHit     bool             `json:"cache_hit,omitempty"`
}
