package services

import (
	"strings"
)

const (
	sqlMarker        = "SQL_QUERY:"
	analysisMarker   = "ANALYSIS:"
	noSQLMarker      = "NO_SQL_NEEDED"
	maxTrailAnalysis = 500

	placeholderAnalysis = "SQL query generated"
	extractedAnalysis   = "SQL extracted from response"
)

// ParsedResponse is the outcome of interpreting free-text model output.
// Conversational means no SQL should be attempted.
type ParsedResponse struct {
	SQL            string
	Analysis       string
	Conversational bool
}

// ResponseParser interprets LLM output as an untrusted external format.
// The markers are a convention the model usually follows; every branch below
// is a fallback for observed drift.
type ResponseParser struct{}

func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// Parse applies the ordered fallback: explicit markers, marker without
// analysis, bare SELECT extraction, then conversational text.
func (p *ResponseParser) Parse(text string) *ParsedResponse {
	if strings.Contains(text, noSQLMarker) {
		return conversational(text)
	}

	if strings.Contains(text, sqlMarker) {
		afterSQL := splitAfter(text, sqlMarker)

		if strings.Contains(afterSQL, analysisMarker) {
			sqlPart := strings.TrimSpace(afterSQL[:strings.Index(afterSQL, analysisMarker)])
			analysis := strings.TrimSpace(splitAfter(afterSQL, analysisMarker))
			return &ParsedResponse{SQL: sqlPart, Analysis: analysis}
		}

		return &ParsedResponse{
			SQL:      strings.TrimSpace(afterSQL),
			Analysis: placeholderAnalysis,
		}
	}

	if strings.Contains(strings.ToUpper(text), "SELECT") {
		if parsed := extractSelectBlock(text); parsed != nil {
			return parsed
		}
	}

	return conversational(text)
}

func conversational(text string) *ParsedResponse {
	analysis := text
	if strings.Contains(text, analysisMarker) {
		analysis = splitAfter(text, analysisMarker)
	}
	return &ParsedResponse{
		Analysis:       strings.TrimSpace(analysis),
		Conversational: true,
	}
}

// splitAfter returns everything after the first occurrence of marker.
func splitAfter(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx == -1 {
		return text
	}
	return text[idx+len(marker):]
}

// sqlContinuationKeywords keep a capture block open during line scanning.
var sqlContinuationKeywords = []string{
	"FROM", "WHERE", "GROUP BY", "ORDER BY", "JOIN", "AND", "OR",
}

// extractSelectBlock scans for a SELECT-led block of SQL-looking lines.
// Returns nil when no block can be captured.
func extractSelectBlock(text string) *ParsedResponse {
	lines := strings.Split(text, "\n")
	var sqlLines []string
	inBlock := false
	lastLine := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		if strings.HasPrefix(upper, "SELECT") {
			inBlock = true
			sqlLines = []string{line}
			lastLine = line
			continue
		}
		if !inBlock {
			continue
		}

		if trimmed == "" {
			break
		}
		if strings.HasPrefix(trimmed, "--") {
			continue
		}

		if containsContinuationKeyword(upper) {
			sqlLines = append(sqlLines, line)
			lastLine = line
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			sqlLines = append(sqlLines, line)
			lastLine = line
			break
		}
		break
	}

	if len(sqlLines) == 0 {
		return nil
	}

	sqlText := strings.Join(trimAll(sqlLines), " ")

	analysis := ""
	if end := strings.Index(text, lastLine); end != -1 {
		analysis = strings.TrimSpace(text[end+len(lastLine):])
	}
	if len(analysis) > maxTrailAnalysis {
		analysis = analysis[:maxTrailAnalysis]
	}
	if analysis == "" {
		analysis = extractedAnalysis
	}

	return &ParsedResponse{SQL: sqlText, Analysis: analysis}
}

func containsContinuationKeyword(upperLine string) bool {
	for _, kw := range sqlContinuationKeywords {
		if strings.Contains(upperLine, kw) {
			return true
		}
	}
	return false
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimSpace(line)
	}
	return out
}
