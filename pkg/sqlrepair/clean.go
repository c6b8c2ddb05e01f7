// Package sqlrepair turns free-form SQL text extracted from model output
// into a structurally valid SELECT statement, or rejects it. It fixes a
// known defect class (comment corruption, keyword spacing, incomplete
// GROUP BY) without parsing SQL into an AST.
package sqlrepair

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// spacingFixes are applied in order. The corpus of model output shows
// recurring keyword-gluing defects (GROUP BYDATEPART, GROUP BY[) and
// aggregate predicates misplaced in WHERE instead of HAVING.
var spacingFixes = [][2]string{
	{"GROUP BY GROUP BY", "GROUP BY"},
	{"GROUP BY", "GROUP BY "},
	{"ORDER BY", "ORDER BY "},
	{"GROUP  BY", "GROUP BY "},
	{"ORDER  BY", "ORDER BY "},
	{"GROUP BY[", "GROUP BY ["},
	{"ORDER BY[", "ORDER BY ["},
	{"GROUP BYDATEPART", "GROUP BY DATEPART"},
	{"ORDER BYDATEPART", "ORDER BY DATEPART"},
	{"WHERE SUM(", "HAVING SUM("},
	{"WHERE COUNT(", "HAVING COUNT("},
	{"WHERE AVG(", "HAVING AVG("},
}

var clauseKeywords = []string{
	"FROM", "WHERE", "JOIN", "LEFT", "RIGHT", "INNER", "ON",
	"GROUP", "HAVING", "ORDER", "AND", "OR",
	"CASE", "WHEN", "THEN", "ELSE", "END",
}

var sqlSignalChars = "[].,()=<>!'\""

var danglingKeywords = []string{
	"FROM", "SELECT", "WHERE", "AND", "OR", "JOIN", "ON", "GROUP BY",
}

// Clean repairs raw SQL text into a single validated SELECT statement.
// It returns the empty string when the input cannot be shaped into
// something structurally sound. Clean is idempotent: cleaning its own
// non-empty output yields the same text.
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	sql := stripCodeFence(strings.TrimSpace(raw))
	sql = StripComments(sql)

	for _, fix := range spacingFixes {
		sql = strings.ReplaceAll(sql, fix[0], fix[1])
	}

	sql = reassembleSQLLines(sql)
	sql = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(sql), ";"), ",")

	// A comment can survive line joining when the marker spanned lines.
	sql = StripComments(sql)

	sql = strings.ReplaceAll(sql, "GROUP BYDATEPART", "GROUP BY DATEPART")
	sql = strings.ReplaceAll(sql, "ORDER BYDATEPART", "ORDER BY DATEPART")
	sql = strings.ReplaceAll(sql, "GROUP BY BY", "GROUP BY")
	sql = strings.ReplaceAll(sql, "ORDER BY BY", "ORDER BY")

	sql = strings.TrimSpace(whitespaceRun.ReplaceAllString(sql, " "))
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(sql, ";"), ","))

	if !isStructurallyValid(sql) {
		return ""
	}
	return sql
}

// stripCodeFence drops a surrounding fenced code block if present,
// keeping only the lines between the markers.
func stripCodeFence(sql string) string {
	if !strings.HasPrefix(sql, "```") {
		return sql
	}
	lines := strings.Split(sql, "\n")
	end := len(lines)
	for i := 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// reassembleSQLLines keeps only lines that look like SQL, starting from the
// first SELECT. The block stops at a second top-level SELECT or at a line
// with no SQL signal.
func reassembleSQLLines(sql string) string {
	var kept []string
	inSelect := false

	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		if !inSelect {
			if strings.HasPrefix(upper, "SELECT") {
				inSelect = true
				kept = []string{line}
			}
			continue
		}

		if strings.HasPrefix(upper, "SELECT") {
			break
		}
		if containsClauseKeyword(upper) || strings.ContainsAny(line, sqlSignalChars) {
			kept = append(kept, line)
			continue
		}
		break
	}

	return strings.Join(kept, " ")
}

func containsClauseKeyword(upperLine string) bool {
	for _, kw := range clauseKeywords {
		if strings.Contains(upperLine, kw) {
			return true
		}
	}
	return false
}

// isStructurallyValid applies the final accept/reject rules: the statement
// must be a SELECT with a FROM, free of known corruption markers, and must
// not trail off mid-clause.
func isStructurallyValid(sql string) bool {
	if sql == "" {
		return false
	}
	upper := strings.ToUpper(sql)

	if !strings.HasPrefix(upper, "SELECT") || !strings.Contains(upper, "FROM") {
		return false
	}

	for _, broken := range []string{"FROM FROM", ", FROM", "SELECT FROM", "WHERE FROM"} {
		if strings.Contains(upper, broken) {
			return false
		}
	}

	for _, kw := range danglingKeywords {
		if strings.HasSuffix(upper, kw) {
			return false
		}
	}

	return true
}
