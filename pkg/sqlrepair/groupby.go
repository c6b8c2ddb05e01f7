package sqlrepair

import (
	"fmt"
	"strings"
)

// aggregateFuncs mark a SELECT column as covered without a GROUP BY entry.
var aggregateFuncs = []string{
	"COUNT(", "SUM(", "AVG(", "MAX(", "MIN(", "STDEV(", "VAR(",
}

// ValidateGroupBy checks GROUP BY completeness and appends any uncovered
// non-aggregate SELECT columns verbatim, in SELECT order. Existing entries
// are never de-duplicated. The returned message is diagnostic only; a
// fixable defect never produces an error.
func ValidateGroupBy(sql string) (string, string) {
	sql = strings.ReplaceAll(sql, "GROUP BYDATEPART", "GROUP BY DATEPART")
	sql = strings.ReplaceAll(sql, "ORDER BYDATEPART", "ORDER BY DATEPART")
	sql = strings.ReplaceAll(sql, "GROUP BY BY", "GROUP BY")

	upper := strings.ToUpper(sql)
	if !strings.Contains(upper, "GROUP BY") {
		return sql, "No GROUP BY clause"
	}

	selectStart := strings.Index(upper, "SELECT")
	fromStart := strings.Index(upper, "FROM")
	groupByStart := strings.Index(upper, "GROUP BY")
	if selectStart == -1 || fromStart == -1 || fromStart < selectStart {
		return sql, "Invalid SQL structure"
	}

	selectPart := strings.TrimSpace(sql[selectStart+len("SELECT") : fromStart])

	// GROUP BY runs until ORDER BY or HAVING, whichever comes first.
	groupByEnd := len(sql)
	if idx := strings.Index(upper[groupByStart:], "ORDER BY"); idx != -1 {
		groupByEnd = min(groupByEnd, groupByStart+idx)
	}
	if idx := strings.Index(upper[groupByStart:], "HAVING"); idx != -1 {
		groupByEnd = min(groupByEnd, groupByStart+idx)
	}
	groupByPart := strings.TrimSpace(sql[groupByStart+len("GROUP BY") : groupByEnd])

	groupByColumns := make([]string, 0)
	for _, col := range splitTopLevel(groupByPart) {
		if col = strings.TrimSpace(col); col != "" {
			groupByColumns = append(groupByColumns, col)
		}
	}

	var missing []string
	for _, col := range nonAggregateColumns(selectPart) {
		if !isCoveredByGroupBy(col.matchExpr, groupByColumns) {
			missing = append(missing, col.verbatim)
		}
	}

	if len(missing) == 0 {
		return sql, "GROUP BY validation passed"
	}

	newGroupBy := strings.Join(missing, ", ")
	if groupByPart != "" {
		newGroupBy = groupByPart + ", " + newGroupBy
	}

	fixed := sql[:groupByStart+len("GROUP BY")] + " " + newGroupBy
	if groupByEnd < len(sql) {
		fixed += " " + strings.TrimSpace(sql[groupByEnd:])
	}

	return fixed, fmt.Sprintf("Auto-fixed GROUP BY: added %s", strings.Join(missing, ", "))
}

// selectColumn holds one SELECT list entry: the text to append on fix and
// the expression (alias stripped) used for coverage matching.
type selectColumn struct {
	verbatim  string
	matchExpr string
}

// nonAggregateColumns splits the SELECT list on top-level commas and drops
// any column using an aggregate function.
func nonAggregateColumns(selectPart string) []selectColumn {
	var cols []selectColumn
	for _, raw := range splitTopLevel(selectPart) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		upper := strings.ToUpper(raw)
		aggregate := false
		for _, fn := range aggregateFuncs {
			if strings.Contains(upper, fn) {
				aggregate = true
				break
			}
		}
		if aggregate {
			continue
		}

		expr := raw
		if asIdx := strings.Index(upper, " AS "); asIdx != -1 {
			expr = strings.TrimSpace(raw[:asIdx])
		}
		cols = append(cols, selectColumn{verbatim: raw, matchExpr: expr})
	}
	return cols
}

// splitTopLevel splits a column list on commas, respecting parentheses.
func splitTopLevel(list string) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, ch := range list {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// isCoveredByGroupBy reports whether a SELECT expression matches any GROUP BY
// entry after normalization (brackets and spaces stripped, case-folded).
// Substring matches count as coverage so that a bare column matches a
// composite expression containing it.
func isCoveredByGroupBy(selectExpr string, groupByColumns []string) bool {
	sel := normalizeExpr(selectExpr)
	for _, grp := range groupByColumns {
		g := normalizeExpr(grp)
		if sel == g || strings.Contains(g, sel) {
			return true
		}
	}
	return false
}

func normalizeExpr(expr string) string {
	expr = strings.ReplaceAll(expr, "[", "")
	expr = strings.ReplaceAll(expr, "]", "")
	expr = strings.ReplaceAll(expr, " ", "")
	return strings.ToUpper(expr)
}
