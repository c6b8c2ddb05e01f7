package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finsight/analytics-engine/pkg/models"
)

// financialTriggers promote the financial tables to the head of the schema
// section regardless of lexical overlap.
var financialTriggers = []string{"profit", "p&l", "financial", "revenue"}

var otherFinancialTerms = []string{"sales", "revenue", "balance", "income"}

// rankTables orders and trims the snapshot's tables by relevance to the
// question. Financial-report questions get the financial table first, then up
// to two other finance-named tables, then up to two remaining tables. Other
// questions are matched by token overlap against table and column names, with
// the full list as fallback when nothing overlaps.
func rankTables(question string, tables []models.TableDescriptor) []models.TableDescriptor {
	lower := strings.ToLower(question)

	for _, trigger := range financialTriggers {
		if strings.Contains(lower, trigger) {
			return rankFinancial(tables)
		}
	}

	questionTerms := make(map[string]struct{})
	for _, term := range strings.Fields(lower) {
		if len(term) > 2 {
			questionTerms[term] = struct{}{}
		}
	}

	var relevant []models.TableDescriptor
	for _, table := range tables {
		if overlapsQuestion(questionTerms, &table) {
			relevant = append(relevant, table)
		}
	}
	if len(relevant) == 0 {
		return tables
	}
	return relevant
}

func rankFinancial(tables []models.TableDescriptor) []models.TableDescriptor {
	var financial *models.TableDescriptor
	var otherFinancial []models.TableDescriptor
	var remaining []models.TableDescriptor

	for i := range tables {
		name := strings.ToLower(tables[i].TableName)
		switch {
		case financial == nil && strings.Contains(name, "financial"):
			financial = &tables[i]
		case containsAnyTerm(name, otherFinancialTerms):
			otherFinancial = append(otherFinancial, tables[i])
		default:
			remaining = append(remaining, tables[i])
		}
	}

	var result []models.TableDescriptor
	if financial != nil {
		result = append(result, *financial)
	}
	result = append(result, capTables(otherFinancial, 2)...)
	result = append(result, capTables(remaining, 2)...)
	return result
}

func capTables(tables []models.TableDescriptor, n int) []models.TableDescriptor {
	if len(tables) > n {
		return tables[:n]
	}
	return tables
}

func containsAnyTerm(name string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

func overlapsQuestion(questionTerms map[string]struct{}, table *models.TableDescriptor) bool {
	tableTerms := []string{strings.ToLower(table.TableName)}
	for _, col := range table.Columns {
		fields := strings.Fields(strings.ToLower(col.Name))
		if len(fields) > 0 {
			tableTerms = append(tableTerms, fields[0])
		}
	}

	for _, term := range tableTerms {
		if _, ok := questionTerms[term]; ok {
			return true
		}
	}
	return false
}

// renderSchema renders tables into the prompt's schema section. Sample rows
// and distinct values follow column declaration order so output stays stable.
func renderSchema(tables []models.TableDescriptor) string {
	var sb strings.Builder

	for _, table := range tables {
		sb.WriteString(fmt.Sprintf("Table: %s\n", table.QualifiedName))

		sb.WriteString("  Columns:\n")
		for _, col := range table.Columns {
			nullable := "NOT NULL"
			if col.Nullable {
				nullable = "NULL"
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s (%s)\n", col.Name, col.DataType, nullable, col.Class))
		}

		if len(table.ForeignKeys) > 0 {
			sb.WriteString(fmt.Sprintf("  Foreign keys: %s\n", strings.Join(table.ForeignKeys, "; ")))
		}

		for i, row := range table.SampleRows {
			sb.WriteString(fmt.Sprintf("  Sample row %d: %s\n", i+1, renderRow(row, table.Columns)))
		}

		if len(table.DistinctValues) > 0 {
			sb.WriteString("  Known values:\n")
			for _, col := range table.Columns {
				values, ok := table.DistinctValues[col.Name]
				if !ok || len(values) == 0 {
					continue
				}
				sb.WriteString(fmt.Sprintf("    %s: %s\n", col.Name, strings.Join(values, ", ")))
			}
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// renderRow renders one sample row with values in column order. Columns not
// present in the row map are appended alphabetically so nothing is dropped.
func renderRow(row map[string]any, columns []models.ColumnDescriptor) string {
	var parts []string
	seen := make(map[string]bool, len(row))

	for _, col := range columns {
		if value, ok := row[col.Name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", col.Name, value))
			seen[col.Name] = true
		}
	}

	var extra []string
	for name := range row {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		parts = append(parts, fmt.Sprintf("%s=%v", name, row[name]))
	}

	return strings.Join(parts, ", ")
}
