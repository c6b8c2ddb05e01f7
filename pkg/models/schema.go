package models

// ColumnClass buckets a column by how it should be used in generated SQL.
type ColumnClass string

const (
	ColumnNumeric ColumnClass = "numeric"
	ColumnText    ColumnClass = "text"
	ColumnDate    ColumnClass = "date"
	ColumnOther   ColumnClass = "other"
)

// ColumnDescriptor describes one column of a discovered table, annotated with
// the aggregation hint rendered into prompts.
type ColumnDescriptor struct {
	Name     string      `json:"name"`
	DataType string      `json:"data_type"`
	Nullable bool        `json:"nullable"`
	Class    ColumnClass `json:"class"`
}

// TableDescriptor describes one table of a schema snapshot.
// QualifiedName is the bracketed form used in generated SQL, e.g.
// "[dbo].[Financial]".
type TableDescriptor struct {
	QualifiedName  string              `json:"table"`
	SchemaName     string              `json:"schema_name"`
	TableName      string              `json:"table_name"`
	Columns        []ColumnDescriptor  `json:"columns"`
	ForeignKeys    []string            `json:"foreign_keys"`
	SampleRows     []map[string]any    `json:"sample_data"`
	DistinctValues map[string][]string `json:"column_values"`
}

// TextColumns returns the names of columns classified as text.
func (t *TableDescriptor) TextColumns() []string {
	var names []string
	for _, c := range t.Columns {
		if c.Class == ColumnText {
			names = append(names, c.Name)
		}
	}
	return names
}

// SchemaSnapshot is an immutable, point-in-time description of the analytics
// datasource. Callers must treat it as read-only; refresh replaces the whole
// snapshot rather than mutating it.
type SchemaSnapshot struct {
	Tables []TableDescriptor `json:"tables"`
}

// TableNames returns the qualified names of all tables in the snapshot.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.QualifiedName
	}
	return names
}
