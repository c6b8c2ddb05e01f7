package models

// Reserved probe questions return schema descriptions instead of running the
// analysis pipeline. They are never cached, persisted, or rendered into
// conversation history.
const (
	ProbeTablesInfo = "tables_info"
	ProbeSchemaInfo = "schema_info"
)

// IsProbeQuestion reports whether q is one of the reserved probe questions.
func IsProbeQuestion(q string) bool {
	return q == ProbeTablesInfo || q == ProbeSchemaInfo
}
