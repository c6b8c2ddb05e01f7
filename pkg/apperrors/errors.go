package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrSchemaUnavailable = errors.New("schema metadata unavailable")
	ErrSQLRejected       = errors.New("generated SQL rejected")
	ErrDangerousSQL      = errors.New("dangerous SQL keyword detected")
	ErrUnknownTable      = errors.New("SQL references a table not in the schema")
)
