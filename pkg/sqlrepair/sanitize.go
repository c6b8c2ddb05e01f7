package sqlrepair

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/finsight/analytics-engine/pkg/apperrors"
)

// dangerousKeywords are never allowed in generated SQL, independent of
// structural repair. This is a security boundary: the engine only ever
// reads data.
var dangerousKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE",
	"EXEC", "EXECUTE", "SP_", "XP_", "OPENROWSET", "OPENDATASOURCE",
}

// Sanitize rejects SQL containing DDL/DML/exec keywords or injection
// patterns inside string literals. A nil return means the statement passed
// both checks.
func Sanitize(sql string) error {
	upper := strings.ToUpper(sql)
	for _, kw := range dangerousKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("%w: %s", apperrors.ErrDangerousSQL, kw)
		}
	}

	for _, literal := range stringLiterals(sql) {
		if isSQLi, fingerprint := libinjection.IsSQLi(literal); isSQLi {
			return fmt.Errorf("%w: injection pattern %q in string literal",
				apperrors.ErrDangerousSQL, fingerprint)
		}
	}

	return nil
}

// stringLiterals extracts the contents of single-quoted literals,
// honoring the SQL '' escape.
func stringLiterals(sql string) []string {
	var literals []string
	var current strings.Builder
	inString := false

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if !inString {
			if ch == '\'' {
				inString = true
				current.Reset()
			}
			continue
		}
		if ch == '\'' {
			if i+1 < len(runes) && runes[i+1] == '\'' {
				current.WriteRune('\'')
				i++
				continue
			}
			inString = false
			literals = append(literals, current.String())
			continue
		}
		current.WriteRune(ch)
	}

	return literals
}
