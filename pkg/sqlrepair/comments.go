package sqlrepair

import "strings"

// StripComments removes -- and /* */ comments in a single pass while
// preserving string literals. Comment-like characters inside single or
// double quoted strings are left untouched. Each removed comment is
// replaced with a single space so adjacent tokens stay separated.
func StripComments(sql string) string {
	if sql == "" {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql))

	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	runes := []rune(sql)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch state {
		case stateSingleQuote:
			b.WriteRune(ch)
			if ch == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			b.WriteRune(ch)
			if ch == '"' {
				state = stateNormal
			}
		default:
			switch {
			case ch == '\'':
				state = stateSingleQuote
				b.WriteRune(ch)
			case ch == '"':
				state = stateDoubleQuote
				b.WriteRune(ch)
			case ch == '-' && i+1 < len(runes) && runes[i+1] == '-':
				// Line comment runs to end of line.
				for i < len(runes) && runes[i] != '\n' {
					i++
				}
				b.WriteRune(' ')
			case ch == '/' && i+1 < len(runes) && runes[i+1] == '*':
				// Block comment; an unterminated one swallows the rest.
				i += 2
				for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
					i++
				}
				i++
				b.WriteRune(' ')
			default:
				b.WriteRune(ch)
			}
		}
	}

	return b.String()
}
