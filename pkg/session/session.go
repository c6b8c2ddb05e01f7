// Package session provides session-id resolution and the question
// normalization used as the conversation cache key.
package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// NewSession is the sentinel a caller sends to request a fresh session id.
const NewSession = "new"

const idPrefix = "powerbi_"

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeQuestion canonicalizes question text for cache lookups:
// lower-cased, surrounding whitespace trimmed, internal whitespace runs
// collapsed to a single space. Idempotent.
func NormalizeQuestion(question string) string {
	question = strings.ToLower(strings.TrimSpace(question))
	return whitespaceRun.ReplaceAllString(question, " ")
}

// GenerateID mints a unique session id for the current day,
// powerbi_<YYYYMMDD>_<millis>.
func GenerateID(now time.Time) string {
	return fmt.Sprintf("%s%s_%d", idPrefix, now.Format("20060102"), now.UnixMilli())
}

// ResolveID maps a requested session id onto an effective one. Ids already in
// the expected format pass through, NewSession mints a fresh id, and anything
// else falls back to the day's shared default session.
func ResolveID(requested string, now time.Time) string {
	if requested == NewSession {
		return GenerateID(now)
	}
	if strings.HasPrefix(requested, idPrefix) {
		return requested
	}
	return fmt.Sprintf("%s%s_default", idPrefix, now.Format("20060102"))
}
