// Package sqlsafe decides whether an agent-generated SQL statement may run
// without a human confirming it first.
//
// The check is syntactic only. It is conservative and approximate: keyword
// boundaries are matched on surrounding spaces, so quoted literals can cause
// both false rejections and false acceptances. A read-only database role is
// the real guarantee; this gate only decides when to ask the user.
package sqlsafe

import (
	"regexp"
	"strings"
)

var disallowedKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"EXECUTE",
	"EXEC",
	"CREATE",
	"ALTER",
	"GRANT",
	"REVOKE",
	"TRUNCATE",
	"REPLACE",
}

var blockComment = regexp.MustCompile(`/\*.*\*/`)

// IsQuerySafe reports whether query is a single read-only SELECT statement
// that can be executed unattended. It never alters query; the upper-cased,
// trimmed copy is used for matching only.
func IsQuerySafe(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))

	if !strings.HasPrefix(q, "SELECT") {
		return false
	}

	for _, kw := range disallowedKeywords {
		if strings.Contains(q, " "+kw+" ") || strings.HasPrefix(q, kw+" ") {
			return false
		}
	}

	// A single trailing semicolon is the only one allowed.
	if strings.HasSuffix(q, ";") {
		if strings.Index(q, ";") != len(q)-1 {
			return false
		}
	} else if strings.Contains(q, ";") {
		return false
	}

	if blockComment.MatchString(q) || strings.Contains(q, "--") {
		return false
	}

	// SELECT ... INTO writes data.
	if strings.Contains(q, " INTO ") {
		return false
	}

	return true
}
