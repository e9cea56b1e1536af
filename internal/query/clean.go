package query

import (
	"regexp"
	"strings"
)

var (
	openingFence = regexp.MustCompile("```(?:sql)?\\s*\\n?")
	closingFence = regexp.MustCompile("\\n?```\\s*")
)

// CleanSQL normalizes model output into plain SQL: escaped newlines become
// real ones, markdown code fences are removed and the text is trimmed.
func CleanSQL(raw string) string {
	cleaned := strings.ReplaceAll(raw, `\n`, "\n")
	cleaned = openingFence.ReplaceAllString(cleaned, "")
	cleaned = closingFence.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
