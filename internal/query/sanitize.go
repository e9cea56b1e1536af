package query

import "strings"

const (
	msgSyntax        = "Invalid SQL syntax. Please check your query."
	msgNoSuchTable   = "Referenced table does not exist in the database."
	msgNoSuchColumn  = "Referenced column does not exist."
	msgAmbiguous     = "Ambiguous column reference. Please specify table name."
	msgTimeout       = "Query took too long to execute. Please simplify your query."
	msgGenericFailed = "An error occurred while processing your request. Please try again."
)

// Rules are checked in order; the first matching keyword wins.
var sanitizeRules = []struct {
	keywords []string
	message  string
}{
	{[]string{"syntax", "near"}, msgSyntax},
	{[]string{"no such table"}, msgNoSuchTable},
	{[]string{"no such column"}, msgNoSuchColumn},
	{[]string{"ambiguous"}, msgAmbiguous},
	{[]string{"timeout"}, msgTimeout},
}

// SanitizeError maps a raw driver error onto a fixed user-safe message so
// that no database internals leak to callers.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	lowered := strings.ToLower(err.Error())
	for _, rule := range sanitizeRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.message
			}
		}
	}
	return msgGenericFailed
}
