// Package validation checks user-supplied questions and identifiers before
// they reach retrieval, the model or the database.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxQuestionLength = 500

var (
	identifierPattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)onerror=`),
		regexp.MustCompile(`(?i)onclick=`),
	}
)

// InputError reports input rejected before any retrieval or model call.
// Message is safe to show to the caller.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// Question trims q and checks it against maxLength (in characters) and the
// suspicious markup patterns. A non-positive maxLength selects the default.
func Question(q string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxQuestionLength
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", invalid("Question cannot be empty")
	}
	if utf8.RuneCountInString(q) > maxLength {
		return "", invalid("Question too long. Maximum %d characters allowed.", maxLength)
	}
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(q) {
			return "", invalid("Question contains invalid characters or patterns")
		}
	}
	return q, nil
}

// SQLQuery is a coarse pre-check for directly submitted SQL. The safety
// validator remains the authority on what may execute.
func SQLQuery(sql string) (string, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", invalid("SQL query cannot be empty")
	}
	if len(sql) < len("SELECT") {
		return "", invalid("SQL query too short")
	}
	return sql, nil
}

func TableName(name string) (string, error) {
	if name == "" {
		return "", invalid("Table name cannot be empty")
	}
	if !identifierPattern.MatchString(name) {
		return "", invalid("Invalid table name. Use only letters, numbers, and underscores.")
	}
	return name, nil
}

func ColumnName(name string) (string, error) {
	if name == "" {
		return "", invalid("Column name cannot be empty")
	}
	if !identifierPattern.MatchString(name) {
		return "", invalid("Invalid column name. Use only letters, numbers, and underscores.")
	}
	return name, nil
}
