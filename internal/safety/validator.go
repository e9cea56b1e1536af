// Package safety decides whether a SQL text may be executed. Only read
// statements pass; anything that could modify data or schema is refused.
package safety

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlrag/sqlrag/internal/dialect"
)

type Class string

const (
	ClassAllowed         Class = ""
	ClassSafetyViolation Class = "safety_violation"
	ClassSyntaxError     Class = "syntax_error"
)

const (
	lexicalReason    = "Safety Alert: Modification operations are not allowed. Only SELECT queries permitted."
	structuralReason = "Safety Violation: AST detected a modification command."
	syntaxPrefix     = "Syntax Error: "
)

// forbiddenKeywords are matched as case-insensitive substrings of the
// fence-stripped text. Identifiers that merely contain a keyword, such as
// update_count, are rejected as well.
var forbiddenKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT"}

var (
	fenceOpen  = regexp.MustCompile("```(?:sql)?")
	fenceClose = regexp.MustCompile("```")
)

type Verdict struct {
	Allowed bool
	Class   Class
	Reason  string
}

func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	if v.Class == ClassSyntaxError {
		return fmt.Errorf("%w: %s", ErrSyntax, v.Reason)
	}
	return fmt.Errorf("%w: %s", ErrSafetyViolation, v.Reason)
}

var (
	ErrSafetyViolation = errors.New("safety violation")
	ErrSyntax          = errors.New("syntax error")
)

// Classifier parses SQL with a backend's grammar. dialect.Dialect
// satisfies it.
type Classifier interface {
	ClassifyStatements(sql string) ([]dialect.StatementKind, error)
}

// Validator is safe for concurrent use when its classifier is.
type Validator struct {
	classifier Classifier
}

func NewValidator(classifier Classifier) *Validator {
	return &Validator{classifier: classifier}
}

// Check runs the lexical layer and then the structural layer. A statement
// the parser cannot read is refused as a syntax error, never allowed.
func (v *Validator) Check(sql string) Verdict {
	stripped := fenceClose.ReplaceAllString(fenceOpen.ReplaceAllString(sql, ""), "")
	if verdict := lexical(stripped); !verdict.Allowed {
		return verdict
	}
	return v.structural(strings.TrimSpace(stripped))
}

func lexical(sql string) Verdict {
	upper := strings.ToUpper(sql)
	for _, keyword := range forbiddenKeywords {
		if strings.Contains(upper, keyword) {
			return Verdict{Class: ClassSafetyViolation, Reason: lexicalReason}
		}
	}
	return Verdict{Allowed: true}
}

// structural refuses every statement that is not a plain read, wherever it
// sits in a multi-statement text.
func (v *Validator) structural(sql string) Verdict {
	if strings.Trim(sql, "; \t\r\n") == "" {
		return Verdict{Class: ClassSyntaxError, Reason: syntaxPrefix + "empty statement"}
	}

	kinds, err := v.classifier.ClassifyStatements(sql)
	if err != nil {
		return Verdict{Class: ClassSyntaxError, Reason: syntaxPrefix + err.Error()}
	}
	if len(kinds) == 0 {
		return Verdict{Class: ClassSyntaxError, Reason: syntaxPrefix + "empty statement"}
	}
	for _, kind := range kinds {
		if kind != dialect.StatementRead {
			return Verdict{Class: ClassSafetyViolation, Reason: structuralReason}
		}
	}
	return Verdict{Allowed: true}
}
