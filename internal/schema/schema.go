// Package schema extracts table definitions from the analytical database and
// turns them into retrievable documents keyed by table identifier.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Document is one table definition. ID is the table identifier and SQL the
// verbatim CREATE TABLE text.
type Document struct {
	ID  string `json:"id"`
	SQL string `json:"sql"`
}

var identQuotes = strings.NewReplacer(`"`, "", "`", "")

var createTablePattern = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([^\s\(]+)`)

// TableIdentifier derives the identifier of a CREATE TABLE statement. The
// first token after CREATE TABLE [IF NOT EXISTS] is used with double quotes
// and backticks removed; statements that do not match fall back to "table_<position>".
func TableIdentifier(sql string, position int) string {
	match := createTablePattern.FindStringSubmatch(sql)
	if match == nil {
		return fmt.Sprintf("table_%d", position)
	}
	id := identQuotes.Replace(match[1])
	if id == "" {
		return fmt.Sprintf("table_%d", position)
	}
	return id
}

// Documents pairs every statement with its identifier, preserving order.
func Documents(stmts []string) []Document {
	docs := make([]Document, 0, len(stmts))
	for i, stmt := range stmts {
		docs = append(docs, Document{ID: TableIdentifier(stmt, i), SQL: stmt})
	}
	return docs
}

func IDs(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids
}
