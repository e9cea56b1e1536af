package dialect

import (
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// ClassifyStatements parses with the TiDB MySQL grammar in the server's
// default SQL mode, so double-quoted text is a string literal.
func (mysqlDialect) ClassifyStatements(sql string) ([]StatementKind, error) {
	// A Parser holds lexer state and is not safe for concurrent use.
	stmts, _, err := parser.New().Parse(sql, "", "")
	if err != nil {
		return nil, &SyntaxError{Dialect: MySQL, Msg: err.Error()}
	}

	kinds := make([]StatementKind, 0, len(stmts))
	for _, stmt := range stmts {
		kinds = append(kinds, mysqlStatementKind(stmt))
	}
	return kinds, nil
}

func mysqlStatementKind(stmt ast.StmtNode) StatementKind {
	if sel, ok := stmt.(*ast.SelectStmt); ok && sel.SelectIntoOpt != nil {
		return StatementOther
	}
	if ast.IsReadOnly(stmt, true) {
		return StatementRead
	}
	if _, ok := stmt.(ast.DDLNode); ok {
		return StatementSchema
	}
	switch stmt.(type) {
	case *ast.InsertStmt, *ast.UpdateStmt, *ast.DeleteStmt, *ast.LoadDataStmt, *ast.SelectStmt, *ast.SetOprStmt:
		// Selects land here when they lock rows or assign system variables.
		return StatementWrite
	default:
		return StatementOther
	}
}
