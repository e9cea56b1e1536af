package dialect

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ClassifyStatements runs the PostgreSQL server grammar through libpg_query.
func (postgresDialect) ClassifyStatements(sql string) ([]StatementKind, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, &SyntaxError{Dialect: PostgreSQL, Msg: err.Error()}
	}

	kinds := make([]StatementKind, 0, len(tree.GetStmts()))
	for _, raw := range tree.GetStmts() {
		kind := postgresStatementKind(raw.GetStmt())
		if kind == StatementRead {
			// Data-modifying CTEs, SELECT INTO and row locks hide below a
			// read at the top level.
			kind = postgresNestedKind(raw.ProtoReflect())
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func postgresStatementKind(node *pg_query.Node) StatementKind {
	switch stmt := node.GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		if stmt.SelectStmt.GetIntoClause() != nil {
			return StatementSchema
		}
		return StatementRead
	case *pg_query.Node_VariableShowStmt:
		return StatementRead
	case *pg_query.Node_InsertStmt, *pg_query.Node_UpdateStmt, *pg_query.Node_DeleteStmt,
		*pg_query.Node_MergeStmt, *pg_query.Node_CopyStmt:
		return StatementWrite
	case *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt, *pg_query.Node_DropStmt,
		*pg_query.Node_AlterTableStmt, *pg_query.Node_TruncateStmt, *pg_query.Node_IndexStmt,
		*pg_query.Node_ViewStmt, *pg_query.Node_RenameStmt, *pg_query.Node_CreateSchemaStmt:
		return StatementSchema
	default:
		return StatementOther
	}
}

func postgresNestedKind(root protoreflect.Message) StatementKind {
	kind := StatementRead
	walkMessages(root, func(m protoreflect.Message) bool {
		switch m.Descriptor().Name() {
		case "InsertStmt", "UpdateStmt", "DeleteStmt", "MergeStmt", "LockingClause":
			kind = StatementWrite
			return false
		case "IntoClause":
			kind = StatementSchema
			return false
		}
		return true
	})
	return kind
}

// walkMessages visits m and every message below it depth-first until visit
// returns false.
func walkMessages(m protoreflect.Message, visit func(protoreflect.Message) bool) bool {
	if !visit(m) {
		return false
	}
	keepGoing := true
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsMap():
		case fd.IsList() && fd.Message() != nil:
			list := v.List()
			for i := 0; i < list.Len() && keepGoing; i++ {
				keepGoing = walkMessages(list.Get(i).Message(), visit)
			}
		case fd.Message() != nil:
			keepGoing = walkMessages(v.Message(), visit)
		}
		return keepGoing
	})
	return keepGoing
}
