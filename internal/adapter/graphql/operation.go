package graphql

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const (
	opQuery        = string(ast.Query)
	opMutation     = string(ast.Mutation)
	opSubscription = string(ast.Subscription)
)

// OperationType reports whether the selected operation of a document is a
// query, mutation or subscription. It returns "" when the document does not
// parse or the operation cannot be selected; execution reports those errors.
func OperationType(query, operationName string) string {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return ""
	}
	op := doc.Operations.ForName(operationName)
	if op == nil {
		return ""
	}
	return string(op.Operation)
}
