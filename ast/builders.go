// Package ast provides helper functions for building Cypher AST nodes.
package ast

import "time"

// Match creates a MatchClause with the given path patterns.
func Match(patterns ...PathPattern) MatchClause {
	return MatchClause{Patterns: patterns}
}

// OptionalMatch creates an OPTIONAL MATCH clause with the given path patterns.
func OptionalMatch(patterns ...PathPattern) MatchClause {
	return MatchClause{Optional: true, Patterns: patterns}
}

// Return creates a ReturnClause projecting the given expressions.
func Return(items ...Expr) ReturnClause {
	return ReturnClause{Projection: Projection{Items: Items(items...)}}
}

// With creates a WithClause projecting the given expressions.
func With(items ...Expr) WithClause {
	return WithClause{Projection: Projection{Items: Items(items...)}}
}

// Items wraps expressions into unaliased projection items.
func Items(exprs ...Expr) []ProjectionItem {
	items := make([]ProjectionItem, len(exprs))
	for i, e := range exprs {
		items[i] = ProjectionItem{Expr: e}
	}
	return items
}

// As creates an aliased projection item: expr AS alias.
func As(expr Expr, alias string) ProjectionItem {
	return ProjectionItem{Expr: expr, Alias: alias}
}

// Asc creates an ascending ORDER BY key.
func Asc(expr Expr) OrderItem {
	return OrderItem{Expr: expr}
}

// Desc creates a descending ORDER BY key.
func Desc(expr Expr) OrderItem {
	return OrderItem{Expr: expr, Desc: true}
}

// DetachDelete creates a DETACH DELETE clause for the given identifiers.
func DetachDelete(vars ...string) DeleteClause {
	return DeleteClause{Detach: true, Vars: vars}
}

// Delete creates a DELETE clause for the given identifiers.
func Delete(vars ...string) DeleteClause {
	return DeleteClause{Vars: vars}
}

// Create creates a CREATE clause with the given patterns.
func Create(patterns ...PathPattern) CreateClause {
	return CreateClause{Patterns: patterns}
}

// Merge creates a MERGE clause for a single pattern.
func Merge(pattern PathPattern) MergeClause {
	return MergeClause{Pattern: pattern}
}

// Set creates a SET clause from the given assignments.
func Set(items ...SetItem) SetClause {
	return SetClause{Items: items}
}

// Assign creates a SetItem: target = value.
func Assign(target, value Expr) SetItem {
	return SetItem{Target: target, Value: value}
}

// MergeProps creates a SetItem: var += value.
func MergeProps(varName string, value Expr) SetItem {
	return SetItem{Target: Ident{Name: varName}, Value: value, Merge: true}
}

// Node creates a NodePattern element.
func Node(varName string, labels ...string) NodePattern {
	return NodePattern{Var: varName, Labels: labels}
}

// Rel creates a single-hop RelPattern element.
func Rel(varName string, dir Direction, types ...string) RelPattern {
	return RelPattern{Var: varName, Types: types, Dir: dir}
}

// Path creates a PathPattern from alternating node and relationship elements.
func Path(elements ...PatternElement) PathPattern {
	return PathPattern{Elements: elements}
}

// Var creates an identifier reference.
func Var(name string) Ident {
	return Ident{Name: name}
}

// Prop creates a property reference: varName.prop.
func Prop(varName, prop string) PropRef {
	return PropRef{Var: varName, Prop: prop}
}

// P creates a parameter reference: $name.
func P(name string) Param {
	return Param{Name: name}
}

// Lit creates a literal expression.
func Lit(value any) Literal {
	return Literal{Val: value}
}

// Cmp creates a binary comparison.
func Cmp(left Expr, operator string, right Expr) Comparison {
	return Comparison{Left: left, Operator: operator, Right: right}
}

// Eq creates left = right.
func Eq(left, right Expr) Comparison {
	return Cmp(left, "=", right)
}

// In creates left IN right.
func In(left, right Expr) Comparison {
	return Cmp(left, "IN", right)
}

// Fn creates a function call expression.
func Fn(name string, args ...Expr) FuncCall {
	return FuncCall{Name: name, Args: args}
}

// FnDistinct creates a function call with DISTINCT applied to its arguments.
func FnDistinct(name string, args ...Expr) FuncCall {
	return FuncCall{Name: name, Distinct: true, Args: args}
}

// ElementID creates elementId(varName).
func ElementID(varName string) FuncCall {
	return Fn("elementId", Var(varName))
}

// AllOf joins expressions with AND, dropping nils. It returns nil when no
// expression remains and the single expression itself when only one does.
func AllOf(exprs ...Expr) Expr {
	kept := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Exprs: kept}
	}
}

// AnyOf joins expressions with OR.
func AnyOf(exprs ...Expr) Or {
	return Or{Exprs: exprs}
}

// ValueFromGo converts a Go value to an inline literal expression.
// time.Time values are wrapped in datetime() so they compare as temporals.
func ValueFromGo(val any) Expr {
	if t, ok := val.(time.Time); ok {
		return Fn("datetime", Lit(t.Format(time.RFC3339Nano)))
	}
	return Lit(val)
}
