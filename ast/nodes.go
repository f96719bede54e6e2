// Package ast defines the Abstract Syntax Tree (AST) for Cypher statements.
//
// It decouples statement construction from string formatting, providing a
// structured way to build Cypher programmatically. Nodes are plain values, so
// a partially built statement can be shared and extended without copying.
package ast

// QueryNode is the marker interface for all AST nodes.
type QueryNode interface {
	queryNode()
}

// --- Expressions ---

// Expr is the marker interface for expression nodes usable in WHERE,
// RETURN, ORDER BY and SET positions.
type Expr interface {
	QueryNode
	expr()
}

// Ident references a bound identifier, such as n1.
type Ident struct {
	Name string
}

func (Ident) queryNode() {}
func (Ident) expr()      {}

// PropRef references a property of a bound identifier, such as n1.name.
type PropRef struct {
	Var  string
	Prop string
}

func (PropRef) queryNode() {}
func (PropRef) expr()      {}

// Param references a statement parameter, such as $n1_name.
type Param struct {
	Name string
}

func (Param) queryNode() {}
func (Param) expr()      {}

// Literal is an inline literal value. Values are formatted with FormatGoValue.
type Literal struct {
	Val any
}

func (Literal) queryNode() {}
func (Literal) expr()      {}

// Comparison is a binary predicate such as a = b, a IN b or a STARTS WITH b.
type Comparison struct {
	Left     Expr
	Operator string
	Right    Expr
}

func (Comparison) queryNode() {}
func (Comparison) expr()      {}

// NullCheck renders expr IS NULL, or expr IS NOT NULL when Negated.
type NullCheck struct {
	Expr    Expr
	Negated bool
}

func (NullCheck) queryNode() {}
func (NullCheck) expr()      {}

// And joins its operands with AND. An empty And compiles to true.
type And struct {
	Exprs []Expr
}

func (And) queryNode() {}
func (And) expr()      {}

// Or joins its operands with OR, parenthesized.
type Or struct {
	Exprs []Expr
}

func (Or) queryNode() {}
func (Or) expr()      {}

// Not negates its operand.
type Not struct {
	Expr Expr
}

func (Not) queryNode() {}
func (Not) expr()      {}

// FuncCall is a function invocation such as count(DISTINCT n1) or elementId(n1).
type FuncCall struct {
	Name     string
	Distinct bool
	Args     []Expr
}

func (FuncCall) queryNode() {}
func (FuncCall) expr()      {}

// List is a list literal such as [r1, n2].
type List struct {
	Items []Expr
}

func (List) queryNode() {}
func (List) expr()      {}

// HasLabels is a label predicate such as n1:Person:Admin.
type HasLabels struct {
	Var    string
	Labels []string
}

func (HasLabels) queryNode() {}
func (HasLabels) expr()      {}

// Exists is an existential subquery: EXISTS { pattern WHERE ... }.
type Exists struct {
	Pattern PathPattern
	Where   Expr
}

func (Exists) queryNode() {}
func (Exists) expr()      {}

// Raw is an opaque expression inserted verbatim.
type Raw struct {
	Text string
}

func (Raw) queryNode() {}
func (Raw) expr()      {}

// --- Patterns ---

// Direction is the traversal direction of a relationship pattern.
type Direction int

const (
	// DirBoth matches relationships in either direction: -[]-.
	DirBoth Direction = iota
	// DirOut matches outgoing relationships: -[]->.
	DirOut
	// DirIn matches incoming relationships: <-[]-.
	DirIn
)

// PatternElement is the marker interface for the node and relationship
// elements of a path pattern.
type PatternElement interface {
	QueryNode
	patternElement()
}

// NodePattern is a node in a path pattern: (var:Label1:Label2).
type NodePattern struct {
	Var    string
	Labels []string
}

func (NodePattern) queryNode()      {}
func (NodePattern) patternElement() {}

// RelPattern is a relationship in a path pattern: -[var:TYPE*min..max]->.
// Types are joined with | in the compiled output.
type RelPattern struct {
	Var   string
	Types []string
	Dir   Direction
	// VarLength enables *MinHops..MaxHops. A zero MaxHops means unbounded.
	VarLength bool
	MinHops   int
	MaxHops   int
}

func (RelPattern) queryNode()      {}
func (RelPattern) patternElement() {}

// PathPattern is an alternating sequence of node and relationship elements,
// starting and ending with a node.
type PathPattern struct {
	Elements []PatternElement
}

func (PathPattern) queryNode() {}

// --- Clauses ---

// Clause is the marker interface for top-level statement clauses.
type Clause interface {
	QueryNode
	clause()
}

// MatchClause is MATCH or OPTIONAL MATCH with an optional WHERE.
type MatchClause struct {
	Optional bool
	Patterns []PathPattern
	Where    Expr
}

func (MatchClause) queryNode() {}
func (MatchClause) clause()    {}

// ProjectionItem is one entry of a WITH or RETURN projection.
type ProjectionItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Projection holds the parts shared by WITH and RETURN.
type Projection struct {
	Distinct bool
	Items    []ProjectionItem
	OrderBy  []OrderItem
	Skip     Expr
	Limit    Expr
}

// WithClause is WITH projection, optionally followed by WHERE.
type WithClause struct {
	Projection
	Where Expr
}

func (WithClause) queryNode() {}
func (WithClause) clause()    {}

// ReturnClause is the terminal RETURN projection.
type ReturnClause struct {
	Projection
}

func (ReturnClause) queryNode() {}
func (ReturnClause) clause()    {}

// CreateClause is CREATE with one or more patterns.
type CreateClause struct {
	Patterns []PathPattern
}

func (CreateClause) queryNode() {}
func (CreateClause) clause()    {}

// MergeClause is MERGE with a single pattern.
type MergeClause struct {
	Pattern PathPattern
}

func (MergeClause) queryNode() {}
func (MergeClause) clause()    {}

// SetItem is a single assignment in a SET clause. When Merge is true the
// target must be an Ident and the assignment renders as target += value.
type SetItem struct {
	Target Expr
	Value  Expr
	Merge  bool
}

// SetClause is SET item, item...
type SetClause struct {
	Items []SetItem
}

func (SetClause) queryNode() {}
func (SetClause) clause()    {}

// DeleteClause is DELETE or DETACH DELETE of identifiers.
type DeleteClause struct {
	Detach bool
	Vars   []string
}

func (DeleteClause) queryNode() {}
func (DeleteClause) clause()    {}

// RawClause is an opaque clause inserted verbatim.
type RawClause struct {
	Text string
}

func (RawClause) queryNode() {}
func (RawClause) clause()    {}

// Statement is an ordered list of clauses compiled with newlines between them.
type Statement struct {
	Clauses []Clause
}

func (Statement) queryNode() {}
