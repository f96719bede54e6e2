package ogm

import (
	"reflect"
	"slices"
	"sort"

	"github.com/CaliLuke/go-ogm/ast"
)

// Condition is a filter predicate attached to a proxy. Conditions are
// immutable values; the identifier they apply to and the names of their
// parameters are only fixed when the plan is compiled.
type Condition interface {
	// check validates the condition when it is attached. scope lists the
	// explicit identifiers visible at that point of the chain.
	check(scope []string) error
	// build renders the condition against the identifier in bc.
	build(bc *buildContext) (ast.Expr, error)
}

// buildContext carries what a condition needs while a plan is compiled.
type buildContext struct {
	ident string
	// from is the node the filtered segment was reached from.
	from   string
	scope  []string
	params *paramSet
	// alloc hands out identifiers bound inside subqueries.
	alloc  *IdentifierAllocator
}

// bind returns a fresh identifier of kind for a subquery pattern.
func (bc *buildContext) bind(kind IdentKind) string {
	if bc.alloc == nil {
		bc.alloc = NewIdentifierAllocator()
		for _, name := range append([]string{bc.ident, bc.from}, bc.scope...) {
			bc.alloc.used[name] = true
		}
	}
	return bc.alloc.Next(kind)
}

// --- Property conditions ---

type propCond struct {
	prop  string
	op    string
	value any
}

func (c propCond) check([]string) error {
	if c.prop == "" {
		return usageErr("where", "empty property name")
	}
	return nil
}

func (c propCond) build(bc *buildContext) (ast.Expr, error) {
	ref := ast.Prop(bc.ident, c.prop)
	switch {
	case c.value == nil && c.op == "=":
		return ast.NullCheck{Expr: ref}, nil
	case c.value == nil && c.op == "<>":
		return ast.NullCheck{Expr: ref, Negated: true}, nil
	case isList(c.value) && c.op == "=":
		return ast.In(ref, ast.P(bc.params.add(bc.ident+"_"+c.prop, c.value))), nil
	case isList(c.value) && c.op == "<>":
		return ast.Not{Expr: ast.In(ref, ast.P(bc.params.add(bc.ident+"_"+c.prop, c.value)))}, nil
	}
	name := bc.params.add(bc.ident+"_"+c.prop, c.value)
	return ast.Cmp(ref, c.op, ast.P(name)), nil
}

// isList reports whether v is a slice or array other than a byte slice.
func isList(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

// Eq matches prop = value. A nil value matches missing properties and a
// slice value matches any of its elements.
func Eq(prop string, value any) Condition { return propCond{prop: prop, op: "=", value: value} }

// Neq matches prop <> value, with the same nil and slice handling as Eq.
func Neq(prop string, value any) Condition { return propCond{prop: prop, op: "<>", value: value} }

// Gt matches prop > value.
func Gt(prop string, value any) Condition { return propCond{prop: prop, op: ">", value: value} }

// Gte matches prop >= value.
func Gte(prop string, value any) Condition { return propCond{prop: prop, op: ">=", value: value} }

// Lt matches prop < value.
func Lt(prop string, value any) Condition { return propCond{prop: prop, op: "<", value: value} }

// Lte matches prop <= value.
func Lte(prop string, value any) Condition { return propCond{prop: prop, op: "<=", value: value} }

// Contains matches string properties containing value.
func Contains(prop, value string) Condition {
	return propCond{prop: prop, op: "CONTAINS", value: value}
}

// StartsWith matches string properties starting with value.
func StartsWith(prop, value string) Condition {
	return propCond{prop: prop, op: "STARTS WITH", value: value}
}

// EndsWith matches string properties ending with value.
func EndsWith(prop, value string) Condition {
	return propCond{prop: prop, op: "ENDS WITH", value: value}
}

// In matches prop IN values. values must be a slice.
func In(prop string, values any) Condition {
	return inCond{prop: prop, values: values}
}

type inCond struct {
	prop   string
	values any
}

func (c inCond) check([]string) error {
	if c.prop == "" {
		return usageErr("where", "empty property name")
	}
	if !isList(c.values) {
		return usageErr("where", "In(%q) needs a slice, got %T", c.prop, c.values)
	}
	return nil
}

func (c inCond) build(bc *buildContext) (ast.Expr, error) {
	name := bc.params.add(bc.ident+"_"+c.prop, c.values)
	return ast.In(ast.Prop(bc.ident, c.prop), ast.P(name)), nil
}

// IsNull matches nodes without the property.
func IsNull(prop string) Condition { return propCond{prop: prop, op: "="} }

// NotNull matches nodes that have the property.
func NotNull(prop string) Condition { return propCond{prop: prop, op: "<>"} }

// Props matches every key of props with Eq. Keys are applied in sorted
// order so the compiled text does not depend on map iteration.
func Props(props map[string]any) Condition {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]Condition, len(keys))
	for i, k := range keys {
		conds[i] = Eq(k, props[k])
	}
	return andCond(conds)
}

// --- Combinators ---

type andCond []Condition

// And matches when every condition matches.
func And(conds ...Condition) Condition { return andCond(conds) }

func (c andCond) check(scope []string) error {
	for _, cond := range c {
		if cond == nil {
			return usageErr("where", "nil condition")
		}
		if err := cond.check(scope); err != nil {
			return err
		}
	}
	return nil
}

func (c andCond) build(bc *buildContext) (ast.Expr, error) {
	exprs := make([]ast.Expr, 0, len(c))
	for _, cond := range c {
		e, err := cond.build(bc)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	if len(exprs) == 0 {
		return ast.And{}, nil
	}
	return ast.AllOf(exprs...), nil
}

type orCond []Condition

// Or matches when any condition matches.
func Or(conds ...Condition) Condition { return orCond(conds) }

func (c orCond) check(scope []string) error {
	if len(c) == 0 {
		return usageErr("where", "Or without conditions")
	}
	return andCond(c).check(scope)
}

func (c orCond) build(bc *buildContext) (ast.Expr, error) {
	exprs := make([]ast.Expr, 0, len(c))
	for _, cond := range c {
		e, err := cond.build(bc)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return ast.AnyOf(exprs...), nil
}

type notCond struct{ inner Condition }

// Not negates a condition.
func Not(cond Condition) Condition { return notCond{inner: cond} }

func (c notCond) check(scope []string) error {
	if c.inner == nil {
		return usageErr("where", "nil condition")
	}
	return c.inner.check(scope)
}

func (c notCond) build(bc *buildContext) (ast.Expr, error) {
	e, err := c.inner.build(bc)
	if err != nil {
		return nil, err
	}
	return ast.Not{Expr: e}, nil
}

// --- Identity conditions ---

type idCond struct {
	ids []string
	err error
}

// ID matches records by database element id.
func ID(elementIDs ...string) Condition {
	return idCond{ids: slices.Clone(elementIDs)}
}

// Is matches exactly the given records. Every record must be persisted.
func Is(records ...Model) Condition {
	c := idCond{}
	for _, r := range records {
		if r == nil || reflect.ValueOf(r).IsNil() {
			return idCond{err: usageErr("is", "nil record")}
		}
		n := r.node()
		if !n.Persisted() {
			return idCond{err: usageErr("is", "record %s is not persisted", typeName(r))}
		}
		c.ids = append(c.ids, n.ElementID())
	}
	return c
}

func (c idCond) check([]string) error {
	if c.err != nil {
		return c.err
	}
	if len(c.ids) == 0 {
		return usageErr("where", "identity filter without records")
	}
	return nil
}

func (c idCond) build(bc *buildContext) (ast.Expr, error) {
	if len(c.ids) == 1 {
		return ast.Eq(ast.ElementID(bc.ident), ast.P(bc.params.add(bc.ident+"_eid", c.ids[0]))), nil
	}
	return ast.In(ast.ElementID(bc.ident), ast.P(bc.params.add(bc.ident+"_eid", c.ids))), nil
}

// --- Structural conditions ---

// relCond matches nodes by the presence of a relationship described by an
// association of the node's model. conds filter the relationship.
type relCond struct {
	assoc  *Association
	negate bool
	conds  []Condition
}

func (c relCond) check(scope []string) error {
	if _, _, _, err := c.assoc.Relationship(); err != nil {
		return err
	}
	return andCond(c.conds).check(scope)
}

func (c relCond) build(bc *buildContext) (ast.Expr, error) {
	relType, dir, _, err := c.assoc.Relationship()
	if err != nil {
		return nil, err
	}
	var labels []string
	if target, err := c.assoc.TargetModel(); err == nil && target != nil {
		labels = target.Labels
	}
	e := ast.Exists{Pattern: ast.Path(
		ast.Node(bc.ident),
		ast.Rel("", dir.astDir(), relType),
		ast.Node("", labels...),
	)}
	if len(c.conds) > 0 {
		rel := bc.bind(RelIdent)
		e.Pattern = ast.Path(
			ast.Node(bc.ident),
			ast.Rel(rel, dir.astDir(), relType),
			ast.Node("", labels...),
		)
		inner := &buildContext{ident: rel, from: bc.ident, scope: bc.scope, params: bc.params, alloc: bc.alloc}
		if e.Where, err = andCond(c.conds).build(inner); err != nil {
			return nil, err
		}
	}
	if c.negate {
		return ast.Not{Expr: e}, nil
	}
	return e, nil
}

// orphanCond matches targets with no relationship of the association's type
// to any node other than the one they were reached from.
type orphanCond struct {
	relType string
	dir     Direction
}

func (c orphanCond) check([]string) error { return nil }

func (c orphanCond) build(bc *buildContext) (ast.Expr, error) {
	other := bc.bind(NodeIdent)
	return ast.Not{Expr: ast.Exists{
		Pattern: ast.Path(
			ast.Node(bc.from),
			ast.Rel("", c.dir.astDir(), c.relType),
			ast.Node(bc.ident),
			ast.Rel("", c.dir.inverse().astDir(), c.relType),
			ast.Node(other),
		),
		Where: ast.Cmp(ast.Var(other), "<>", ast.Var(bc.from)),
	}}, nil
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
