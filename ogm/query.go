package ogm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/CaliLuke/go-ogm/ast"
)

// association returns the name under which results of p are cached: the
// first association followed from the owner.
func (p *Proxy) association() string {
	if len(p.segs) > 1 && p.segs[1].assoc != nil {
		return p.segs[1].assoc.Name
	}
	return ""
}

// cacheable reports whether results of p go through the owner's cache.
func (p *Proxy) cacheable() bool {
	return p.owner != nil && p.sess.cache && !p.sess.InTransaction()
}

// fetch compiles p for shape and returns its rows, from the owner's cache
// when possible.
func (p *Proxy) fetch(ctx context.Context, shape Shape, pl *pluckSpec) (*Entry, error) {
	if p.err != nil {
		return nil, p.err
	}
	c, err := p.compile(shape, pl)
	if err != nil {
		return nil, err
	}
	load := func() (*Entry, error) {
		rows, err := p.sess.run(ctx, ReadAccess, c.stmt, p.association())
		if err != nil {
			return nil, err
		}
		return p.decode(c, rows)
	}
	if !p.cacheable() {
		return load()
	}
	key, err := c.stmt.CacheKey(p.association())
	if err != nil {
		return nil, fmt.Errorf("cache key for %s: %w", p.association(), err)
	}
	return p.owner.node().AssociationCache().Fetch(key, load)
}

func (p *Proxy) decode(c *compiled, rows []Row) (*Entry, error) {
	shape := c.stmt.Shape
	switch shape {
	case ShapeCount:
		if len(rows) == 0 {
			return &Entry{Scalar: int64(0)}, nil
		}
		n, err := coerceToInt64(rows[0]["result"])
		if err != nil {
			return nil, fmt.Errorf("count result: %w", err)
		}
		return &Entry{Scalar: n}, nil
	case ShapeExists:
		if len(rows) == 0 {
			return &Entry{Scalar: false}, nil
		}
		b, ok := rows[0]["result"].(bool)
		if !ok {
			return nil, fmt.Errorf("exists result: expected bool, got %T", rows[0]["result"])
		}
		return &Entry{Scalar: b}, nil
	case ShapeNodes, ShapePairs, ShapeRels:
	default:
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			v, err := p.sess.resolver.Value(row["result"])
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return &Entry{Scalar: values}, nil
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var res Result
		if shape != ShapeRels {
			v := row[c.node]
			if v == nil {
				continue
			}
			m, err := p.resolveNode(v)
			if err != nil {
				return nil, err
			}
			res.Node = m
		}
		if shape != ShapeNodes {
			v := row[c.rel]
			if v == nil {
				if shape == ShapeRels {
					continue
				}
			} else {
				rel, err := p.resolveRel(v)
				if err != nil {
					return nil, err
				}
				res.Rel = rel
			}
		}
		if len(c.includes) > 0 {
			if err := p.fillIncludes(res.Node, c.includes, row); err != nil {
				return nil, err
			}
		}
		results = append(results, res)
	}
	return &Entry{Results: results}, nil
}

func (p *Proxy) resolveNode(v any) (Model, error) {
	res, err := p.sess.resolver.Value(v)
	if err != nil {
		return nil, err
	}
	m, ok := res.(Model)
	if !ok {
		return nil, fmt.Errorf("expected a node, got %T", v)
	}
	return m, nil
}

func (p *Proxy) resolveRel(v any) (Relationship, error) {
	res, err := p.sess.resolver.Value(v)
	if err != nil {
		return nil, err
	}
	r, ok := res.(Relationship)
	if !ok {
		return nil, fmt.Errorf("expected a relationship, got %T", v)
	}
	return r, nil
}

// fillIncludes stores the collected include lists of one row in the owner's
// cache, under the keys the equivalent association chains compile to.
func (p *Proxy) fillIncludes(owner Model, incs []compiledInclude, row Row) error {
	for _, inc := range incs {
		raw, _ := row[inc.alias].([]any)
		results := make([]Result, 0, len(raw))
		for _, item := range raw {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return fmt.Errorf("include %s: expected [relationship, node], got %T", inc.name, item)
			}
			if pair[1] == nil {
				continue
			}
			node, err := p.resolveNode(pair[1])
			if err != nil {
				return fmt.Errorf("include %s: %w", inc.name, err)
			}
			res := Result{Node: node}
			if pair[0] != nil {
				if res.Rel, err = p.resolveRel(pair[0]); err != nil {
					return fmt.Errorf("include %s: %w", inc.name, err)
				}
			}
			results = append(results, res)
		}

		if !p.sess.cache || p.sess.InTransaction() {
			continue
		}
		eq := p.sess.FromNode(owner).Assoc(inc.name)
		if len(inc.conds) > 0 {
			eq = eq.Where(inc.conds...)
		}
		nodes := make([]Result, len(results))
		for i, r := range results {
			nodes[i] = Result{Node: r.Node}
		}
		if err := eq.prime(ShapeNodes, &Entry{Results: nodes}); err != nil {
			return fmt.Errorf("include %s: %w", inc.name, err)
		}
		if err := eq.WithRel().prime(ShapePairs, &Entry{Results: results}); err != nil {
			return fmt.Errorf("include %s: %w", inc.name, err)
		}
	}
	return nil
}

// prime stores e in the owner's cache under the key of p compiled for shape.
func (p *Proxy) prime(shape Shape, e *Entry) error {
	c, err := p.compile(shape, nil)
	if err != nil {
		return err
	}
	key, err := c.stmt.CacheKey(p.association())
	if err != nil {
		return err
	}
	p.owner.node().AssociationCache().Put(key, e)
	return nil
}

// Results executes the chain and returns one Result per row. Rel is set when
// the chain was built with WithRel.
func (p *Proxy) Results(ctx context.Context) ([]Result, error) {
	shape := ShapeNodes
	if p.withRel {
		shape = ShapePairs
	}
	e, err := p.fetch(ctx, shape, nil)
	if err != nil {
		return nil, err
	}
	return e.Results, nil
}

// All executes the chain and returns the resolved nodes.
func (p *Proxy) All(ctx context.Context) ([]Model, error) {
	results, err := p.Results(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Model, len(results))
	for i, r := range results {
		out[i] = r.Node
	}
	return out, nil
}

// Pairs executes the chain and returns every node with the relationship it
// was reached through.
func (p *Proxy) Pairs(ctx context.Context) ([]Result, error) {
	return p.WithRel().Results(ctx)
}

// Rels executes the chain and returns the relationships traversed by its
// last step.
func (p *Proxy) Rels(ctx context.Context) ([]Relationship, error) {
	e, err := p.fetch(ctx, ShapeRels, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Relationship, len(e.Results))
	for i, r := range e.Results {
		out[i] = r.Rel
	}
	return out, nil
}

// First returns the first result, or nil if none found. Without an explicit
// order the results are ordered by the id property of the terminal model.
func (p *Proxy) First(ctx context.Context) (Model, error) {
	return p.edge(false).one(ctx)
}

// Last is First with every ordering reversed.
func (p *Proxy) Last(ctx context.Context) (Model, error) {
	return p.edge(true).one(ctx)
}

func (p *Proxy) edge(last bool) *Proxy {
	if p.err != nil {
		return p
	}
	c := p.clone()
	if len(c.cur.orders) == 0 {
		if m := c.terminalModel(); m != nil {
			c.cur.orders = []orderItem{{target: target{seg: c.terminal()}, prop: m.IDProperty}}
		}
	}
	if last {
		for i := range c.cur.orders {
			c.cur.orders[i].desc = !c.cur.orders[i].desc
		}
	}
	c.cur.limit, c.cur.hasLimit = 1, true
	return c
}

func (p *Proxy) one(ctx context.Context) (Model, error) {
	results, err := p.Results(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Node, nil
}

// One returns the only node the chain yields, or nil if there is none. More
// than one result is reported as a *NotUniqueError, which is how a has-one
// association holding several relationships shows up.
func (p *Proxy) One(ctx context.Context) (Model, error) {
	results, err := p.Results(ctx)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Node, nil
	}
	name := "result"
	if m := p.terminalModel(); m != nil {
		name = m.Name
	}
	return nil, &NotUniqueError{TypeName: name, Count: len(results)}
}

// Count returns the number of nodes the chain yields.
func (p *Proxy) Count(ctx context.Context) (int64, error) {
	e, err := p.fetch(ctx, ShapeCount, nil)
	if err != nil {
		return 0, err
	}
	return e.Scalar.(int64), nil
}

// Exists returns true if the chain yields at least one node.
func (p *Proxy) Exists(ctx context.Context) (bool, error) {
	e, err := p.fetch(ctx, ShapeExists, nil)
	if err != nil {
		return false, err
	}
	return e.Scalar.(bool), nil
}

// Empty reports whether the chain yields no nodes.
func (p *Proxy) Empty(ctx context.Context) (bool, error) {
	ok, err := p.Exists(ctx)
	return !ok, err
}

// Has reports whether other is among the nodes the chain yields. A record
// that was never saved is in no chain.
func (p *Proxy) Has(ctx context.Context, other Model) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if other != nil && !reflect.ValueOf(other).IsNil() && !other.node().Persisted() {
		return false, nil
	}
	return p.MatchTo(other).Exists(ctx)
}

// Pluck returns one property of every node the chain yields.
func (p *Proxy) Pluck(ctx context.Context, prop string) ([]any, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.pluck(ctx, target{seg: p.terminal()}, prop)
}

// PluckOn returns one property of the node or relationship named ident.
func (p *Proxy) PluckOn(ctx context.Context, ident, prop string) ([]any, error) {
	if p.err != nil {
		return nil, p.err
	}
	t, ok := p.lookup(ident)
	if !ok {
		return nil, usageErr("pluck", "identifier %q is not in scope", ident)
	}
	return p.pluck(ctx, t, prop)
}

func (p *Proxy) pluck(ctx context.Context, t target, prop string) ([]any, error) {
	if prop == "" {
		return nil, usageErr("pluck", "empty property name")
	}
	kind := "n"
	if t.rel {
		kind = "r"
	}
	shape := pluckShape(fmt.Sprintf("%s%d.%s", kind, t.seg, prop))
	e, err := p.fetch(ctx, shape, &pluckSpec{target: t, prop: prop})
	if err != nil {
		return nil, err
	}
	return e.Scalar.([]any), nil
}

// RelsTo returns the relationships traversed by the last step that lead to
// other.
func (p *Proxy) RelsTo(ctx context.Context, other Model) ([]Relationship, error) {
	return p.MatchTo(other).Rels(ctx)
}

// FirstRelTo returns the first relationship leading to other, or nil.
func (p *Proxy) FirstRelTo(ctx context.Context, other Model) (Relationship, error) {
	rels, err := p.MatchTo(other).Limit(1).Rels(ctx)
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return rels[0], nil
}

// Collect executes p and converts every result to *T. Instances of models
// embedding T are returned as their embedded T.
func Collect[T any](ctx context.Context, p *Proxy) ([]*T, error) {
	all, err := p.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(all))
	for _, m := range all {
		t, ok := As[T](m)
		if !ok {
			return nil, usageErr("collect", "result %T is not a %s", m, typeName(new(T)))
		}
		out = append(out, t)
	}
	return out, nil
}

// FirstOf is First converted to *T.
func FirstOf[T any](ctx context.Context, p *Proxy) (*T, error) {
	m, err := p.First(ctx)
	if err != nil || m == nil {
		return nil, err
	}
	t, ok := As[T](m)
	if !ok {
		return nil, usageErr("first", "result %T is not a %s", m, typeName(new(T)))
	}
	return t, nil
}

// --- Mass operations ---

// DeleteAll detach-deletes every node the chain yields.
func (p *Proxy) DeleteAll(ctx context.Context) error {
	return p.write(ctx, "delete_all", func(pc *planCompiler, node, _ string) ([]ast.Clause, error) {
		return []ast.Clause{ast.DetachDelete(node)}, nil
	})
}

// DeleteAllRels deletes the relationships traversed by the last step,
// leaving the nodes in place.
func (p *Proxy) DeleteAllRels(ctx context.Context) error {
	return p.write(ctx, "delete_all_rels", func(pc *planCompiler, _, rel string) ([]ast.Clause, error) {
		if rel == "" {
			return nil, usageErr("delete_all_rels", "no relationship has been traversed")
		}
		return []ast.Clause{ast.Delete(rel)}, nil
	})
}

// UpdateAll merges props into every node the chain yields.
func (p *Proxy) UpdateAll(ctx context.Context, props map[string]any) error {
	return p.write(ctx, "update_all", func(pc *planCompiler, node, _ string) ([]ast.Clause, error) {
		if len(props) == 0 {
			return nil, usageErr("update_all", "no properties")
		}
		name := pc.params.add(node+"_props", props)
		return []ast.Clause{ast.Set(ast.MergeProps(node, ast.P(name)))}, nil
	})
}

// UpdateAllRels merges props into the relationships traversed by the last
// step.
func (p *Proxy) UpdateAllRels(ctx context.Context, props map[string]any) error {
	return p.write(ctx, "update_all_rels", func(pc *planCompiler, _, rel string) ([]ast.Clause, error) {
		if rel == "" {
			return nil, usageErr("update_all_rels", "no relationship has been traversed")
		}
		if len(props) == 0 {
			return nil, usageErr("update_all_rels", "no properties")
		}
		name := pc.params.add(rel+"_props", props)
		return []ast.Clause{ast.Set(ast.MergeProps(rel, ast.P(name)))}, nil
	})
}

func (p *Proxy) write(ctx context.Context, op string, tail func(pc *planCompiler, node, rel string) ([]ast.Clause, error)) error {
	if p.err != nil {
		return p.err
	}
	if p.terminal() > 0 && p.segs[p.terminal()].varLength && op != "delete_all" && op != "update_all" {
		return usageErr(op, "variable length steps have no single relationship")
	}
	stmt, err := p.compileWrite(tail)
	if err != nil {
		return err
	}
	if _, err := p.sess.run(ctx, WriteAccess, stmt, p.association()); err != nil {
		return err
	}
	if p.owner != nil {
		p.owner.node().ClearAssociationCache()
	}
	return nil
}
