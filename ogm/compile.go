package ogm

import (
	"slices"

	"github.com/CaliLuke/go-ogm/ast"
)

// compiled is a plan rendered to Cypher together with the identifiers the
// result columns are named after.
type compiled struct {
	stmt     *Statement
	node     string
	rel      string
	includes []compiledInclude
}

type compiledInclude struct {
	include
	alias string
}

// planCompiler renders one proxy. A fresh compiler, and with it a fresh
// identifier allocator, is used for every compilation.
type planCompiler struct {
	p       *Proxy
	alloc   *IdentifierAllocator
	params  *paramSet
	names   []segNames
	clauses []ast.Clause
}

type segNames struct {
	node string
	rel  string
}

// Compile renders the chain for the given shape without executing it.
// Supported shapes are ShapeNodes, ShapePairs, ShapeRels, ShapeCount and
// ShapeExists.
func (p *Proxy) Compile(shape Shape) (*Statement, error) {
	switch shape {
	case ShapeNodes, ShapePairs, ShapeRels, ShapeCount, ShapeExists:
	default:
		return nil, usageErr("compile", "unsupported shape %q", shape)
	}
	c, err := p.compile(shape, nil)
	if err != nil {
		return nil, err
	}
	return c.stmt, nil
}

// pluckSpec names the property projected by pluck statements.
type pluckSpec struct {
	target
	prop string
}

func (p *Proxy) compile(shape Shape, pl *pluckSpec) (*compiled, error) {
	if p.err != nil {
		return nil, p.err
	}
	pc, err := p.newCompiler()
	if err != nil {
		return nil, err
	}
	if err := pc.body(); err != nil {
		return nil, err
	}
	out := &compiled{node: pc.names[p.terminal()].node, rel: pc.names[p.terminal()].rel}

	switch shape {
	case ShapePairs, ShapeRels:
		if p.terminal() == 0 {
			return nil, usageErr(string(shape), "no relationship has been traversed")
		}
		if p.segs[p.terminal()].varLength {
			return nil, usageErr(string(shape), "variable length steps have no single relationship")
		}
	}

	switch {
	case shape == ShapeNodes || shape == ShapePairs:
		out.includes, err = pc.includes(shape == ShapePairs)
		if err != nil {
			return nil, err
		}
		items := []ast.ProjectionItem{{Expr: ast.Var(out.node)}}
		if shape == ShapePairs {
			items = append(items, ast.ProjectionItem{Expr: ast.Var(out.rel)})
		}
		for _, inc := range out.includes {
			items = append(items, ast.ProjectionItem{Expr: ast.Var(inc.alias)})
		}
		pc.clauses = append(pc.clauses, ast.ReturnClause{Projection: pc.projection(items, p.cur)})
	case shape == ShapeRels:
		items := []ast.ProjectionItem{{Expr: ast.Var(out.rel)}}
		pc.clauses = append(pc.clauses, ast.ReturnClause{Projection: pc.projection(items, p.cur)})
	case shape == ShapeCount || shape == ShapeExists:
		counted := ast.Expr(ast.Fn("count", ast.Var(out.node)))
		if p.cur.paginated() {
			items := []ast.ProjectionItem{{Expr: ast.Var(out.node)}}
			pc.clauses = append(pc.clauses, ast.WithClause{Projection: pc.projection(items, p.cur)})
		} else if p.cur.distinct {
			counted = ast.FnDistinct("count", ast.Var(out.node))
		}
		if shape == ShapeExists {
			counted = ast.Cmp(counted, ">", ast.Lit(0))
		}
		pc.clauses = append(pc.clauses, ast.ReturnClause{Projection: ast.Projection{
			Items: []ast.ProjectionItem{ast.As(counted, "result")},
		}})
	case pl != nil:
		expr := ast.Prop(pc.ident(pl.target), pl.prop)
		items := []ast.ProjectionItem{ast.As(expr, "result")}
		pc.clauses = append(pc.clauses, ast.ReturnClause{Projection: pc.projection(items, p.cur)})
	default:
		return nil, usageErr("compile", "unsupported shape %q", shape)
	}

	text, err := (&ast.Compiler{}).CompileClauses(pc.clauses...)
	if err != nil {
		return nil, err
	}
	out.stmt = &Statement{Text: text, Params: pc.params.list, Shape: shape}
	return out, nil
}

// compileWrite renders the chain followed by a mutating tail built from the
// terminal identifiers.
func (p *Proxy) compileWrite(tail func(pc *planCompiler, node, rel string) ([]ast.Clause, error)) (*Statement, error) {
	if p.err != nil {
		return nil, p.err
	}
	pc, err := p.newCompiler()
	if err != nil {
		return nil, err
	}
	if err := pc.body(); err != nil {
		return nil, err
	}
	if p.cur.paginated() || p.cur.distinct {
		pc.clauses = append(pc.clauses, pc.carry(len(p.segs), p.cur))
	}
	names := pc.names[p.terminal()]
	extra, err := tail(pc, names.node, names.rel)
	if err != nil {
		return nil, err
	}
	pc.clauses = append(pc.clauses, extra...)
	text, err := (&ast.Compiler{}).CompileClauses(pc.clauses...)
	if err != nil {
		return nil, err
	}
	return &Statement{Text: text, Params: pc.params.list, Shape: ShapeWrite}, nil
}

func (p *Proxy) newCompiler() (*planCompiler, error) {
	if len(p.segs) == 0 {
		return nil, usageErr("compile", "empty chain")
	}
	pc := &planCompiler{p: p, alloc: NewIdentifierAllocator(), params: newParamSet()}
	for _, name := range p.explicit {
		if err := pc.alloc.Reserve(name); err != nil {
			return nil, err
		}
	}
	for _, f := range p.filters {
		for _, name := range rawParamNames(f.cond) {
			pc.params.reserve(name)
		}
	}
	for _, inc := range p.includes {
		for _, name := range rawParamNames(andCond(inc.conds)) {
			pc.params.reserve(name)
		}
	}
	pc.names = make([]segNames, len(p.segs))
	for i, s := range p.segs {
		if i > 0 {
			pc.names[i].rel = s.rel
			if s.rel == "" {
				pc.names[i].rel = pc.alloc.Next(RelIdent)
			}
		}
		pc.names[i].node = s.node
		if s.node == "" {
			pc.names[i].node = pc.alloc.Next(NodeIdent)
		}
	}
	return pc, nil
}

func (pc *planCompiler) ident(t target) string {
	if t.rel {
		return pc.names[t.seg].rel
	}
	return pc.names[t.seg].node
}

// body renders one MATCH per run of required steps, one OPTIONAL MATCH per
// optional step, and a WITH wherever pagination applies before a later step.
func (pc *planCompiler) body() error {
	p := pc.p
	var (
		cur   *ast.MatchClause
		path  []ast.PatternElement
		where []ast.Expr
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Patterns = []ast.PathPattern{ast.Path(path...)}
		cur.Where = ast.AllOf(where...)
		pc.clauses = append(pc.clauses, *cur)
		cur, path, where = nil, nil, nil
	}

	for i, s := range p.segs {
		names := pc.names[i]
		if s.stage != nil {
			flush()
			pc.clauses = append(pc.clauses, pc.carry(i, *s.stage))
		}
		if i == 0 {
			cur = &ast.MatchClause{}
			path = []ast.PatternElement{ast.Node(names.node, segLabels(s)...)}
			if p.owner != nil {
				name := pc.params.add(names.node+"_eid", p.owner.node().ElementID())
				where = append(where, ast.Eq(ast.ElementID(names.node), ast.P(name)))
			}
		} else {
			if cur == nil || s.optional || p.segs[i-1].optional || s.stage != nil {
				flush()
				cur = &ast.MatchClause{Optional: s.optional}
				path = []ast.PatternElement{ast.Node(pc.names[i-1].node)}
			}
			rel := ast.Rel(names.rel, s.dir.astDir(), s.relType)
			if s.varLength {
				rel.VarLength, rel.MinHops, rel.MaxHops = true, s.minHops, s.maxHops
			}
			path = append(path, rel, ast.Node(names.node, segLabels(s)...))
		}
		if lp := labelPredicate(names.node, s.targets); lp != nil {
			where = append(where, lp)
		}
		for _, f := range p.filters {
			if f.seg != i {
				continue
			}
			e, err := pc.buildFilter(f.target, f.cond)
			if err != nil {
				return err
			}
			where = append(where, e)
		}
	}
	flush()
	return nil
}

func (pc *planCompiler) buildFilter(t target, cond Condition) (ast.Expr, error) {
	from := pc.names[0].node
	if t.seg > 0 {
		from = pc.names[t.seg-1].node
	}
	bc := &buildContext{ident: pc.ident(t), from: from, scope: pc.p.explicit, params: pc.params, alloc: pc.alloc}
	return cond.build(bc)
}

// segLabels returns the labels written into the node pattern of a step.
// Polymorphic steps are constrained by labelPredicate instead.
func segLabels(s segment) []string {
	if s.model != nil {
		return s.model.Labels
	}
	return nil
}

func labelPredicate(ident string, targets []*ModelInfo) ast.Expr {
	if len(targets) < 2 {
		return nil
	}
	alts := make([]ast.Expr, len(targets))
	for i, t := range targets {
		alts[i] = ast.HasLabels{Var: ident, Labels: t.Labels}
	}
	return ast.AnyOf(alts...)
}

// carry renders a WITH that keeps every identifier introduced before step
// upto and applies st to them.
func (pc *planCompiler) carry(upto int, st stage) ast.WithClause {
	var items []ast.ProjectionItem
	for i := 0; i < upto; i++ {
		if pc.names[i].rel != "" {
			items = append(items, ast.ProjectionItem{Expr: ast.Var(pc.names[i].rel)})
		}
		items = append(items, ast.ProjectionItem{Expr: ast.Var(pc.names[i].node)})
	}
	return ast.WithClause{Projection: pc.projection(items, st)}
}

func (pc *planCompiler) projection(items []ast.ProjectionItem, st stage) ast.Projection {
	proj := ast.Projection{Distinct: st.distinct, Items: items}
	for _, o := range st.orders {
		proj.OrderBy = append(proj.OrderBy, ast.OrderItem{Expr: ast.Prop(pc.ident(o.target), o.prop), Desc: o.desc})
	}
	if st.hasSkip {
		proj.Skip = ast.Lit(st.skip)
	}
	if st.hasLimit {
		proj.Limit = ast.Lit(st.limit)
	}
	return proj
}

// includes renders one OPTIONAL MATCH per included association followed by a
// WITH collecting each of them into a list of [relationship, node] pairs.
func (pc *planCompiler) includes(keepRel bool) ([]compiledInclude, error) {
	p := pc.p
	if len(p.includes) == 0 {
		return nil, nil
	}
	term := pc.names[p.terminal()]
	out := make([]compiledInclude, 0, len(p.includes))
	collects := make([]ast.ProjectionItem, 0, len(p.includes))
	for _, inc := range p.includes {
		rel, node := pc.alloc.Next(RelIdent), pc.alloc.Next(NodeIdent)
		var labels []string
		if len(inc.targets) == 1 {
			labels = inc.targets[0].Labels
		}
		m := ast.OptionalMatch(ast.Path(
			ast.Node(term.node),
			ast.Rel(rel, inc.dir.astDir(), inc.relType),
			ast.Node(node, labels...),
		))
		var where []ast.Expr
		if lp := labelPredicate(node, inc.targets); lp != nil {
			where = append(where, lp)
		}
		if len(inc.conds) > 0 {
			bc := &buildContext{ident: node, from: term.node, scope: p.explicit, params: pc.params, alloc: pc.alloc}
			e, err := andCond(inc.conds).build(bc)
			if err != nil {
				return nil, err
			}
			where = append(where, e)
		}
		m.Where = ast.AllOf(where...)
		pc.clauses = append(pc.clauses, m)

		alias := "inc_" + inc.name
		collects = append(collects, ast.As(
			ast.FnDistinct("collect", ast.List{Items: []ast.Expr{ast.Var(rel), ast.Var(node)}}),
			alias,
		))
		out = append(out, compiledInclude{include: inc, alias: alias})
	}

	kept := []string{term.node}
	if keepRel {
		kept = append(kept, term.rel)
	}
	for _, o := range p.cur.orders {
		if id := pc.ident(o.target); !slices.Contains(kept, id) {
			kept = append(kept, id)
		}
	}
	items := make([]ast.ProjectionItem, 0, len(kept)+len(collects))
	for _, id := range kept {
		items = append(items, ast.ProjectionItem{Expr: ast.Var(id)})
	}
	items = append(items, collects...)
	pc.clauses = append(pc.clauses, ast.WithClause{Projection: ast.Projection{Items: items}})
	return out, nil
}
