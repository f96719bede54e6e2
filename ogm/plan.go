package ogm

import (
	"reflect"
	"slices"
)

// Proxy is a lazily executed association query. Every chain method returns a
// new Proxy and leaves its receiver untouched, so a prefix can be branched
// freely:
//
//	lessons := sess.Assoc(student, "lessons")
//	math := lessons.Where(ogm.Eq("subject", "Math"))
//	art := lessons.Where(ogm.Eq("subject", "Art"))
//
// Errors raised by chain methods are kept in the returned proxy and reported
// by Err and by every terminal operation.
type Proxy struct {
	sess     *Session
	reg      *Registry
	owner    Model
	segs     []segment
	filters  []filter
	cur      stage
	includes []include
	withRel  bool
	explicit []string
	err      error
}

// segment is one step of the traversal. The first segment is the root: the
// owner record or every node of a model.
type segment struct {
	assoc   *Association
	relType string
	dir     Direction
	// model is the single target model; nil for polymorphic and any targets.
	model   *ModelInfo
	targets []*ModelInfo

	node string
	rel  string

	optional  bool
	varLength bool
	minHops   int
	maxHops   int

	// stage is the ordering and pagination applied to the previous
	// terminal before this segment is matched.
	stage *stage
}

// stage holds ordering and pagination for one projection.
type stage struct {
	orders   []orderItem
	skip     int
	limit    int
	hasSkip  bool
	hasLimit bool
	distinct bool
}

func (s stage) paginated() bool { return s.hasSkip || s.hasLimit }

// target addresses the node or relationship introduced by a segment.
type target struct {
	seg int
	rel bool
}

type orderItem struct {
	target
	prop string
	desc bool
}

type filter struct {
	target
	cond Condition
}

type include struct {
	name    string
	assoc   *Association
	relType string
	dir     Direction
	targets []*ModelInfo
	conds   []Condition
}

// SegmentOption configures one traversal step.
type SegmentOption func(*segment)

// NodeAs names the node introduced by the step so later filters and orderings
// can refer to it.
func NodeAs(ident string) SegmentOption {
	return func(s *segment) { s.node = ident }
}

// RelAs names the relationship traversed by the step.
func RelAs(ident string) SegmentOption {
	return func(s *segment) { s.rel = ident }
}

// Optional keeps rows whose owner has no match for this step. The node and
// relationship of the step are null in those rows.
func Optional() SegmentOption {
	return func(s *segment) { s.optional = true }
}

// Hops makes the step variable length. A zero max means unbounded.
func Hops(min, max int) SegmentOption {
	return func(s *segment) {
		s.varLength = true
		s.minHops, s.maxHops = min, max
	}
}

// Query starts a chain over every node of T's model.
func Query[T any](s *Session) *Proxy {
	info, ok := s.reg.LookupType(reflect.TypeFor[T]())
	if !ok {
		return &Proxy{sess: s, reg: s.reg, err: &NotRegisteredError{TypeName: reflect.TypeFor[T]().Name()}}
	}
	return s.Model(info)
}

// Model starts a chain over every node of a registered node model.
func (s *Session) Model(info *ModelInfo) *Proxy {
	p := &Proxy{sess: s, reg: s.reg}
	if info == nil || info.Kind != ModelKindNode {
		p.err = usageErr("query", "a chain must start from a node model")
		return p
	}
	p.segs = []segment{{model: info, targets: []*ModelInfo{info}}}
	return p
}

// FromNode starts a chain at one persisted record. Results of chains started
// this way are kept in the record's association cache.
func (s *Session) FromNode(owner Model) *Proxy {
	p := &Proxy{sess: s, reg: s.reg}
	if owner == nil || reflect.ValueOf(owner).IsNil() {
		p.err = usageErr("query", "nil owner")
		return p
	}
	if !owner.node().Persisted() {
		p.err = &NotPersistedError{TypeName: typeName(owner), Op: "query"}
		return p
	}
	seg := segment{}
	if info, ok := s.reg.LookupType(reflect.TypeOf(owner)); ok {
		seg.model, seg.targets = info, []*ModelInfo{info}
	}
	p.owner = owner
	p.segs = []segment{seg}
	return p
}

// Assoc starts a chain at owner and follows the named association.
func (s *Session) Assoc(owner Model, name string, opts ...SegmentOption) *Proxy {
	return s.FromNode(owner).Assoc(name, opts...)
}

// Err returns the first error raised while building the chain.
func (p *Proxy) Err() error { return p.err }

func (p *Proxy) clone() *Proxy {
	c := *p
	c.segs = slices.Clone(p.segs)
	c.filters = slices.Clone(p.filters)
	c.cur.orders = slices.Clone(p.cur.orders)
	c.includes = slices.Clone(p.includes)
	c.explicit = slices.Clone(p.explicit)
	return &c
}

func (p *Proxy) fail(err error) *Proxy {
	c := p.clone()
	c.err = err
	return c
}

func (p *Proxy) terminal() int { return len(p.segs) - 1 }

// terminalModel returns the model of the nodes the chain currently yields,
// or nil when it is polymorphic or unknown.
func (p *Proxy) terminalModel() *ModelInfo {
	return p.segs[p.terminal()].model
}

// lookup finds the node or relationship an explicit identifier names.
func (p *Proxy) lookup(ident string) (target, bool) {
	for i, s := range p.segs {
		if s.node == ident {
			return target{seg: i}, true
		}
		if s.rel == ident {
			return target{seg: i, rel: true}, true
		}
	}
	return target{}, false
}

func (p *Proxy) claim(ident string) error {
	if ident == "" {
		return nil
	}
	if err := ValidateIdentifier(ident, "identifier"); err != nil {
		return &ConfigurationError{Subject: "identifier " + ident, Message: err.Error()}
	}
	if slices.Contains(p.explicit, ident) {
		return configErr("identifier "+ident, "already in use")
	}
	p.explicit = append(p.explicit, ident)
	return nil
}

// Named gives the nodes the chain currently yields an explicit identifier.
func (p *Proxy) Named(ident string) *Proxy {
	if p.err != nil {
		return p
	}
	t := p.terminal()
	if p.segs[t].node != "" {
		return p.fail(usageErr("named", "node already named %q", p.segs[t].node))
	}
	c := p.clone()
	if err := c.claim(ident); err != nil {
		return p.fail(err)
	}
	c.segs[t].node = ident
	return c
}

// Assoc follows an association of the current terminal model.
func (p *Proxy) Assoc(name string, opts ...SegmentOption) *Proxy {
	if p.err != nil {
		return p
	}
	from := p.terminalModel()
	if from == nil {
		return p.fail(usageErr("assoc", "cannot follow %q from nodes of unknown or mixed models", name))
	}
	a, ok := p.reg.Association(from, name)
	if !ok {
		return p.fail(usageErr("assoc", "no association %q on %s", name, from.Name))
	}
	if len(p.includes) > 0 {
		return p.fail(usageErr("assoc", "includes must come after the last traversal"))
	}
	relType, dir, _, err := a.Relationship()
	if err != nil {
		return p.fail(err)
	}
	targets, err := a.Targets()
	if err != nil {
		return p.fail(err)
	}

	seg := segment{assoc: a, relType: relType, dir: dir, targets: targets}
	if len(targets) == 1 {
		seg.model = targets[0]
	}
	for _, opt := range opts {
		opt(&seg)
	}
	if seg.varLength && (seg.minHops < 0 || seg.maxHops < 0 || (seg.maxHops > 0 && seg.maxHops < seg.minHops)) {
		return p.fail(usageErr("assoc", "invalid hop range %d..%d", seg.minHops, seg.maxHops))
	}

	c := p.clone()
	if err := c.claim(seg.node); err != nil {
		return p.fail(err)
	}
	if err := c.claim(seg.rel); err != nil {
		return p.fail(err)
	}
	if c.cur.paginated() || c.cur.distinct {
		frozen := c.cur
		seg.stage = &frozen
		c.cur = stage{}
	}
	c.segs = append(c.segs, seg)
	return c
}

// Where filters the nodes the chain currently yields. Several conditions, and
// several calls, are combined with AND.
func (p *Proxy) Where(conds ...Condition) *Proxy {
	return p.where("where", target{seg: p.terminal()}, conds, false)
}

// WhereNot excludes the nodes matching all of conds.
func (p *Proxy) WhereNot(conds ...Condition) *Proxy {
	return p.where("where_not", target{seg: p.terminal()}, conds, true)
}

// WhereOn filters the node or relationship named ident by As or RelAs.
func (p *Proxy) WhereOn(ident string, conds ...Condition) *Proxy {
	if p.err != nil {
		return p
	}
	t, ok := p.lookup(ident)
	if !ok {
		return p.fail(usageErr("where", "identifier %q is not in scope", ident))
	}
	return p.where("where", t, conds, false)
}

// RelWhere filters the relationship traversed by the last step.
func (p *Proxy) RelWhere(conds ...Condition) *Proxy {
	if p.err != nil {
		return p
	}
	if p.terminal() == 0 {
		return p.fail(usageErr("rel_where", "no relationship has been traversed"))
	}
	return p.where("rel_where", target{seg: p.terminal(), rel: true}, conds, false)
}

func (p *Proxy) where(op string, t target, conds []Condition, negate bool) *Proxy {
	if p.err != nil {
		return p
	}
	if len(conds) == 0 {
		return p.fail(usageErr(op, "no conditions"))
	}
	if t.rel && p.segs[t.seg].varLength {
		return p.fail(usageErr(op, "cannot filter a variable length relationship"))
	}
	var cond Condition = andCond(slices.Clone(conds))
	if len(conds) == 1 {
		cond = conds[0]
	}
	if err := andCond(conds).check(p.explicit); err != nil {
		return p.fail(err)
	}
	if negate {
		cond = Not(cond)
	}
	c := p.clone()
	c.filters = append(c.filters, filter{target: t, cond: cond})
	return c
}

// MatchTo restricts the chain to the given records.
func (p *Proxy) MatchTo(records ...Model) *Proxy {
	return p.Where(Is(records...))
}

// HavingRel keeps nodes that have at least one relationship described by the
// named association of their model. relConds filter that relationship by its
// properties:
//
//	sess.Model(lesson).HavingRel("students", ogm.Gte("since", 2020))
func (p *Proxy) HavingRel(name string, relConds ...Condition) *Proxy {
	return p.havingRel("having_rel", name, relConds, false)
}

// NotHavingRel keeps nodes with no relationship described by the named
// association of their model and matching relConds.
func (p *Proxy) NotHavingRel(name string, relConds ...Condition) *Proxy {
	return p.havingRel("not_having_rel", name, relConds, true)
}

func (p *Proxy) havingRel(op, name string, relConds []Condition, negate bool) *Proxy {
	if p.err != nil {
		return p
	}
	from := p.terminalModel()
	if from == nil {
		return p.fail(usageErr(op, "nodes of unknown or mixed models have no associations"))
	}
	a, ok := p.reg.Association(from, name)
	if !ok {
		return p.fail(usageErr(op, "no association %q on %s", name, from.Name))
	}
	return p.Where(relCond{assoc: a, negate: negate, conds: slices.Clone(relConds)})
}

// OrderAsc orders the nodes the chain yields by props, ascending.
func (p *Proxy) OrderAsc(props ...string) *Proxy {
	return p.order(target{seg: p.terminal()}, props, false)
}

// OrderDesc orders the nodes the chain yields by props, descending.
func (p *Proxy) OrderDesc(props ...string) *Proxy {
	return p.order(target{seg: p.terminal()}, props, true)
}

// OrderOn orders by a property of the node or relationship named ident.
func (p *Proxy) OrderOn(ident, prop string, desc bool) *Proxy {
	if p.err != nil {
		return p
	}
	t, ok := p.lookup(ident)
	if !ok {
		return p.fail(usageErr("order", "identifier %q is not in scope", ident))
	}
	return p.order(t, []string{prop}, desc)
}

func (p *Proxy) order(t target, props []string, desc bool) *Proxy {
	if p.err != nil {
		return p
	}
	if len(props) == 0 {
		return p.fail(usageErr("order", "no properties"))
	}
	c := p.clone()
	for _, prop := range props {
		if prop == "" {
			return p.fail(usageErr("order", "empty property name"))
		}
		c.cur.orders = append(c.cur.orders, orderItem{target: t, prop: prop, desc: desc})
	}
	return c
}

// Skip drops the first n results.
func (p *Proxy) Skip(n int) *Proxy {
	if p.err != nil {
		return p
	}
	if n < 0 {
		return p.fail(usageErr("skip", "negative count %d", n))
	}
	c := p.clone()
	c.cur.skip, c.cur.hasSkip = n, true
	return c
}

// Limit keeps at most n results.
func (p *Proxy) Limit(n int) *Proxy {
	if p.err != nil {
		return p
	}
	if n < 0 {
		return p.fail(usageErr("limit", "negative count %d", n))
	}
	c := p.clone()
	c.cur.limit, c.cur.hasLimit = n, true
	return c
}

// Distinct removes duplicate results.
func (p *Proxy) Distinct() *Proxy {
	if p.err != nil {
		return p
	}
	c := p.clone()
	c.cur.distinct = true
	return c
}

// WithRel makes All and First also return the traversed relationship; see
// Pairs.
func (p *Proxy) WithRel() *Proxy {
	if p.err != nil {
		return p
	}
	if p.terminal() == 0 {
		return p.fail(usageErr("with_rel", "no relationship has been traversed"))
	}
	c := p.clone()
	c.withRel = true
	return c
}

// Include configures one eagerly loaded association. It is handed to the
// block passed to IncludesWith.
type Include struct {
	conds []Condition
	scope []string
	err   error
}

// Where filters the included records.
func (i *Include) Where(conds ...Condition) *Include {
	if i.err != nil {
		return i
	}
	if err := andCond(conds).check(i.scope); err != nil {
		i.err = err
		return i
	}
	i.conds = append(i.conds, conds...)
	return i
}

// Includes is not allowed inside an include block.
func (i *Include) Includes(...string) *Include {
	if i.err == nil {
		i.err = configErr("includes", "nested includes are not supported")
	}
	return i
}

// Includes eagerly loads the named associations of every result in the same
// statement and stores them in the results' association caches.
func (p *Proxy) Includes(names ...string) *Proxy {
	c := p
	for _, name := range names {
		c = c.IncludesWith(name, nil)
	}
	return c
}

// IncludesWith eagerly loads one association, letting block filter it. The
// cache entry written for each result is the one
// sess.Assoc(result, name).Where(conds...) would read, where conds are the
// conditions block passed to Include.Where in a single call.
func (p *Proxy) IncludesWith(name string, block func(*Include)) *Proxy {
	if p.err != nil {
		return p
	}
	from := p.terminalModel()
	if from == nil {
		return p.fail(configErr("includes", "cannot include %q on nodes of unknown or mixed models", name))
	}
	a, ok := p.reg.Association(from, name)
	if !ok {
		return p.fail(usageErr("includes", "no association %q on %s", name, from.Name))
	}
	if a.Target.Any {
		return p.fail(configErr("includes", "association %s leads to any node and cannot be included", a.qualifiedName()))
	}
	for _, inc := range p.includes {
		if inc.name == name {
			return p.fail(usageErr("includes", "association %q included twice", name))
		}
	}
	relType, dir, _, err := a.Relationship()
	if err != nil {
		return p.fail(err)
	}
	targets, err := a.Targets()
	if err != nil {
		return p.fail(err)
	}
	inc := include{name: name, assoc: a, relType: relType, dir: dir, targets: targets}
	if block != nil {
		b := &Include{}
		block(b)
		if b.err != nil {
			return p.fail(b.err)
		}
		inc.conds = b.conds
	}
	c := p.clone()
	c.includes = append(c.includes, inc)
	return c
}
