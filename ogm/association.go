package ogm

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/CaliLuke/go-ogm/ast"
	"github.com/jinzhu/inflection"
)

// Direction is the traversal direction of an association, seen from its owner.
type Direction int

const (
	// DirectionUnset is only valid together with an origin association.
	DirectionUnset Direction = iota
	// Outgoing follows relationships starting at the owner.
	Outgoing
	// Incoming follows relationships ending at the owner.
	Incoming
	// Both follows relationships in either direction.
	Both
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "out"
	case Incoming:
		return "in"
	case Both:
		return "both"
	default:
		return "unset"
	}
}

func (d Direction) inverse() Direction {
	switch d {
	case Outgoing:
		return Incoming
	case Incoming:
		return Outgoing
	default:
		return d
	}
}

func (d Direction) astDir() ast.Direction {
	switch d {
	case Outgoing:
		return ast.DirOut
	case Incoming:
		return ast.DirIn
	default:
		return ast.DirBoth
	}
}

// Cardinality tells whether an association yields many records or at most one.
type Cardinality int

const (
	// Many is a has-many association.
	Many Cardinality = iota
	// One is a has-one association: assigning a new target replaces the old one.
	One
)

// DependentPolicy controls what happens to associated records when the owner
// is destroyed.
type DependentPolicy int

const (
	// DependentNone leaves associated records alone.
	DependentNone DependentPolicy = iota
	// DependentDelete detach-deletes every associated record without running
	// their own dependent policies.
	DependentDelete
	// DependentDeleteOrphans is DependentDelete restricted to records with no
	// other relationship of the association's type.
	DependentDeleteOrphans
	// DependentDestroy destroys every associated record, cascading into its
	// own dependent policies.
	DependentDestroy
	// DependentDestroyOrphans is DependentDestroy restricted to orphans.
	DependentDestroyOrphans
)

// String returns the policy name.
func (p DependentPolicy) String() string {
	switch p {
	case DependentDelete:
		return "delete"
	case DependentDeleteOrphans:
		return "delete_orphans"
	case DependentDestroy:
		return "destroy"
	case DependentDestroyOrphans:
		return "destroy_orphans"
	default:
		return "none"
	}
}

func (p DependentPolicy) orphansOnly() bool {
	return p == DependentDeleteOrphans || p == DependentDestroyOrphans
}

func (p DependentPolicy) destroys() bool {
	return p == DependentDestroy || p == DependentDestroyOrphans
}

// Hook runs around relationship creation. A BeforeAdd hook that returns an
// error cancels the association.
type Hook func(ctx context.Context, owner, other Model) error

// VetoFunc adapts a boolean hook: returning false cancels with ErrVeto.
func VetoFunc(fn func(ctx context.Context, owner, other Model) bool) Hook {
	return func(ctx context.Context, owner, other Model) error {
		if !fn(ctx, owner, other) {
			return ErrVeto
		}
		return nil
	}
}

// TargetRef names the model(s) an association leads to. Exactly one form is
// used: a Go type, one or more deferred model names, or any node at all.
// The zero value means "guess from the association name".
type TargetRef struct {
	Names  []string
	GoType reflect.Type
	Any    bool
}

func (t TargetRef) isZero() bool {
	return len(t.Names) == 0 && t.GoType == nil && !t.Any
}

// Association is the descriptor of one declared association. Fields are set
// at declaration time and never change afterwards; only the lazily resolved
// target models and relationship type are filled in on first use.
type Association struct {
	Name        string
	Direction   Direction
	Cardinality Cardinality
	Target      TargetRef
	// RelType is the wire-level relationship type.
	RelType string
	// RelModel names a registered relationship model supplying the type.
	RelModel string
	// Origin names the association on the target model this one is the
	// inverse of.
	Origin    string
	Dependent DependentPolicy
	// Unique creates relationships with MERGE so they are never duplicated.
	Unique    bool
	BeforeAdd Hook
	AfterAdd  Hook

	owner *ModelInfo
	reg   *Registry

	mu      sync.Mutex
	targets atomic.Pointer[[]*ModelInfo]
	rel     atomic.Pointer[relResolution]
}

type relResolution struct {
	relType string
	dir     Direction
	model   *ModelInfo
}

// AssociationOption configures an Association built by HasMany or HasOne.
type AssociationOption func(*Association)

// HasMany declares a has-many association.
func HasMany(dir Direction, name string, opts ...AssociationOption) *Association {
	a := &Association{Name: name, Direction: dir, Cardinality: Many}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasOne declares a has-one association.
func HasOne(dir Direction, name string, opts ...AssociationOption) *Association {
	a := HasMany(dir, name, opts...)
	a.Cardinality = One
	return a
}

// RelType sets the relationship type.
func RelType(relType string) AssociationOption {
	return func(a *Association) { a.RelType = relType }
}

// Via takes the relationship type from a registered relationship model.
func Via(relModel string) AssociationOption {
	return func(a *Association) { a.RelModel = relModel }
}

// OriginOf declares the association as the inverse of another association
// on the target model.
func OriginOf(name string) AssociationOption {
	return func(a *Association) { a.Origin = name }
}

// To names the target model(s). Several names make the association polymorphic.
func To(names ...string) AssociationOption {
	return func(a *Association) { a.Target.Names = append(a.Target.Names, names...) }
}

// ToModel targets the model registered for T.
func ToModel[T any]() AssociationOption {
	return func(a *Association) { a.Target.GoType = reflect.TypeFor[T]() }
}

// ToAny lets the association lead to nodes of any label.
func ToAny() AssociationOption {
	return func(a *Association) { a.Target.Any = true }
}

// WithDependent sets the dependent deletion policy.
func WithDependent(p DependentPolicy) AssociationOption {
	return func(a *Association) { a.Dependent = p }
}

// BeforeAdd sets the hook run before a relationship is created.
func BeforeAdd(h Hook) AssociationOption {
	return func(a *Association) { a.BeforeAdd = h }
}

// AfterAdd sets the hook run after a relationship is created.
func AfterAdd(h Hook) AssociationOption {
	return func(a *Association) { a.AfterAdd = h }
}

// UniqueRel creates relationships with MERGE instead of CREATE.
func UniqueRel() AssociationOption {
	return func(a *Association) { a.Unique = true }
}

// Owner returns the model that declared the association.
func (a *Association) Owner() *ModelInfo { return a.owner }

// validate checks the declaration-time invariants.
func (a *Association) validate(owner string) error {
	subject := owner + "." + a.Name
	if a.Name == "" {
		return configErr(owner, "association without a name")
	}
	sources := 0
	for _, s := range []string{a.RelType, a.RelModel, a.Origin} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return configErr(subject, "needs a relationship type, a relationship model or an origin")
	case sources > 1:
		return configErr(subject, "relationship type, relationship model and origin are mutually exclusive")
	}
	if a.Direction == DirectionUnset && a.Origin == "" {
		return configErr(subject, "no direction")
	}
	if a.Direction < DirectionUnset || a.Direction > Both {
		return configErr(subject, "invalid direction %d", a.Direction)
	}
	targetForms := 0
	if len(a.Target.Names) > 0 {
		targetForms++
	}
	if a.Target.GoType != nil {
		targetForms++
	}
	if a.Target.Any {
		targetForms++
	}
	if targetForms > 1 {
		return configErr(subject, "target must be a type, a list of names, or any")
	}
	if a.Target.Any && a.Origin != "" {
		return configErr(subject, "an origin needs a concrete target model")
	}
	return nil
}

// clone copies the declared fields into a fresh descriptor bound to owner.
func (a *Association) clone(owner *ModelInfo, reg *Registry) *Association {
	return &Association{
		Name:        a.Name,
		Direction:   a.Direction,
		Cardinality: a.Cardinality,
		Target: TargetRef{
			Names:  append([]string(nil), a.Target.Names...),
			GoType: a.Target.GoType,
			Any:    a.Target.Any,
		},
		RelType:   a.RelType,
		RelModel:  a.RelModel,
		Origin:    a.Origin,
		Dependent: a.Dependent,
		Unique:    a.Unique,
		BeforeAdd: a.BeforeAdd,
		AfterAdd:  a.AfterAdd,
		owner:     owner,
		reg:       reg,
	}
}

// Targets resolves the target models. It returns nil for associations that
// lead to any node. Lookups by name happen on first use and are memoized
// once they succeed; a missing model is reported as a ResolutionError.
func (a *Association) Targets() ([]*ModelInfo, error) {
	if t := a.targets.Load(); t != nil {
		return *t, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if t := a.targets.Load(); t != nil {
		return *t, nil
	}
	targets, err := a.resolveTargets()
	if err != nil {
		return nil, err
	}
	a.targets.Store(&targets)
	return targets, nil
}

func (a *Association) resolveTargets() ([]*ModelInfo, error) {
	reg := a.registry()
	switch {
	case a.Target.Any:
		return nil, nil
	case a.Target.GoType != nil:
		info, ok := reg.LookupType(a.Target.GoType)
		if !ok || info.Kind != ModelKindNode {
			return nil, &ResolutionError{Association: a.qualifiedName(), Name: a.Target.GoType.String()}
		}
		return []*ModelInfo{info}, nil
	}

	names := a.Target.Names
	if len(names) == 0 {
		names = []string{toCamelCase(inflection.Singular(a.Name))}
	}
	out := make([]*ModelInfo, 0, len(names))
	for _, name := range names {
		info, ok := reg.Lookup(name)
		if !ok || info.Kind != ModelKindNode {
			return nil, &ResolutionError{Association: a.qualifiedName(), Name: name}
		}
		out = append(out, info)
	}
	return out, nil
}

// TargetModel returns the single target model, or nil when the association
// is polymorphic or leads to any node.
func (a *Association) TargetModel() (*ModelInfo, error) {
	targets, err := a.Targets()
	if err != nil || len(targets) != 1 {
		return nil, err
	}
	return targets[0], nil
}

// Relationship resolves the wire-level relationship type and the effective
// direction. For associations declared through an origin the direction is
// the inverse of the origin's unless set explicitly. The relationship model
// is returned when one is registered for the type.
func (a *Association) Relationship() (relType string, dir Direction, relModel *ModelInfo, err error) {
	res, err := a.resolveRel(0)
	if err != nil {
		return "", DirectionUnset, nil, err
	}
	return res.relType, res.dir, res.model, nil
}

func (a *Association) resolveRel(depth int) (*relResolution, error) {
	if cached := a.rel.Load(); cached != nil {
		return cached, nil
	}
	if depth > 8 {
		return nil, configErr(a.qualifiedName(), "origin chain does not terminate")
	}

	reg := a.registry()
	res := &relResolution{dir: a.Direction}
	switch {
	case a.RelType != "":
		res.relType = a.RelType
		res.model, _ = reg.LookupRelType(a.RelType)
	case a.RelModel != "":
		info, ok := reg.Lookup(a.RelModel)
		if !ok || info.Kind != ModelKindRel {
			return nil, &ResolutionError{Association: a.qualifiedName(), Name: a.RelModel}
		}
		res.relType, res.model = info.RelType, info
	default:
		target, err := a.TargetModel()
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, configErr(a.qualifiedName(), "origin %q needs exactly one target model", a.Origin)
		}
		origin, ok := reg.Association(target, a.Origin)
		if !ok {
			return nil, &ResolutionError{Association: a.qualifiedName(), Name: target.Name + "." + a.Origin}
		}
		ores, err := origin.resolveRel(depth + 1)
		if err != nil {
			return nil, fmt.Errorf("resolving origin of %s: %w", a.qualifiedName(), err)
		}
		res.relType, res.model = ores.relType, ores.model
		if res.dir == DirectionUnset {
			res.dir = ores.dir.inverse()
		}
	}

	// Concurrent resolutions agree; the first one published wins.
	a.rel.CompareAndSwap(nil, res)
	return a.rel.Load(), nil
}

func (a *Association) registry() *Registry {
	if a.reg != nil {
		return a.reg
	}
	return globalRegistry
}

func (a *Association) qualifiedName() string {
	if a.owner == nil {
		return a.Name
	}
	return a.owner.Name + "." + a.Name
}
