package ogm

import (
	"reflect"
	"slices"
)

// Declare validates and stores associations for a registered node model.
// Names must be unique within one model; a model may redeclare a name it
// inherits, in which case its own declaration wins.
func (r *Registry) Declare(owner *ModelInfo, assocs ...*Association) error {
	if owner == nil || owner.Kind != ModelKindNode {
		return configErr("declare", "associations can only be declared on node models")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	if cur.byType[owner.GoType] != owner {
		return &NotRegisteredError{TypeName: owner.Name}
	}

	set := &associationSet{byName: make(map[string]*Association)}
	if existing, ok := cur.assocs[owner]; ok {
		set.order = slices.Clone(existing.order)
		for _, a := range existing.order {
			set.byName[a.Name] = a
		}
	}

	for _, a := range assocs {
		if a == nil {
			return configErr(owner.Name, "nil association")
		}
		if err := a.validate(owner.Name); err != nil {
			return err
		}
		if _, dup := set.byName[a.Name]; dup {
			return configErr(owner.Name+"."+a.Name, "association declared twice")
		}
		bound := a.clone(owner, r)
		set.order = append(set.order, bound)
		set.byName[a.Name] = bound
	}

	next := cur.clone()
	next.assocs[owner] = set
	r.state.Store(next)
	return nil
}

// Association looks up an association by name on info or, failing that, on
// its ancestors. The nearest declaration wins.
func (r *Registry) Association(info *ModelInfo, name string) (*Association, bool) {
	s := r.snapshot()
	for cur := info; cur != nil; cur = cur.Parent {
		if set, ok := s.assocs[cur]; ok {
			if a, ok := set.byName[name]; ok {
				return a, true
			}
		}
	}
	return nil, false
}

// Associations returns every association visible on info: inherited ones
// first, in declaration order, with redeclared names replaced in place by
// the most specific declaration.
func (r *Registry) Associations(info *ModelInfo) []*Association {
	s := r.snapshot()
	var chain []*ModelInfo
	for cur := info; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)

	var out []*Association
	index := make(map[string]int)
	for _, m := range chain {
		set, ok := s.assocs[m]
		if !ok {
			continue
		}
		for _, a := range set.order {
			if i, seen := index[a.Name]; seen {
				out[i] = a
				continue
			}
			index[a.Name] = len(out)
			out = append(out, a)
		}
	}
	return out
}

// Declare validates and stores associations for T in the global registry.
func Declare[T any](assocs ...*Association) error {
	info, ok := globalRegistry.LookupType(reflect.TypeFor[T]())
	if !ok {
		return &NotRegisteredError{TypeName: reflect.TypeFor[T]().Name()}
	}
	return globalRegistry.Declare(info, assocs...)
}

// MustDeclare is like Declare but panics on error.
func MustDeclare[T any](assocs ...*Association) {
	if err := Declare[T](assocs...); err != nil {
		panic(err)
	}
}

// AssociationsOf returns every association visible on T.
func AssociationsOf[T any]() ([]*Association, error) {
	info, err := ModelOf[T]()
	if err != nil {
		return nil, err
	}
	return globalRegistry.Associations(info), nil
}

// ResolveAssociation looks up an association by name on T, including
// inherited associations.
func ResolveAssociation[T any](name string) (*Association, error) {
	info, err := ModelOf[T]()
	if err != nil {
		return nil, err
	}
	a, ok := globalRegistry.Association(info, name)
	if !ok {
		return nil, usageErr("resolve", "no association %q on %s", name, info.Name)
	}
	return a, nil
}
