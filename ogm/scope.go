package ogm

import (
	"maps"
	"reflect"
)

// ScopeFunc refines a chain whose terminal nodes belong to the model the
// scope was defined on. args are the arguments given to Proxy.Scope.
type ScopeFunc func(p *Proxy, args ...any) *Proxy

// DefineScope stores a named scope for a node model. Scopes are inherited by
// models embedding owner; a model may redefine an inherited name.
func (r *Registry) DefineScope(owner *ModelInfo, name string, fn ScopeFunc) error {
	if owner == nil || owner.Kind != ModelKindNode {
		return configErr("scope", "scopes can only be defined on node models")
	}
	if name == "" {
		return configErr(owner.Name, "scope without a name")
	}
	if fn == nil {
		return configErr(owner.Name+"."+name, "nil scope function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	if cur.byType[owner.GoType] != owner {
		return &NotRegisteredError{TypeName: owner.Name}
	}
	if _, dup := cur.scopes[owner][name]; dup {
		return configErr(owner.Name+"."+name, "scope defined twice")
	}

	set := maps.Clone(cur.scopes[owner])
	if set == nil {
		set = make(map[string]ScopeFunc)
	}
	set[name] = fn

	next := cur.clone()
	next.scopes[owner] = set
	r.state.Store(next)
	return nil
}

// Scope looks up a scope on info or its ancestors. The nearest definition
// wins.
func (r *Registry) Scope(info *ModelInfo, name string) (ScopeFunc, bool) {
	s := r.snapshot()
	for cur := info; cur != nil; cur = cur.Parent {
		if fn, ok := s.scopes[cur][name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// DefineScope stores a named scope for T in the global registry.
func DefineScope[T any](name string, fn ScopeFunc) error {
	info, ok := globalRegistry.LookupType(reflect.TypeFor[T]())
	if !ok {
		return &NotRegisteredError{TypeName: reflect.TypeFor[T]().Name()}
	}
	return globalRegistry.DefineScope(info, name, fn)
}

// Scope applies a named scope of the terminal model. It works the same at
// the start of a chain and after any traversal:
//
//	ogm.Query[Lesson](sess).Scope("level", 3)
//	sess.Assoc(teacher, "lessons").Scope("level", 3).Scope("popular")
func (p *Proxy) Scope(name string, args ...any) *Proxy {
	if p.err != nil {
		return p
	}
	from := p.terminalModel()
	if from == nil {
		return p.fail(usageErr("scope", "nodes of unknown or mixed models have no scopes"))
	}
	fn, ok := p.reg.Scope(from, name)
	if !ok {
		return p.fail(usageErr("scope", "no scope %q on %s", name, from.Name))
	}
	out := fn(p, args...)
	if out == nil {
		return p.fail(usageErr("scope", "scope %s.%s returned no chain", from.Name, name))
	}
	return out
}

// Fail returns a copy of p carrying err. Scope functions use it to reject
// their arguments; the error surfaces from Err and every terminal operation.
func (p *Proxy) Fail(err error) *Proxy {
	if p.err != nil || err == nil {
		return p
	}
	return p.fail(err)
}
