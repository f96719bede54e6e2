package ogm

import (
	"fmt"
	"maps"
	"reflect"
)

// NodeRecord is a node as returned by an Executor.
type NodeRecord struct {
	ElementID string
	Labels    []string
	Props     map[string]any
}

// RelRecord is a relationship as returned by an Executor.
type RelRecord struct {
	ElementID      string
	Type           string
	StartElementID string
	EndElementID   string
	Props          map[string]any
}

// Resolver turns records into model instances, choosing for every node the
// most specific registered model its labels satisfy.
type Resolver struct {
	reg *Registry
}

// NewResolver creates a resolver over reg, or over the default registry
// when reg is nil.
func NewResolver(reg *Registry) *Resolver {
	if reg == nil {
		reg = globalRegistry
	}
	return &Resolver{reg: reg}
}

// Node builds the model instance for a node record. Records matching no
// registered model, or matching two equally specific ones, become
// *GenericNode.
func (r *Resolver) Node(rec NodeRecord) (Model, error) {
	info := r.reg.ResolveLabels(rec.Labels)
	if info == nil {
		g := &GenericNode{Props: maps.Clone(rec.Props)}
		g.setIdentity(rec.ElementID, rec.Labels)
		g.id = idString(rec.Props[DefaultIDProperty])
		return g, nil
	}

	v := reflect.New(info.GoType)
	if err := hydrateFields(v.Elem(), info, rec.Props); err != nil {
		return nil, err
	}
	m, ok := v.Interface().(Model)
	if !ok {
		return nil, fmt.Errorf("model %s does not implement ogm.Model", info.Name)
	}
	n := m.node()
	n.setIdentity(rec.ElementID, rec.Labels)
	n.id = idString(rec.Props[info.IDProperty])
	return m, nil
}

// Rel builds the model instance for a relationship record. Types without a
// registered relationship model become *GenericRel.
func (r *Resolver) Rel(rec RelRecord) (Relationship, error) {
	info, ok := r.reg.LookupRelType(rec.Type)
	if !ok {
		g := &GenericRel{Props: maps.Clone(rec.Props)}
		g.setIdentity(rec)
		return g, nil
	}

	v := reflect.New(info.GoType)
	if err := hydrateFields(v.Elem(), info, rec.Props); err != nil {
		return nil, err
	}
	rel, ok := v.Interface().(Relationship)
	if !ok {
		return nil, fmt.Errorf("model %s does not implement ogm.Relationship", info.Name)
	}
	rel.rel().setIdentity(rec)
	return rel, nil
}

// Value resolves a column value: records become model instances, lists are
// resolved element by element and anything else is returned unchanged.
func (r *Resolver) Value(v any) (any, error) {
	switch x := v.(type) {
	case NodeRecord:
		return r.Node(x)
	case *NodeRecord:
		return r.Node(*x)
	case RelRecord:
		return r.Rel(x)
	case *RelRecord:
		return r.Rel(*x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			res, err := r.Value(item)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	default:
		return v, nil
	}
}

// refresh loads a node record into an existing instance of the record's
// model, keeping the instance's identity.
func (r *Resolver) refresh(m Model, rec NodeRecord) error {
	if g, ok := m.(*GenericNode); ok {
		g.Props = maps.Clone(rec.Props)
		g.setIdentity(rec.ElementID, rec.Labels)
		return nil
	}
	info, ok := r.reg.LookupType(reflect.TypeOf(m))
	if !ok {
		return &NotRegisteredError{TypeName: typeName(m)}
	}
	if err := hydrateFields(reflect.ValueOf(m).Elem(), info, rec.Props); err != nil {
		return err
	}
	n := m.node()
	n.setIdentity(rec.ElementID, rec.Labels)
	n.id = idString(rec.Props[info.IDProperty])
	return nil
}

func idString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// As converts a resolved model to *T. Instances of models that embed T are
// converted to a pointer to their embedded T.
func As[T any](m Model) (*T, bool) {
	if m == nil {
		return nil, false
	}
	if t, ok := any(m).(*T); ok {
		return t, true
	}
	want := reflect.TypeFor[T]()
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, false
	}
	v = v.Elem()
	for v.Kind() == reflect.Struct {
		var next reflect.Value
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if !f.Anonymous || f.Type.Kind() != reflect.Struct {
				continue
			}
			if f.Type == want {
				return v.Field(i).Addr().Interface().(*T), true
			}
			if f.Type != nodeBaseType {
				next = v.Field(i)
			}
		}
		if !next.IsValid() {
			break
		}
		v = next
	}
	return nil, false
}
