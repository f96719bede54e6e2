package ogm

// Relationship is the interface satisfied by every relationship model.
// Structs become relationship models by embedding Rel.
type Relationship interface {
	rel() *Rel
}

// Rel is an embeddable base type for Go structs mapping to graph
// relationships with properties.
//
// Example usage:
//
//	type Enrollment struct {
//	    ogm.Rel `ogm:"type:ENROLLED_IN"`
//	    Grade   string `ogm:"grade"`
//	}
type Rel struct {
	elementID string
	relType   string
	startID   string
	endID     string
	persisted bool
}

func (r *Rel) rel() *Rel { return r }

// ElementID returns the database element id of the relationship.
func (r *Rel) ElementID() string { return r.elementID }

// Type returns the relationship type the record was loaded with.
func (r *Rel) Type() string { return r.relType }

// StartElementID returns the element id of the start node.
func (r *Rel) StartElementID() string { return r.startID }

// EndElementID returns the element id of the end node.
func (r *Rel) EndElementID() string { return r.endID }

// Persisted reports whether the relationship exists in the database.
func (r *Rel) Persisted() bool { return r.persisted }

func (r *Rel) setIdentity(rec RelRecord) {
	r.elementID = rec.ElementID
	r.relType = rec.Type
	r.startID = rec.StartElementID
	r.endID = rec.EndElementID
	r.persisted = rec.ElementID != ""
}

// GenericRel is the fallback model for relationships whose type has no
// registered relationship model.
type GenericRel struct {
	Rel
	Props map[string]any
}

// Prop returns a raw property value.
func (g *GenericRel) Prop(name string) any {
	return g.Props[name]
}

// SameRel reports whether a and b refer to the same relationship record.
func SameRel(a, b Relationship) bool {
	if a == nil || b == nil {
		return false
	}
	ra, rb := a.rel(), b.rel()
	return ra.persisted && rb.persisted && ra.elementID == rb.elementID
}
