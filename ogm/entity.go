package ogm

import "slices"

// Model is the interface satisfied by every node model. Structs become node
// models by embedding Node, directly or through a registered parent model.
type Model interface {
	node() *Node
}

// Node is an embeddable base type for all Go structs mapping to graph nodes.
// It carries the database identity of the record, its label set, and the
// per-instance association cache.
//
// Example usage:
//
//	type Student struct {
//	    ogm.Node `ogm:"label:Student"`
//	    Name     string `ogm:"name"`
//	}
type Node struct {
	elementID string
	id        string
	labels    []string
	persisted bool
	cache     *AssociationCache
}

func (n *Node) node() *Node { return n }

// ElementID returns the database element id, or "" before the first save.
func (n *Node) ElementID() string { return n.elementID }

// ID returns the value of the model's id property (uuid by default).
func (n *Node) ID() string { return n.id }

// Labels returns the labels the record carried when it was loaded.
func (n *Node) Labels() []string { return slices.Clone(n.labels) }

// Persisted reports whether the record exists in the database.
func (n *Node) Persisted() bool { return n.persisted }

// AssociationCache returns the record's association cache, creating it on
// first use.
func (n *Node) AssociationCache() *AssociationCache {
	if n.cache == nil {
		n.cache = NewAssociationCache()
	}
	return n.cache
}

// ClearAssociationCache drops every cached association result.
func (n *Node) ClearAssociationCache() {
	if n.cache != nil {
		n.cache.ClearAll()
	}
}

func (n *Node) setIdentity(elementID string, labels []string) {
	n.elementID = elementID
	n.labels = slices.Clone(labels)
	n.persisted = elementID != ""
}

// GenericNode is the fallback model for records whose labels do not match
// any registered model. It exposes raw properties only.
type GenericNode struct {
	Node
	Props map[string]any
}

// Prop returns a raw property value.
func (g *GenericNode) Prop(name string) any {
	return g.Props[name]
}

// Same reports whether a and b refer to the same database record.
// Equality is by identity, never structural; unsaved records are never the same.
func Same(a, b Model) bool {
	if a == nil || b == nil {
		return false
	}
	na, nb := a.node(), b.node()
	return na.persisted && nb.persisted && na.elementID == nb.elementID
}
