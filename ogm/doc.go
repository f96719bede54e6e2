// Package ogm maps Go structs onto the nodes and relationships of a
// property graph and navigates them through declared associations.
//
// Models embed Node or Rel and describe their properties with `ogm` struct
// tags. Node models may embed another registered model to inherit its
// labels, properties and associations:
//
//	type Person struct {
//		ogm.Node
//		Name string `ogm:"name"`
//	}
//
//	type Employee struct {
//		Person
//		Title string `ogm:"title"`
//	}
//
// Associations are declared once per model and resolved lazily, so they
// may refer to models registered later:
//
//	ogm.MustRegister[Person]()
//	ogm.MustRegister[Employee]()
//	ogm.Declare[Employee](
//		ogm.HasMany(ogm.Incoming, "reports", ogm.RelType("REPORTS_TO"), ogm.To("Employee")),
//	)
//
// A Proxy is an immutable description of a traversal. Every builder method
// returns a new Proxy, and nothing runs until a terminal method such as
// All, First, Count or Exists is called. A chain of any length compiles to
// one Cypher statement:
//
//	reports, err := sess.Assoc(mgr, "reports").
//		Where(ogm.Eq("title", "Engineer")).
//		OrderAsc("name").
//		All(ctx)
//
// Results are resolved to the most specific registered model whose labels
// the node carries. Association results loaded from a persisted owner are
// cached on the owner until a write through the same session invalidates
// them.
package ogm
