// Package googm provides an object-graph mapper for Neo4j and other
// Cypher-speaking property-graph databases.
//
// Declare nodes and relationships as Go structs with struct tags, declare
// associations between them, and navigate the graph with chained, immutable
// query proxies that compile to a single Cypher statement per traversal.
//
// The module is organized into three packages:
//
//   - [github.com/CaliLuke/go-ogm/ast] - Cypher AST nodes and compiler
//   - [github.com/CaliLuke/go-ogm/ogm] - OGM core: models, associations, query proxies, caching, dependent deletion
//   - [github.com/CaliLuke/go-ogm/driver] - Bolt adapter over the official neo4j Go driver
//
// The ast and ogm packages compile and test without a running database.
// Only the driver integration tests need a Neo4j server.
package googm
