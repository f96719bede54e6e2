package ogm

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Shape tags the kind of rows a statement returns. Statements that differ
// only in shape never share a cache entry.
type Shape string

const (
	// ShapeNodes returns the terminal nodes.
	ShapeNodes Shape = "nodes"
	// ShapePairs returns (node, relationship) pairs.
	ShapePairs Shape = "pairs"
	// ShapeRels returns the traversed relationships.
	ShapeRels Shape = "rels"
	// ShapeCount returns a single count.
	ShapeCount Shape = "count"
	// ShapeExists returns a single boolean.
	ShapeExists Shape = "exists"
	// ShapeWrite marks statements that change data. They are never cached.
	ShapeWrite Shape = "write"
)

// pluckShape is the shape of a property projection.
func pluckShape(prop string) Shape {
	return Shape("pluck:" + prop)
}

// Param is one statement parameter. Statements keep parameters in the order
// the compiler introduced them.
type Param struct {
	Name  string
	Value any
}

// Statement is a compiled Cypher statement.
type Statement struct {
	Text   string
	Params []Param
	Shape  Shape
}

// ParamMap returns the parameters as the map executors expect.
func (s *Statement) ParamMap() map[string]any {
	m := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		m[p.Name] = p.Value
	}
	return m
}

// CacheKey identifies one cached association result on one owner.
type CacheKey struct {
	Association string
	Digest      uint64
}

// String formats the key for logs.
func (k CacheKey) String() string {
	return k.Association + "#" + strconv.FormatUint(k.Digest, 16)
}

// CacheKey derives the cache key of the statement for the given association
// name ("" for plain queries). The digest covers the shape tag, the statement
// text and the parameter values in compiled order.
func (s *Statement) CacheKey(association string) (CacheKey, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.EncodeString(string(s.Shape)); err != nil {
		return CacheKey{}, err
	}
	if err := enc.EncodeString(s.Text); err != nil {
		return CacheKey{}, err
	}
	for _, p := range s.Params {
		if err := enc.Encode(p.Value); err != nil {
			return CacheKey{}, fmt.Errorf("encoding parameter %s: %w", p.Name, err)
		}
	}
	return CacheKey{Association: association, Digest: xxhash.Sum64(buf.Bytes())}, nil
}

var paramNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// paramSet collects statement parameters, keeping names unique.
type paramSet struct {
	list  []Param
	names map[string]bool

	// reserved holds caller-chosen names that generated names must avoid
	// even before the caller's parameter is added.
	reserved map[string]bool
}

func newParamSet() *paramSet {
	return &paramSet{names: make(map[string]bool), reserved: make(map[string]bool)}
}

// reserve keeps generated names away from name.
func (ps *paramSet) reserve(name string) {
	ps.reserved[name] = true
}

// add registers value under base, suffixed with _2, _3... on collision, and
// returns the name used.
func (ps *paramSet) add(base string, value any) string {
	base = paramNameSanitizer.ReplaceAllString(base, "_")
	name := base
	for i := 2; ps.names[name] || ps.reserved[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	ps.names[name] = true
	ps.list = append(ps.list, Param{Name: name, Value: value})
	return name
}

// addExact registers a caller-named parameter. Reusing a name is an error.
func (ps *paramSet) addExact(name string, value any) error {
	if ps.names[name] {
		return usageErr("raw", "parameter $%s is defined twice", name)
	}
	ps.names[name] = true
	ps.list = append(ps.list, Param{Name: name, Value: value})
	return nil
}
