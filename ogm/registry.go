package ogm

import (
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

var globalRegistry = NewRegistry()

// Registry maps Go struct types to model metadata, label sets to node models,
// relationship types to relationship models, and models to their declared
// associations.
//
// Reads never lock: the registry state is an immutable snapshot swapped
// atomically on every write. Writes are serialized by a mutex and are
// expected to happen while the application declares its models.
type Registry struct {
	mu    sync.Mutex
	state atomic.Pointer[registryState]
}

type registryState struct {
	byType    map[reflect.Type]*ModelInfo
	byName    map[string]*ModelInfo
	byRelType map[string]*ModelInfo
	nodes     []*ModelInfo
	assocs    map[*ModelInfo]*associationSet
	scopes    map[*ModelInfo]map[string]ScopeFunc
	// labelMemo caches ResolveLabels results for this snapshot only.
	labelMemo *sync.Map
}

type associationSet struct {
	order  []*Association
	byName map[string]*Association
}

func emptyState() *registryState {
	return &registryState{
		byType:    make(map[reflect.Type]*ModelInfo),
		byName:    make(map[string]*ModelInfo),
		byRelType: make(map[string]*ModelInfo),
		assocs:    make(map[*ModelInfo]*associationSet),
		scopes:    make(map[*ModelInfo]map[string]ScopeFunc),
		labelMemo: &sync.Map{},
	}
}

// clone returns a shallow copy whose maps can be modified without affecting
// readers of the original snapshot.
func (s *registryState) clone() *registryState {
	return &registryState{
		byType:    maps.Clone(s.byType),
		byName:    maps.Clone(s.byName),
		byRelType: maps.Clone(s.byRelType),
		nodes:     slices.Clone(s.nodes),
		assocs:    maps.Clone(s.assocs),
		scopes:    maps.Clone(s.scopes),
		labelMemo: &sync.Map{},
	}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.state.Store(emptyState())
	return r
}

// DefaultRegistry returns the process-wide registry used by the package-level
// helpers.
func DefaultRegistry() *Registry {
	return globalRegistry
}

func (r *Registry) snapshot() *registryState {
	return r.state.Load()
}

// Register adds a Go struct type to the registry. Registering the same type
// twice returns the existing metadata.
func (r *Registry) Register(t reflect.Type) (*ModelInfo, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	if existing, ok := cur.byType[t]; ok {
		return existing, nil
	}

	info, err := ExtractModelInfo(t, func(pt reflect.Type) (*ModelInfo, bool) {
		p, ok := cur.byType[pt]
		return p, ok
	})
	if err != nil {
		return nil, configErr(t.Name(), "%v", err)
	}

	if existing, ok := cur.byName[info.Name]; ok {
		return nil, configErr(info.Name, "model name already registered to %s", existing.GoType)
	}

	next := cur.clone()
	switch info.Kind {
	case ModelKindNode:
		key := labelKey(info.Labels)
		for _, other := range cur.nodes {
			if labelKey(other.Labels) == key {
				return nil, configErr(info.Name, "label set %v already registered to %s", info.Labels, other.Name)
			}
		}
		next.nodes = append(next.nodes, info)
	case ModelKindRel:
		if existing, ok := cur.byRelType[info.RelType]; ok {
			return nil, configErr(info.Name, "relationship type %q already registered to %s", info.RelType, existing.Name)
		}
		next.byRelType[info.RelType] = info
	}
	next.byType[t] = info
	next.byName[info.Name] = info
	r.state.Store(next)
	return info, nil
}

// Lookup retrieves ModelInfo by Go type name.
func (r *Registry) Lookup(name string) (*ModelInfo, bool) {
	info, ok := r.snapshot().byName[name]
	return info, ok
}

// LookupType retrieves ModelInfo for a given Go reflect.Type.
func (r *Registry) LookupType(t reflect.Type) (*ModelInfo, bool) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	info, ok := r.snapshot().byType[t]
	return info, ok
}

// LookupRelType retrieves the relationship model registered for a type.
func (r *Registry) LookupRelType(relType string) (*ModelInfo, bool) {
	info, ok := r.snapshot().byRelType[relType]
	return info, ok
}

// Models returns every registered model in registration order, node models
// first.
func (r *Registry) Models() []*ModelInfo {
	s := r.snapshot()
	out := slices.Clone(s.nodes)
	rels := make([]*ModelInfo, 0, len(s.byRelType))
	for _, info := range s.byRelType {
		rels = append(rels, info)
	}
	slices.SortFunc(rels, func(a, b *ModelInfo) int { return strings.Compare(a.RelType, b.RelType) })
	return append(out, rels...)
}

// ResolveLabels returns the most specific node model whose label set is a
// subset of labels. It returns nil when no model matches or when two models
// of the same specificity both match.
func (r *Registry) ResolveLabels(labels []string) *ModelInfo {
	s := r.snapshot()
	key := labelKey(labels)
	if v, ok := s.labelMemo.Load(key); ok {
		return v.(*ModelInfo)
	}

	var best *ModelInfo
	tie := false
	for _, info := range s.nodes {
		if !subsetOf(info.Labels, labels) {
			continue
		}
		switch {
		case best == nil || len(info.Labels) > len(best.Labels):
			best, tie = info, false
		case len(info.Labels) == len(best.Labels):
			tie = true
		}
	}
	if tie {
		best = nil
	}
	s.labelMemo.Store(key, best)
	return best
}

// Clear removes every model and association from the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Store(emptyState())
}

func labelKey(labels []string) string {
	sorted := slices.Clone(labels)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), "\x00")
}

func subsetOf(sub, set []string) bool {
	for _, l := range sub {
		if !slices.Contains(set, l) {
			return false
		}
	}
	return true
}

// Register adds a Go struct type to the global registry as a graph model.
// The type T must embed Node, Rel, or an already registered model.
func Register[T any]() error {
	_, err := globalRegistry.Register(reflect.TypeFor[T]())
	return err
}

// MustRegister is a helper that calls Register and panics if an error occurs.
// It is intended for use during application initialization.
func MustRegister[T any]() {
	if err := Register[T](); err != nil {
		panic(err)
	}
}

// Lookup retrieves ModelInfo for a Go type name from the global registry.
func Lookup(name string) (*ModelInfo, bool) {
	return globalRegistry.Lookup(name)
}

// LookupType retrieves ModelInfo for a given Go reflect.Type from the global registry.
func LookupType(t reflect.Type) (*ModelInfo, bool) {
	return globalRegistry.LookupType(t)
}

// ModelOf returns the registered metadata of T.
func ModelOf[T any]() (*ModelInfo, error) {
	t := reflect.TypeFor[T]()
	info, ok := globalRegistry.LookupType(t)
	if !ok {
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		return nil, &NotRegisteredError{TypeName: t.Name()}
	}
	return info, nil
}

// RegisteredTypes returns every model in the global registry.
func RegisteredTypes() []*ModelInfo {
	return globalRegistry.Models()
}

// ClearRegistry removes all registered models and associations.
// Primarily used in tests.
func ClearRegistry() {
	globalRegistry.Clear()
}
