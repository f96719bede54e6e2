package ogm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/CaliLuke/go-ogm/ast"
)

// modelInfo returns the registered model of m.
func (s *Session) modelInfo(op string, m Model) (*ModelInfo, error) {
	if m == nil || reflect.ValueOf(m).IsNil() {
		return nil, usageErr(op, "nil record")
	}
	info, ok := s.reg.LookupType(reflect.TypeOf(m))
	if !ok {
		return nil, &NotRegisteredError{TypeName: typeName(m)}
	}
	return info, nil
}

// statement compiles clauses into a Statement carrying params.
func statement(shape Shape, params *paramSet, clauses ...ast.Clause) (*Statement, error) {
	text, err := (&ast.Compiler{}).CompileClauses(clauses...)
	if err != nil {
		return nil, err
	}
	return &Statement{Text: text, Params: params.list, Shape: shape}, nil
}

func byElementID(ident, elementID string, params *paramSet) ast.Expr {
	return ast.Eq(ast.ElementID(ident), ast.P(params.add(ident+"_eid", elementID)))
}

func firstNode(rows []Row, column string) (NodeRecord, bool) {
	if len(rows) == 0 {
		return NodeRecord{}, false
	}
	switch rec := rows[0][column].(type) {
	case NodeRecord:
		return rec, true
	case *NodeRecord:
		return *rec, true
	}
	return NodeRecord{}, false
}

// Save creates m, or updates the properties of an already persisted m. New
// records get their id property from the mapped field when it is set and
// from a random UUID otherwise. The association cache of m is cleared.
func (s *Session) Save(ctx context.Context, m Model) error {
	info, err := s.modelInfo("save", m)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(m).Elem()
	props := extractProps(v, info)
	n := m.node()

	idField, hasIDField := info.FieldByProp(info.IDProperty)
	id := n.id
	if hasIDField {
		if pid, ok := props[info.IDProperty].(string); ok && pid != "" {
			id = pid
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	props[info.IDProperty] = id

	params := newParamSet()
	var clauses []ast.Clause
	if n.Persisted() {
		clauses = append(clauses, ast.MatchClause{
			Patterns: []ast.PathPattern{ast.Path(ast.Node("n1"))},
			Where:    byElementID("n1", n.elementID, params),
		})
	} else {
		clauses = append(clauses, ast.Create(ast.Path(ast.Node("n1", info.Labels...))))
	}
	clauses = append(clauses,
		ast.Set(ast.MergeProps("n1", ast.P(params.add("n1_props", props)))),
		ast.Return(ast.Var("n1")),
	)
	stmt, err := statement(ShapeWrite, params, clauses...)
	if err != nil {
		return err
	}
	rows, err := s.run(ctx, WriteAccess, stmt, "")
	if err != nil {
		return err
	}
	rec, ok := firstNode(rows, "n1")
	if !ok {
		if n.Persisted() {
			return &NotFoundError{TypeName: info.Name}
		}
		return fmt.Errorf("save %s: no node returned", info.Name)
	}

	n.setIdentity(rec.ElementID, rec.Labels)
	n.id = id
	if hasIDField && idField.FieldType.Kind() == reflect.String && !idField.IsPointer {
		v.FieldByIndex(idField.Index).SetString(id)
	}
	n.ClearAssociationCache()
	return nil
}

// Reload refreshes the properties of m from the database and clears its
// association cache.
func (s *Session) Reload(ctx context.Context, m Model) error {
	info, err := s.modelInfo("reload", m)
	if err != nil {
		return err
	}
	n := m.node()
	if !n.Persisted() {
		return &NotPersistedError{TypeName: info.Name, Op: "reload"}
	}
	params := newParamSet()
	stmt, err := statement(ShapeNodes, params,
		ast.MatchClause{
			Patterns: []ast.PathPattern{ast.Path(ast.Node("n1"))},
			Where:    byElementID("n1", n.elementID, params),
		},
		ast.Return(ast.Var("n1")),
	)
	if err != nil {
		return err
	}
	rows, err := s.run(ctx, ReadAccess, stmt, "")
	if err != nil {
		return err
	}
	rec, ok := firstNode(rows, "n1")
	if !ok {
		return &NotFoundError{TypeName: info.Name}
	}
	if err := s.resolver.refresh(m, rec); err != nil {
		return err
	}
	n.ClearAssociationCache()
	return nil
}

// Destroy deletes m after applying the dependent policies of its
// associations. See DependentResolver.
func (s *Session) Destroy(ctx context.Context, m Model) error {
	return NewDependentResolver(s).Destroy(ctx, m)
}

// --- Association mutation ---

// ownerAssociation validates owner and looks up its association.
func (s *Session) ownerAssociation(op string, owner Model, name string) (*Association, error) {
	info, err := s.modelInfo(op, owner)
	if err != nil {
		return nil, err
	}
	if !owner.node().Persisted() {
		return nil, &NotPersistedError{TypeName: info.Name, Op: op}
	}
	a, ok := s.reg.Association(info, name)
	if !ok {
		return nil, usageErr(op, "no association %q on %s", name, info.Name)
	}
	return a, nil
}

// checkTarget verifies that other can be linked through a.
func (s *Session) checkTarget(op string, a *Association, other Model) error {
	if other == nil || reflect.ValueOf(other).IsNil() {
		return usageErr(op, "nil record")
	}
	if !other.node().Persisted() {
		return &NotPersistedError{TypeName: typeName(other), Op: op}
	}
	targets, err := a.Targets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}
	info, ok := s.reg.LookupType(reflect.TypeOf(other))
	if !ok {
		return usageErr(op, "%s cannot be linked through %s", typeName(other), a.qualifiedName())
	}
	for _, t := range targets {
		if info.IsA(t) {
			return nil
		}
	}
	return usageErr(op, "%s cannot be linked through %s", info.Name, a.qualifiedName())
}

// Associate links owner to others through the named association. BeforeAdd
// hooks run for every record first; if any of them fails nothing is
// written and a HookVetoError is returned. Has-one associations drop their
// previous relationship, on both sides, before the new one is created.
func (s *Session) Associate(ctx context.Context, owner Model, name string, others ...Model) error {
	return s.associate(ctx, "associate", owner, name, nil, others, false)
}

// AssociateWith links owner to other with a relationship carrying the
// properties of rel. On success rel holds the identity of the created
// relationship.
func (s *Session) AssociateWith(ctx context.Context, owner Model, name string, other Model, rel Relationship) error {
	if rel == nil || reflect.ValueOf(rel).IsNil() {
		return usageErr("associate", "nil relationship")
	}
	return s.associate(ctx, "associate", owner, name, rel, []Model{other}, false)
}

// ReplaceWith removes every relationship of the named association from
// owner and links it to others instead, in one transaction.
func (s *Session) ReplaceWith(ctx context.Context, owner Model, name string, others ...Model) error {
	return s.associate(ctx, "replace_with", owner, name, nil, others, true)
}

func (s *Session) associate(ctx context.Context, op string, owner Model, name string, rel Relationship, others []Model, replace bool) error {
	a, err := s.ownerAssociation(op, owner, name)
	if err != nil {
		return err
	}
	relType, dir, _, err := a.Relationship()
	if err != nil {
		return err
	}
	if a.Cardinality == One && len(others) > 1 {
		return usageErr(op, "%s holds at most one record, got %d", a.qualifiedName(), len(others))
	}
	for _, other := range others {
		if err := s.checkTarget(op, a, other); err != nil {
			return err
		}
	}

	var relProps map[string]any
	if rel != nil {
		info, ok := s.reg.LookupType(reflect.TypeOf(rel))
		if !ok {
			return &NotRegisteredError{TypeName: typeName(rel)}
		}
		if info.RelType != relType {
			return usageErr(op, "%s has type %s, %s needs %s", info.Name, info.RelType, a.qualifiedName(), relType)
		}
		relProps = extractProps(reflect.ValueOf(rel).Elem(), info)
	}

	if a.BeforeAdd != nil {
		for _, other := range others {
			if err := a.BeforeAdd(ctx, owner, other); err != nil {
				return &HookVetoError{Association: a.qualifiedName(), Cause: err}
			}
		}
	}

	err = s.Atomic(ctx, func(tx *Session) error {
		if replace || a.Cardinality == One {
			if err := tx.FromNode(owner).Assoc(name).DeleteAllRels(ctx); err != nil {
				return err
			}
		}
		for _, other := range others {
			if err := tx.dropReverseHasOne(ctx, other, relType, dir); err != nil {
				return err
			}
			rec, err := tx.link(ctx, owner, other, relType, dir, relProps, a.Unique)
			if err != nil {
				return err
			}
			if rel != nil {
				rel.rel().setIdentity(rec)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	owner.node().ClearAssociationCache()
	for _, other := range others {
		other.node().ClearAssociationCache()
	}
	if a.AfterAdd != nil {
		for _, other := range others {
			if err := a.AfterAdd(ctx, owner, other); err != nil {
				return fmt.Errorf("after-add hook of %s: %w", a.qualifiedName(), err)
			}
		}
	}
	return nil
}

// dropReverseHasOne deletes the relationship other already holds through a
// has-one association covering the same relationship from its side.
func (s *Session) dropReverseHasOne(ctx context.Context, other Model, relType string, dir Direction) error {
	info, ok := s.reg.LookupType(reflect.TypeOf(other))
	if !ok {
		return nil
	}
	for _, b := range s.reg.Associations(info) {
		if b.Cardinality != One {
			continue
		}
		bt, bd, _, err := b.Relationship()
		if err != nil || bt != relType || bd != dir.inverse() {
			continue
		}
		return s.FromNode(other).Assoc(b.Name).DeleteAllRels(ctx)
	}
	return nil
}

// link creates (or, for unique associations, merges) one relationship.
func (s *Session) link(ctx context.Context, owner, other Model, relType string, dir Direction, props map[string]any, unique bool) (RelRecord, error) {
	params := newParamSet()
	if dir == Both {
		dir = Outgoing
	}
	pattern := ast.Path(ast.Node("n1"), ast.Rel("r1", dir.astDir(), relType), ast.Node("n2"))
	clauses := []ast.Clause{ast.MatchClause{
		Patterns: []ast.PathPattern{ast.Path(ast.Node("n1")), ast.Path(ast.Node("n2"))},
		Where: ast.AllOf(
			byElementID("n1", owner.node().elementID, params),
			byElementID("n2", other.node().elementID, params),
		),
	}}
	if unique {
		clauses = append(clauses, ast.Merge(pattern))
	} else {
		clauses = append(clauses, ast.Create(pattern))
	}
	if len(props) > 0 {
		clauses = append(clauses, ast.Set(ast.MergeProps("r1", ast.P(params.add("r1_props", props)))))
	}
	clauses = append(clauses, ast.Return(ast.Var("r1")))

	stmt, err := statement(ShapeWrite, params, clauses...)
	if err != nil {
		return RelRecord{}, err
	}
	rows, err := s.run(ctx, WriteAccess, stmt, "")
	if err != nil {
		return RelRecord{}, err
	}
	if len(rows) == 0 {
		return RelRecord{}, &NotFoundError{TypeName: typeName(other)}
	}
	switch rec := rows[0]["r1"].(type) {
	case RelRecord:
		return rec, nil
	case *RelRecord:
		return *rec, nil
	}
	return RelRecord{}, nil
}

// Disassociate deletes the relationships of the named association between
// owner and others. The records themselves are kept.
func (s *Session) Disassociate(ctx context.Context, owner Model, name string, others ...Model) error {
	if _, err := s.ownerAssociation("disassociate", owner, name); err != nil {
		return err
	}
	if len(others) == 0 {
		return usageErr("disassociate", "no records")
	}
	if err := s.FromNode(owner).Assoc(name).MatchTo(others...).DeleteAllRels(ctx); err != nil {
		return err
	}
	for _, other := range others {
		other.node().ClearAssociationCache()
	}
	return nil
}
