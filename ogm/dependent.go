package ogm

import (
	"context"
	"log/slog"
	"reflect"
	"slices"

	"github.com/CaliLuke/go-ogm/ast"
)

type visitState int

const (
	statePending visitState = iota
	stateVisiting
	stateDone
)

// DependentResolver destroys records together with the dependents named by
// the dependent policies of their associations. Each record is visited at
// most once per Destroy call, so cyclic dependent graphs terminate.
//
// The whole cascade runs in one transaction. A failure rolls everything
// back and is reported as a CascadeError naming the association that failed.
type DependentResolver struct {
	sess   *Session
	states map[string]visitState
	done   []Model
}

// NewDependentResolver returns a resolver running against sess.
func NewDependentResolver(sess *Session) *DependentResolver {
	return &DependentResolver{sess: sess}
}

// Destroy deletes m and its dependents. Destroyed records are marked as no
// longer persisted once the transaction commits; when Destroy joins an
// enclosing Atomic block that is the outer commit.
func (d *DependentResolver) Destroy(ctx context.Context, m Model) error {
	info, err := d.sess.modelInfo("destroy", m)
	if err != nil {
		return err
	}
	if !m.node().Persisted() {
		return &NotPersistedError{TypeName: info.Name, Op: "destroy"}
	}

	d.states = make(map[string]visitState)
	d.done = d.done[:0]
	return d.sess.Atomic(ctx, func(tx *Session) error {
		run := &DependentResolver{sess: tx, states: d.states}
		err := run.destroy(ctx, m, info)
		d.done = run.done
		if err != nil {
			return err
		}
		destroyed := slices.Clone(run.done)
		tx.AfterCommit(func() {
			for _, rec := range destroyed {
				n := rec.node()
				n.persisted = false
				n.ClearAssociationCache()
			}
		})
		return nil
	})
}

func (d *DependentResolver) destroy(ctx context.Context, m Model, info *ModelInfo) error {
	n := m.node()
	if d.states[n.elementID] != statePending {
		return nil
	}
	d.states[n.elementID] = stateVisiting
	cascadeVisits.Inc()

	for _, a := range d.sess.reg.Associations(info) {
		if a.Dependent == DependentNone {
			continue
		}
		if err := d.cascade(ctx, m, a); err != nil {
			d.sess.logger.Error("dependent cascade failed",
				slog.String("model", info.Name),
				slog.String("association", a.Name),
				slog.String("policy", a.Dependent.String()),
				slog.Any("error", err))
			return &CascadeError{Owner: info.Name, Association: a.Name, Cause: err}
		}
	}

	params := newParamSet()
	stmt, err := statement(ShapeWrite, params,
		ast.MatchClause{
			Patterns: []ast.PathPattern{ast.Path(ast.Node("n1"))},
			Where:    byElementID("n1", n.elementID, params),
		},
		ast.DetachDelete("n1"),
	)
	if err != nil {
		return err
	}
	if _, err := d.sess.run(ctx, WriteAccess, stmt, ""); err != nil {
		return err
	}
	d.states[n.elementID] = stateDone
	d.done = append(d.done, m)
	return nil
}

// cascade applies the policy of a to the records owner reaches through it.
func (d *DependentResolver) cascade(ctx context.Context, owner Model, a *Association) error {
	q := d.sess.FromNode(owner).Assoc(a.Name)
	if a.Dependent.orphansOnly() {
		relType, dir, _, err := a.Relationship()
		if err != nil {
			return err
		}
		q = q.Where(orphanCond{relType: relType, dir: dir})
	}

	if !a.Dependent.destroys() {
		if ids := d.visiting(); len(ids) > 0 {
			q = q.Where(Not(ID(ids...)))
		}
		return q.DeleteAll(ctx)
	}

	deps, err := q.All(ctx)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if d.states[dep.node().elementID] != statePending {
			continue
		}
		info, ok := d.sess.reg.LookupType(reflect.TypeOf(dep))
		if !ok {
			// Unregistered labels have no associations to cascade through.
			info = &ModelInfo{Name: "GenericNode"}
		}
		if err := d.destroy(ctx, dep, info); err != nil {
			return err
		}
	}
	return nil
}

// visiting returns the element ids of records whose destruction is in
// progress. Plain deletes must leave them for their own visit to finish.
func (d *DependentResolver) visiting() []string {
	var ids []string
	for id, st := range d.states {
		if st == stateVisiting {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
