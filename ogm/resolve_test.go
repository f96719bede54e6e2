package ogm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_MostSpecificModel(t *testing.T) {
	r := NewResolver(registerTestModels(t))

	tests := []struct {
		name   string
		labels []string
		want   any
	}{
		{"exact", []string{"Person", "Employee", "Manager"}, &Manager{}},
		{"label order does not matter", []string{"Manager", "Person", "Employee"}, &Manager{}},
		{"extra labels", []string{"Person", "Employee", "Contractor"}, &Employee{}},
		{"parent only", []string{"Person"}, &Person{}},
		{"subclass label without parent label", []string{"Employee"}, &GenericNode{}},
		{"unknown", []string{"Planet"}, &GenericNode{}},
		{"no labels", nil, &GenericNode{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := r.Node(NodeRecord{ElementID: "x", Labels: tt.labels, Props: map[string]any{"name": "Ann"}})
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
			assert.Equal(t, "x", m.node().ElementID())
			assert.True(t, m.node().Persisted())
		})
	}
}

type Amphibian struct {
	Node `ogm:"label:Animal:Swimmer"`
}

type Walker struct {
	Node `ogm:"label:Animal:Walker"`
}

func TestResolver_TieIsGeneric(t *testing.T) {
	reg := NewRegistry()
	mustRegister[Amphibian](t, reg)
	mustRegister[Walker](t, reg)
	r := NewResolver(reg)

	m, err := r.Node(NodeRecord{ElementID: "f1", Labels: []string{"Animal", "Swimmer", "Walker"}})
	require.NoError(t, err)
	assert.IsType(t, &GenericNode{}, m)

	m, err = r.Node(NodeRecord{ElementID: "f2", Labels: []string{"Animal", "Walker"}})
	require.NoError(t, err)
	assert.IsType(t, &Walker{}, m)
}

func TestResolver_Hydrates(t *testing.T) {
	r := NewResolver(registerTestModels(t))

	m, err := r.Node(NodeRecord{
		ElementID: "m1",
		Labels:    []string{"Person", "Employee", "Manager"},
		Props:     map[string]any{"uuid": "u-m1", "name": "Ann", "title": "CTO", "budget": int64(10)},
	})
	require.NoError(t, err)
	mgr := m.(*Manager)
	assert.Equal(t, "Ann", mgr.Name)
	assert.Equal(t, "CTO", mgr.Title)
	assert.Equal(t, 10.0, mgr.Budget)
	assert.Equal(t, "u-m1", mgr.ID())
	assert.Equal(t, []string{"Person", "Employee", "Manager"}, mgr.Labels())

	_, err = r.Node(NodeRecord{ElementID: "s2", Labels: []string{"Student"}, Props: map[string]any{"grade": "first"}})
	var he *HydrationError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "Student", he.TypeName)
	assert.Equal(t, "Grade", he.Field)
}

func TestResolver_Rel(t *testing.T) {
	r := NewResolver(registerTestModels(t))

	rel, err := r.Rel(enrolledRec("e1", "s1", "l1", 2020))
	require.NoError(t, err)
	e, ok := rel.(*EnrolledIn)
	require.True(t, ok)
	assert.Equal(t, 2020, e.Since)
	assert.Equal(t, "ENROLLED_IN", e.Type())

	rel, err = r.Rel(RelRecord{ElementID: "x1", Type: "LIKES", Props: map[string]any{"stars": 5}})
	require.NoError(t, err)
	g, ok := rel.(*GenericRel)
	require.True(t, ok)
	assert.Equal(t, 5, g.Prop("stars"))
	assert.Equal(t, "LIKES", g.Type())
}

func TestResolver_Value(t *testing.T) {
	r := NewResolver(registerTestModels(t))

	v, err := r.Value([]any{studentRec("s1", "Ann"), &NodeRecord{ElementID: "l1", Labels: []string{"Lesson"}}, int64(3), nil})
	require.NoError(t, err)
	list := v.([]any)
	require.Len(t, list, 4)
	assert.IsType(t, &Student{}, list[0])
	assert.IsType(t, &Lesson{}, list[1])
	assert.Equal(t, int64(3), list[2])
	assert.Nil(t, list[3])
}

func TestAs(t *testing.T) {
	mgr := &Manager{Budget: 1}
	mgr.Name = "Ann"

	p, ok := As[Person](mgr)
	require.True(t, ok)
	assert.Equal(t, "Ann", p.Name)

	e, ok := As[Employee](mgr)
	require.True(t, ok)
	assert.Same(t, &mgr.Employee, e)

	m, ok := As[Manager](mgr)
	require.True(t, ok)
	assert.Same(t, mgr, m)

	_, ok = As[Lesson](mgr)
	assert.False(t, ok)
	_, ok = As[Person](nil)
	assert.False(t, ok)
}

func TestSame(t *testing.T) {
	a := persisted(&Student{}, "s1", "Student")
	b := persisted(&Student{Name: "other instance"}, "s1", "Student")
	c := persisted(&Student{}, "s2", "Student")

	assert.True(t, Same(a, b))
	assert.False(t, Same(a, c))
	assert.False(t, Same(&Student{}, &Student{}))
	assert.False(t, Same(a, nil))
}
