package ogm

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// --- Fixture models ---

type Student struct {
	Node
	Name  string `ogm:"name"`
	Grade int    `ogm:"grade"`
}

type Lesson struct {
	Node
	Subject string `ogm:"subject"`
	Level   int    `ogm:"level"`
}

type Teacher struct {
	Node
	Name string `ogm:"name"`
}

type Comment struct {
	Node
	Body string `ogm:"body"`
}

type EnrolledIn struct {
	Rel   `ogm:"type:ENROLLED_IN"`
	Since int `ogm:"since"`
}

type Person struct {
	Node
	Name string `ogm:"name"`
}

type Employee struct {
	Person
	Title string `ogm:"title"`
}

type Manager struct {
	Employee
	Budget float64 `ogm:"budget"`
}

type Route struct {
	Node
	Code string `ogm:"code"`
}

type Stop struct {
	Node
	Name string `ogm:"name"`
}

func mustRegister[T any](t *testing.T, reg *Registry) *ModelInfo {
	t.Helper()
	info, err := reg.Register(reflect.TypeFor[T]())
	require.NoError(t, err)
	return info
}

// registerTestModels builds a registry holding every fixture model and
// association.
func registerTestModels(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()

	student := mustRegister[Student](t, reg)
	lesson := mustRegister[Lesson](t, reg)
	teacher := mustRegister[Teacher](t, reg)
	comment := mustRegister[Comment](t, reg)
	mustRegister[EnrolledIn](t, reg)
	person := mustRegister[Person](t, reg)
	employee := mustRegister[Employee](t, reg)
	mustRegister[Manager](t, reg)
	route := mustRegister[Route](t, reg)
	stop := mustRegister[Stop](t, reg)

	require.NoError(t, reg.Declare(student,
		HasMany(Outgoing, "lessons", RelType("ENROLLED_IN")),
		HasMany(Outgoing, "favorites", RelType("LIKES"), To("Lesson", "Teacher")),
		HasMany(Outgoing, "bookmarks", RelType("BOOKMARKED"), ToAny()),
		HasOne(Outgoing, "mentor", RelType("MENTORED_BY"), To("Teacher")),
	))
	require.NoError(t, reg.Declare(lesson,
		HasMany(DirectionUnset, "students", OriginOf("lessons"), To("Student")),
		HasOne(DirectionUnset, "teacher", OriginOf("lessons"), To("Teacher")),
		HasMany(Outgoing, "comments", RelType("HAS_COMMENT"), WithDependent(DependentDestroy)),
	))
	require.NoError(t, reg.Declare(teacher,
		HasMany(Outgoing, "lessons", RelType("TEACHES")),
		HasOne(Incoming, "mentee", RelType("MENTORED_BY"), To("Student")),
	))
	require.NoError(t, reg.Declare(comment,
		HasOne(DirectionUnset, "lesson", OriginOf("comments"), WithDependent(DependentDestroy)),
	))
	require.NoError(t, reg.Declare(person,
		HasMany(Both, "friends", RelType("FRIENDS_WITH"), To("Person")),
	))
	require.NoError(t, reg.Declare(employee,
		HasMany(Both, "friends", RelType("COLLEAGUE_OF"), To("Employee")),
		HasMany(Incoming, "reports", RelType("REPORTS_TO"), To("Employee")),
	))
	require.NoError(t, reg.Declare(route,
		HasMany(Outgoing, "stops", RelType("STOPS_AT"), WithDependent(DependentDestroyOrphans)),
	))
	require.NoError(t, reg.Declare(stop,
		HasMany(DirectionUnset, "routes", OriginOf("stops"), To("Route")),
	))
	return reg
}

// --- Mock connection ---

type recorded struct {
	Text   string
	Params map[string]any
	Mode   AccessMode
}

type rule struct {
	match string
	rows  []Row
	err   error
}

type mockConn struct {
	mu        sync.Mutex
	stmts     []recorded
	rules     []rule
	begins    int
	commits   int
	rollbacks int
	closes    int

	commitErr   error
	rollbackErr error
}

// on makes statements containing match return rows. Later rules win.
func (c *mockConn) on(match string, rows ...Row) *mockConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{match: match, rows: rows})
	return c
}

// fail makes statements containing match return err.
func (c *mockConn) fail(match string, err error) *mockConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{match: match, err: err})
	return c
}

func (c *mockConn) Begin(_ context.Context, mode AccessMode) (Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins++
	return &mockTx{conn: c, mode: mode}, nil
}

func (c *mockConn) Close(context.Context) error { return nil }

func (c *mockConn) statements() []recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recorded(nil), c.stmts...)
}

func (c *mockConn) texts() []string {
	var out []string
	for _, s := range c.statements() {
		out = append(out, s.Text)
	}
	return out
}

func (c *mockConn) last() recorded {
	stmts := c.statements()
	if len(stmts) == 0 {
		return recorded{}
	}
	return stmts[len(stmts)-1]
}

// matching returns the recorded statements containing substr.
func (c *mockConn) matching(substr string) []recorded {
	var out []recorded
	for _, s := range c.statements() {
		if strings.Contains(s.Text, substr) {
			out = append(out, s)
		}
	}
	return out
}

type mockTx struct {
	conn *mockConn
	mode AccessMode
	done bool
}

func (tx *mockTx) Execute(_ context.Context, stmt string, params map[string]any) ([]Row, error) {
	c := tx.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stmts = append(c.stmts, recorded{Text: stmt, Params: params, Mode: tx.mode})
	for i := len(c.rules) - 1; i >= 0; i-- {
		if strings.Contains(stmt, c.rules[i].match) {
			return c.rules[i].rows, c.rules[i].err
		}
	}
	return nil, nil
}

func (tx *mockTx) Commit(context.Context) error {
	tx.conn.mu.Lock()
	defer tx.conn.mu.Unlock()
	tx.done = true
	tx.conn.commits++
	return tx.conn.commitErr
}

func (tx *mockTx) Rollback(context.Context) error {
	tx.conn.mu.Lock()
	defer tx.conn.mu.Unlock()
	tx.done = true
	tx.conn.rollbacks++
	return tx.conn.rollbackErr
}

func (tx *mockTx) Close(context.Context) error {
	tx.conn.mu.Lock()
	defer tx.conn.mu.Unlock()
	tx.conn.closes++
	return nil
}

// --- Helpers ---

func newTestSession(t *testing.T) (*Session, *mockConn) {
	t.Helper()
	conn := &mockConn{}
	return NewSession(conn, WithRegistry(registerTestModels(t))), conn
}

func nodeRec(eid string, labels []string, props map[string]any) NodeRecord {
	return NodeRecord{ElementID: eid, Labels: labels, Props: props}
}

// persisted returns m with a database identity, as if loaded.
func persisted[T Model](m T, eid string, labels ...string) T {
	m.node().setIdentity(eid, labels)
	return m
}

func studentRec(eid, name string) NodeRecord {
	return nodeRec(eid, []string{"Student"}, map[string]any{"uuid": "u-" + eid, "name": name})
}

func lessonRec(eid, subject string) NodeRecord {
	return nodeRec(eid, []string{"Lesson"}, map[string]any{"uuid": "u-" + eid, "subject": subject})
}
