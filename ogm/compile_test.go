package ogm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Chains(t *testing.T) {
	sess, _ := newTestSession(t)

	tests := []struct {
		name  string
		proxy *Proxy
		shape Shape
		want  string
	}{
		{
			name:  "model root",
			proxy: Query[Student](sess),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)\nRETURN n1",
		},
		{
			name:  "two traversals share one match",
			proxy: Query[Student](sess).Assoc("lessons").Assoc("teacher"),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)<-[r2:TEACHES]-(n3:Teacher)\nRETURN n3",
		},
		{
			name:  "origin inverts direction",
			proxy: Query[Lesson](sess).Assoc("students"),
			shape: ShapeNodes,
			want:  "MATCH (n1:Lesson)<-[r1:ENROLLED_IN]-(n2:Student)\nRETURN n2",
		},
		{
			name:  "inherited labels",
			proxy: Query[Manager](sess).Assoc("reports"),
			shape: ShapeNodes,
			want:  "MATCH (n1:Person:Employee:Manager)<-[r1:REPORTS_TO]-(n2:Person:Employee)\nRETURN n2",
		},
		{
			name:  "optional step",
			proxy: Query[Student](sess).Assoc("lessons", Optional()),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)\nOPTIONAL MATCH (n1)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN n2",
		},
		{
			name:  "variable length step",
			proxy: Query[Employee](sess).Assoc("reports", Hops(1, 3)),
			shape: ShapeNodes,
			want:  "MATCH (n1:Person:Employee)<-[r1:REPORTS_TO*1..3]-(n2:Person:Employee)\nRETURN n2",
		},
		{
			name:  "polymorphic target",
			proxy: Query[Student](sess).Assoc("favorites"),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)-[r1:LIKES]->(n2) WHERE (n2:Lesson OR n2:Teacher)\nRETURN n2",
		},
		{
			name:  "any target",
			proxy: Query[Student](sess).Assoc("bookmarks"),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)-[r1:BOOKMARKED]->(n2)\nRETURN n2",
		},
		{
			name:  "pagination before a traversal",
			proxy: Query[Student](sess).OrderAsc("name").Limit(5).Assoc("lessons"),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)\nWITH n1 ORDER BY n1.name LIMIT 5\nMATCH (n1)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN n2",
		},
		{
			name:  "ordering without pagination stays at the end",
			proxy: Query[Student](sess).OrderDesc("name").Assoc("lessons").Skip(2),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN n2 ORDER BY n1.name DESC SKIP 2",
		},
		{
			name:  "distinct",
			proxy: Query[Student](sess).Assoc("lessons").Assoc("students").Distinct(),
			shape: ShapeNodes,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)<-[r2:ENROLLED_IN]-(n3:Student)\nRETURN DISTINCT n3",
		},
		{
			name:  "pairs",
			proxy: Query[Student](sess).Assoc("lessons"),
			shape: ShapePairs,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN n2, r1",
		},
		{
			name:  "rels",
			proxy: Query[Student](sess).Assoc("lessons"),
			shape: ShapeRels,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN r1",
		},
		{
			name:  "count",
			proxy: Query[Student](sess).Assoc("lessons"),
			shape: ShapeCount,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN count(n2) AS result",
		},
		{
			name:  "count of a page",
			proxy: Query[Student](sess).Assoc("lessons").Limit(3),
			shape: ShapeCount,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nWITH n2 LIMIT 3\nRETURN count(n2) AS result",
		},
		{
			name:  "distinct count",
			proxy: Query[Student](sess).Assoc("lessons").Distinct(),
			shape: ShapeCount,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN count(DISTINCT n2) AS result",
		},
		{
			name:  "exists",
			proxy: Query[Student](sess).Assoc("lessons"),
			shape: ShapeExists,
			want:  "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)\nRETURN count(n2) > 0 AS result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.proxy.Err())
			stmt, err := tt.proxy.Compile(tt.shape)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.Text)
			assert.Equal(t, tt.shape, stmt.Shape)
		})
	}
}

func TestCompile_ExplicitIdentifiers(t *testing.T) {
	sess, _ := newTestSession(t)

	p := Query[Student](sess).Named("s").
		Assoc("lessons", NodeAs("l"), RelAs("e")).
		Where(Raw("level > 2")).
		WhereOn("e", Gte("since", 2020)).
		OrderOn("s", "name", false)
	stmt, err := p.Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (s:Student)-[e:ENROLLED_IN]->(l:Lesson) WHERE (l.level > 2) AND e.since >= $e_since\nRETURN l ORDER BY s.name",
		stmt.Text)
	assert.Equal(t, map[string]any{"e_since": 2020}, stmt.ParamMap())
}

func TestCompile_GeneratedNamesSkipExplicitOnes(t *testing.T) {
	sess, _ := newTestSession(t)

	p := Query[Student](sess).Assoc("lessons", NodeAs("n1")).Assoc("teacher")
	stmt, err := p.Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (n2:Student)-[r1:ENROLLED_IN]->(n1:Lesson)<-[r2:TEACHES]-(n3:Teacher)\nRETURN n3",
		stmt.Text)
}

func TestCompile_OwnerRoot(t *testing.T) {
	sess, _ := newTestSession(t)
	s := persisted(&Student{}, "s1", "Student")

	stmt, err := sess.Assoc(s, "lessons").Where(Eq("subject", "Math")).Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid AND n2.subject = $n2_subject\nRETURN n2",
		stmt.Text)
	assert.Equal(t, []Param{{Name: "n1_eid", Value: "s1"}, {Name: "n2_subject", Value: "Math"}}, stmt.Params)
}

func TestCompile_Deterministic(t *testing.T) {
	sess, _ := newTestSession(t)
	s := persisted(&Student{}, "s1", "Student")

	build := func() *Proxy {
		return sess.Assoc(s, "lessons").Where(Eq("subject", "Math"), Gt("level", 1)).OrderAsc("level").Limit(10)
	}
	a, err := build().Compile(ShapeNodes)
	require.NoError(t, err)
	b, err := build().Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t, a.Text, b.Text)
	assert.Equal(t, a.Params, b.Params)

	ka, err := a.CacheKey("lessons")
	require.NoError(t, err)
	kb, err := b.CacheKey("lessons")
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestCompile_BranchingDoesNotLeak(t *testing.T) {
	sess, _ := newTestSession(t)
	s := persisted(&Student{}, "s1", "Student")

	base := sess.Assoc(s, "lessons")
	math := base.Where(Eq("subject", "Math"))
	art := base.Where(Eq("subject", "Art")).Limit(1)

	baseStmt, err := base.Compile(ShapeNodes)
	require.NoError(t, err)
	mathStmt, err := math.Compile(ShapeNodes)
	require.NoError(t, err)
	artStmt, err := art.Compile(ShapeNodes)
	require.NoError(t, err)

	assert.NotContains(t, baseStmt.Text, "subject")
	assert.NotContains(t, baseStmt.Text, "LIMIT")
	assert.NotContains(t, mathStmt.Text, "LIMIT")
	assert.Equal(t, "Math", mathStmt.ParamMap()["n2_subject"])
	assert.Equal(t, "Art", artStmt.ParamMap()["n2_subject"])
	assert.Contains(t, artStmt.Text, "LIMIT 1")
}

func TestCompile_Filters(t *testing.T) {
	sess, _ := newTestSession(t)
	lesson := persisted(&Lesson{}, "l9", "Lesson")

	tests := []struct {
		name   string
		conds  []Condition
		where  string
		params map[string]any
	}{
		{"equality", []Condition{Eq("subject", "Math")}, "n2.subject = $n2_subject", map[string]any{"n2_subject": "Math"}},
		{"nil is null", []Condition{Eq("subject", nil)}, "n2.subject IS NULL", map[string]any{}},
		{"neq nil", []Condition{Neq("subject", nil)}, "n2.subject IS NOT NULL", map[string]any{}},
		{"slice means in", []Condition{Eq("level", []int{1, 2})}, "n2.level IN $n2_level", map[string]any{"n2_level": []int{1, 2}}},
		{"neq slice", []Condition{Neq("level", []int{1})}, "NOT (n2.level IN $n2_level)", map[string]any{"n2_level": []int{1}}},
		{"in", []Condition{In("subject", []string{"a"})}, "n2.subject IN $n2_subject", map[string]any{"n2_subject": []string{"a"}}},
		{"contains", []Condition{Contains("subject", "at")}, "n2.subject CONTAINS $n2_subject", map[string]any{"n2_subject": "at"}},
		{"starts with", []Condition{StartsWith("subject", "M")}, "n2.subject STARTS WITH $n2_subject", map[string]any{"n2_subject": "M"}},
		{
			"repeated property gets suffixed parameters",
			[]Condition{Gte("level", 1), Lt("level", 5)},
			"n2.level >= $n2_level AND n2.level < $n2_level_2",
			map[string]any{"n2_level": 1, "n2_level_2": 5},
		},
		{
			"or",
			[]Condition{Or(Eq("subject", "A"), Eq("subject", "B"))},
			"(n2.subject = $n2_subject OR n2.subject = $n2_subject_2)",
			map[string]any{"n2_subject": "A", "n2_subject_2": "B"},
		},
		{
			"props in key order",
			[]Condition{Props(map[string]any{"subject": "Math", "level": 2})},
			"n2.level = $n2_level AND n2.subject = $n2_subject",
			map[string]any{"n2_level": 2, "n2_subject": "Math"},
		},
		{"identity", []Condition{Is(lesson)}, "elementId(n2) = $n2_eid", map[string]any{"n2_eid": "l9"}},
		{"identities", []Condition{ID("a", "b")}, "elementId(n2) IN $n2_eid", map[string]any{"n2_eid": []string{"a", "b"}}},
		{"raw", []Condition{Raw("size(subject) > 3")}, "size(n2.subject) > 3", map[string]any{}},
		{
			"raw with params",
			[]Condition{RawWith("level > $min", map[string]any{"min": 2})},
			"n2.level > $min",
			map[string]any{"min": 2},
		},
		{
			"odd property names are quoted and sanitized",
			[]Condition{Eq("first-name", "x")},
			"n2.`first-name` = $n2_first_name",
			map[string]any{"n2_first_name": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Query[Student](sess).Assoc("lessons").Where(tt.conds...)
			stmt, err := p.Compile(ShapeNodes)
			require.NoError(t, err)
			assert.Equal(t, "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE "+tt.where+"\nRETURN n2", stmt.Text)
			assert.Equal(t, tt.params, stmt.ParamMap())
		})
	}
}

func TestCompile_NegationAndStructure(t *testing.T) {
	sess, _ := newTestSession(t)

	stmt, err := Query[Lesson](sess).WhereNot(Eq("level", 1)).Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n1:Lesson) WHERE NOT (n1.level = $n1_level)\nRETURN n1", stmt.Text)

	stmt, err = Query[Lesson](sess).HavingRel("comments").Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n1:Lesson) WHERE EXISTS { (n1)-[:HAS_COMMENT]->(:Comment) }\nRETURN n1", stmt.Text)

	stmt, err = Query[Lesson](sess).NotHavingRel("teacher").Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n1:Lesson) WHERE NOT (EXISTS { (n1)<-[:TEACHES]-(:Teacher) })\nRETURN n1", stmt.Text)

	stmt, err = Query[Student](sess).Assoc("lessons").RelWhere(Gt("since", 2000)).Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE r1.since > $r1_since\nRETURN n2", stmt.Text)
}

func TestCompile_Includes(t *testing.T) {
	sess, _ := newTestSession(t)

	stmt, err := Query[Student](sess).Includes("lessons").Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (n1:Student)\n"+
			"OPTIONAL MATCH (n1)-[r1:ENROLLED_IN]->(n2:Lesson)\n"+
			"WITH n1, collect(DISTINCT [r1, n2]) AS inc_lessons\n"+
			"RETURN n1, inc_lessons",
		stmt.Text)

	p := Query[Student](sess).
		IncludesWith("lessons", func(i *Include) { i.Where(Eq("subject", "Math")) }).
		Includes("mentor").
		OrderAsc("name")
	stmt, err = p.Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (n1:Student)\n"+
			"OPTIONAL MATCH (n1)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE n2.subject = $n2_subject\n"+
			"OPTIONAL MATCH (n1)-[r2:MENTORED_BY]->(n3:Teacher)\n"+
			"WITH n1, collect(DISTINCT [r1, n2]) AS inc_lessons, collect(DISTINCT [r2, n3]) AS inc_mentor\n"+
			"RETURN n1, inc_lessons, inc_mentor ORDER BY n1.name",
		stmt.Text)
}

func TestCompile_MatchTo(t *testing.T) {
	sess, _ := newTestSession(t)
	a := persisted(&Lesson{}, "l1", "Lesson")
	b := persisted(&Lesson{}, "l2", "Lesson")

	stmt, err := Query[Student](sess).Assoc("lessons").MatchTo(a, b).Compile(ShapeNodes)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n2) IN $n2_eid\nRETURN n2",
		stmt.Text)
	assert.Equal(t, []string{"l1", "l2"}, stmt.ParamMap()["n2_eid"])

	err = Query[Student](sess).Assoc("lessons").MatchTo(&Lesson{}).Err()
	var usage *UsageError
	assert.ErrorAs(t, err, &usage, "unsaved record")
}

func TestCompile_Writes(t *testing.T) {
	sess, conn := newTestSession(t)
	s := persisted(&Student{}, "s1", "Student")
	ctx := t.Context()

	require.NoError(t, sess.Assoc(s, "lessons").Where(Eq("level", 1)).DeleteAll(ctx))
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid AND n2.level = $n2_level\nDETACH DELETE n2",
		conn.last().Text)

	require.NoError(t, sess.Assoc(s, "lessons").DeleteAllRels(ctx))
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid\nDELETE r1",
		conn.last().Text)

	require.NoError(t, sess.Assoc(s, "lessons").UpdateAll(ctx, map[string]any{"level": 3}))
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid\nSET n2 += $n2_props",
		conn.last().Text)
	assert.Equal(t, map[string]any{"level": 3}, conn.last().Params["n2_props"])

	require.NoError(t, sess.Assoc(s, "lessons").UpdateAllRels(ctx, map[string]any{"since": 2021}))
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid\nSET r1 += $r1_props",
		conn.last().Text)

	var usage *UsageError
	assert.ErrorAs(t, Query[Student](sess).UpdateAllRels(ctx, map[string]any{"x": 1}), &usage, "no traversal")
	assert.ErrorAs(t, sess.Assoc(s, "lessons").UpdateAll(ctx, nil), &usage, "no properties")

	require.NoError(t, sess.Assoc(s, "lessons").OrderAsc("level").Limit(2).DeleteAll(ctx))
	assert.Equal(t,
		"MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid\nWITH n1, r1, n2 ORDER BY n2.level LIMIT 2\nDETACH DELETE n2",
		conn.last().Text)
	assert.Equal(t, WriteAccess, conn.last().Mode)
}

func TestProxy_ChainErrors(t *testing.T) {
	sess, conn := newTestSession(t)
	ctx := t.Context()

	var usage *UsageError
	var cfg *ConfigurationError
	var notReg *NotRegisteredError

	_, err := Query[Student](sess).Assoc("nope").All(ctx)
	assert.True(t, errors.As(err, &usage), "unknown association: %v", err)

	_, err = Query[Student](sess).Where(Raw("x.name = 'a'")).All(ctx)
	assert.True(t, errors.As(err, &usage), "raw ref out of scope: %v", err)

	err = Query[Student](sess).Named("s").Assoc("lessons", NodeAs("s")).Err()
	assert.True(t, errors.As(err, &cfg), "duplicate identifier: %v", err)

	err = Query[Student](sess).Named("match").Err()
	assert.True(t, errors.As(err, &cfg), "reserved identifier: %v", err)

	err = Query[Student](sess).Includes("lessons").Assoc("mentor").Err()
	assert.True(t, errors.As(err, &usage), "traversal after include: %v", err)

	err = Query[Student](sess).Includes("bookmarks").Err()
	assert.True(t, errors.As(err, &cfg), "include of any target: %v", err)

	err = Query[Student](sess).IncludesWith("lessons", func(i *Include) { i.Includes("teacher") }).Err()
	assert.True(t, errors.As(err, &cfg), "nested include: %v", err)

	err = Query[Student](sess).Includes("lessons", "lessons").Err()
	assert.True(t, errors.As(err, &usage), "duplicate include: %v", err)

	err = Query[Student](sess).Assoc("favorites").Assoc("students").Err()
	assert.True(t, errors.As(err, &usage), "traversal from polymorphic step: %v", err)

	err = Query[Student](sess).Limit(-1).Err()
	assert.True(t, errors.As(err, &usage), "negative limit: %v", err)

	err = Query[Student](sess).RelWhere(Eq("since", 1)).Err()
	assert.True(t, errors.As(err, &usage), "rel filter without traversal: %v", err)

	_, err = Query[struct{ Node }](sess).All(ctx)
	assert.True(t, errors.As(err, &notReg), "unregistered model: %v", err)

	_, err = sess.Assoc(&Student{}, "lessons").All(ctx)
	var notPersisted *NotPersistedError
	assert.True(t, errors.As(err, &notPersisted), "unsaved owner: %v", err)

	assert.Empty(t, conn.statements(), "failed chains must not reach the executor")
}

func TestCompile_RawParamsReservedBeforeGeneratedNames(t *testing.T) {
	sess, _ := newTestSession(t)

	for _, p := range []*Proxy{
		Query[Lesson](sess).Where(Eq("subject", "Math")).Where(RawWith("level > $n1_subject", map[string]any{"n1_subject": 3})),
		Query[Lesson](sess).Where(RawWith("level > $n1_subject", map[string]any{"n1_subject": 3})).Where(Eq("subject", "Math")),
	} {
		stmt, err := p.Compile(ShapeNodes)
		require.NoError(t, err)
		assert.Contains(t, stmt.Text, "n1.subject = $n1_subject_2")
		assert.Contains(t, stmt.Text, "n1.level > $n1_subject")
		params := stmt.ParamMap()
		assert.Equal(t, 3, params["n1_subject"])
		assert.Equal(t, "Math", params["n1_subject_2"])
	}

	_, err := Query[Lesson](sess).
		Where(RawWith("level > $min", map[string]any{"min": 1})).
		Where(RawWith("level < $min", map[string]any{"min": 5})).
		Compile(ShapeNodes)
	var usage *UsageError
	assert.True(t, errors.As(err, &usage), "a raw name declared twice: %v", err)
}
