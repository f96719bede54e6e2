package ast

import (
	"strings"
	"testing"
	"time"
)

func TestCompiler_MatchClause(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		node QueryNode
		want string
	}{
		{
			name: "single labelled node",
			node: Match(Path(Node("n1", "Student"))),
			want: "MATCH (n1:Student)",
		},
		{
			name: "multiple labels",
			node: Match(Path(Node("n1", "User", "Admin"))),
			want: "MATCH (n1:User:Admin)",
		},
		{
			name: "outgoing traversal",
			node: Match(Path(Node("n1", "Student"), Rel("r1", DirOut, "ENROLLED_IN"), Node("n2", "Lesson"))),
			want: "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson)",
		},
		{
			name: "incoming traversal",
			node: Match(Path(Node("n1"), Rel("r1", DirIn, "TEACHES"), Node("n2"))),
			want: "MATCH (n1)<-[r1:TEACHES]-(n2)",
		},
		{
			name: "undirected anonymous relationship",
			node: Match(Path(Node("n1"), Rel("", DirBoth), Node("n2"))),
			want: "MATCH (n1)--(n2)",
		},
		{
			name: "optional with where",
			node: MatchClause{
				Optional: true,
				Patterns: []PathPattern{Path(Node("n1"), Rel("r1", DirOut, "KNOWS"), Node("n2"))},
				Where:    Eq(Prop("n2", "name"), P("n2_name")),
			},
			want: "OPTIONAL MATCH (n1)-[r1:KNOWS]->(n2) WHERE n2.name = $n2_name",
		},
		{
			name: "two patterns",
			node: Match(Path(Node("a", "A")), Path(Node("b", "B"))),
			want: "MATCH (a:A), (b:B)",
		},
		{
			name: "reserved label is quoted",
			node: Match(Path(Node("n1", "Match"))),
			want: "MATCH (n1:`Match`)",
		},
		{
			name: "keyword relationship type and parameter stay bare",
			node: MatchClause{
				Patterns: []PathPattern{Path(Node("n1"), Rel("r1", DirOut, "CONTAINS"), Node("n2"))},
				Where:    Eq(Prop("n2", "limit"), P("limit")),
			},
			want: "MATCH (n1)-[r1:CONTAINS]->(n2) WHERE n2.`limit` = $limit",
		},
		{
			name: "relationship type with spaces is quoted",
			node: Match(Path(Node("n1"), Rel("r1", DirOut, "WORKS WITH"), Node("n2"))),
			want: "MATCH (n1)-[r1:`WORKS WITH`]->(n2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compile(tt.node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestCompiler_VariableLength(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		rel  RelPattern
		want string
	}{
		{"unbounded", RelPattern{Var: "r1", Types: []string{"NEXT"}, Dir: DirOut, VarLength: true}, "-[r1:NEXT*]->"},
		{"bounded", RelPattern{Var: "r1", Types: []string{"NEXT"}, Dir: DirOut, VarLength: true, MinHops: 1, MaxHops: 3}, "-[r1:NEXT*1..3]->"},
		{"min only", RelPattern{Types: []string{"NEXT"}, Dir: DirIn, VarLength: true, MinHops: 2}, "<-[:NEXT*2..]-"},
		{"multiple types", RelPattern{Var: "r", Types: []string{"A", "B"}, Dir: DirBoth}, "-[r:A|B]-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compile(tt.rel)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompiler_Projections(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		node QueryNode
		want string
	}{
		{
			name: "simple return",
			node: Return(Var("n1")),
			want: "RETURN n1",
		},
		{
			name: "distinct return with order skip limit",
			node: ReturnClause{Projection: Projection{
				Distinct: true,
				Items:    Items(Var("n2")),
				OrderBy:  []OrderItem{Asc(Prop("n2", "name")), Desc(Prop("n2", "age"))},
				Skip:     Lit(10),
				Limit:    Lit(5),
			}},
			want: "RETURN DISTINCT n2 ORDER BY n2.name, n2.age DESC SKIP 10 LIMIT 5",
		},
		{
			name: "aliased aggregate",
			node: ReturnClause{Projection: Projection{
				Items: []ProjectionItem{As(FnDistinct("count", Var("n2")), "result")},
			}},
			want: "RETURN count(DISTINCT n2) AS result",
		},
		{
			name: "with collect",
			node: WithClause{Projection: Projection{
				Items: []ProjectionItem{
					{Expr: Var("n2")},
					As(FnDistinct("collect", List{Items: []Expr{Var("r3"), Var("n3")}}), "inc_teachers"),
				},
			}},
			want: "WITH n2, collect(DISTINCT [r3, n3]) AS inc_teachers",
		},
		{
			name: "with where",
			node: WithClause{
				Projection: Projection{Items: Items(Var("n1")), Limit: P("limit")},
				Where:      NullCheck{Expr: Prop("n1", "deleted_at")},
			},
			want: "WITH n1 LIMIT $limit WHERE n1.deleted_at IS NULL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compile(tt.node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestCompiler_Mutations(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		node QueryNode
		want string
	}{
		{"detach delete", DetachDelete("n1", "n2"), "DETACH DELETE n1, n2"},
		{"delete", Delete("r1"), "DELETE r1"},
		{
			"create relationship",
			Create(Path(Node("a"), Rel("r", DirOut, "ENROLLED_IN"), Node("b"))),
			"CREATE (a)-[r:ENROLLED_IN]->(b)",
		},
		{
			"merge relationship",
			Merge(Path(Node("a"), Rel("r", DirOut, "ENROLLED_IN"), Node("b"))),
			"MERGE (a)-[r:ENROLLED_IN]->(b)",
		},
		{
			"set assignments",
			Set(Assign(Prop("n1", "name"), P("name")), MergeProps("r1", P("props"))),
			"SET n1.name = $name, r1 += $props",
		},
		{"raw clause", RawClause{Text: "CALL db.labels()"}, "CALL db.labels()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compile(tt.node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompiler_Expressions(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"in", In(Prop("n1", "id"), P("ids")), "n1.id IN $ids"},
		{"is not null", NullCheck{Expr: Prop("n1", "x"), Negated: true}, "n1.x IS NOT NULL"},
		{"and", And{Exprs: []Expr{Eq(Prop("n", "a"), Lit(1)), Eq(Prop("n", "b"), Lit(2))}}, "n.a = 1 AND n.b = 2"},
		{"empty and", And{}, "true"},
		{"or", AnyOf(Eq(Prop("n", "a"), Lit(1)), Eq(Prop("n", "b"), Lit(2))), "(n.a = 1 OR n.b = 2)"},
		{"and wraps raw", And{Exprs: []Expr{Raw{Text: "a OR b"}, Eq(Prop("n", "c"), Lit(true))}}, "(a OR b) AND n.c = true"},
		{"not", Not{Expr: Eq(Prop("n", "a"), Lit("x"))}, "NOT (n.a = 'x')"},
		{"labels", HasLabels{Var: "n2", Labels: []string{"A", "B"}}, "n2:A:B"},
		{"element id", Eq(ElementID("n1"), P("n1_eid")), "elementId(n1) = $n1_eid"},
		{
			"exists subquery",
			Not{Expr: Exists{Pattern: Path(Node("n1"), Rel("", DirOut, "STOPS_AT"), Node("n2"), Rel("", DirIn, "STOPS_AT"), Node(""))}},
			"NOT (EXISTS { (n1)-[:STOPS_AT]->(n2)<-[:STOPS_AT]-() })",
		},
		{"quoted property", Prop("n1", "first name"), "n1.`first name`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compile(tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompiler_Errors(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		node QueryNode
		msg  string
	}{
		{"empty match", MatchClause{}, "without patterns"},
		{"empty return", ReturnClause{}, "return without items"},
		{"path ending in rel", Path(Node("a"), Rel("r", DirOut, "X")), "must end with a node"},
		{"path starting with rel", Path(Rel("r", DirOut, "X"), Node("a")), "alternating"},
		{"label predicate without labels", HasLabels{Var: "n"}, "without labels"},
		{"empty delete", DeleteClause{}, "without variables"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.node)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestCompiler_Statement(t *testing.T) {
	c := &Compiler{}
	stmt := Statement{Clauses: []Clause{
		MatchClause{
			Patterns: []PathPattern{Path(Node("n1", "Student"), Rel("r1", DirOut, "ENROLLED_IN"), Node("n2", "Lesson"))},
			Where:    AllOf(Eq(ElementID("n1"), P("n1_eid")), Eq(Prop("n2", "subject"), P("n2_subject"))),
		},
		ReturnClause{Projection: Projection{Items: Items(Var("n2")), Limit: Lit(1)}},
	}}
	got, err := c.Compile(stmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "MATCH (n1:Student)-[r1:ENROLLED_IN]->(n2:Lesson) WHERE elementId(n1) = $n1_eid AND n2.subject = $n2_subject\n" +
		"RETURN n2 LIMIT 1"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	again, _ := c.Compile(stmt)
	if again != got {
		t.Error("compilation is not deterministic")
	}
}

func TestFormatGoValue(t *testing.T) {
	name := "Ada"
	var nilPtr *string
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"string", "it's", `'it\'s'`},
		{"newline", "a\nb", `'a\nb'`},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"uint", uint8(7), "7"},
		{"float", 1.5, "1.5"},
		{"pointer", &name, "'Ada'"},
		{"nil pointer", nilPtr, "null"},
		{"slice", []any{1, "x"}, "[1, 'x']"},
		{"map sorted", map[string]any{"b": 2, "a": 1}, "{a: 1, b: 2}"},
		{"time", ts, "datetime('2024-03-01T12:30:00Z')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatGoValue(tt.in); got != tt.want {
				t.Errorf("FormatGoValue(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuoteName(t *testing.T) {
	tests := map[string]string{
		"n1":       "n1",
		"_private": "_private",
		"1abc":     "`1abc`",
		"has-dash": "`has-dash`",
		"order":    "`order`",
		"we`ird":   "`we``ird`",
	}
	for in, want := range tests {
		if got := QuoteName(in); got != want {
			t.Errorf("QuoteName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuoteSymbol(t *testing.T) {
	tests := map[string]string{
		"limit":    "limit",
		"CONTAINS": "CONTAINS",
		"n2_eid":   "n2_eid",
		"1abc":     "`1abc`",
		"a b":      "`a b`",
		"":         "``",
	}
	for in, want := range tests {
		if got := QuoteSymbol(in); got != want {
			t.Errorf("QuoteSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
