// Package ast defines the Abstract Syntax Tree (AST) for Cypher statements.
package ast

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Compiler compiles AST nodes into Cypher statement strings.
// It traverses the AST and generates the corresponding Cypher syntax.
// Output is deterministic: the same tree always compiles to the same text.
type Compiler struct{}

// Compile compiles a single AST node into its Cypher string representation.
// It returns an error if the node type is unknown or if compilation fails.
func (c *Compiler) Compile(node QueryNode) (string, error) {
	switch n := node.(type) {
	case Statement:
		return c.CompileClauses(n.Clauses...)
	case Clause:
		return c.compileClause(n)
	case PathPattern:
		return c.compilePath(n)
	case PatternElement:
		return c.compileElement(n)
	case Expr:
		return c.compileExpr(n)
	default:
		return "", fmt.Errorf("unknown node type: %T", node)
	}
}

// CompileClauses compiles a list of clauses into a single statement, one
// clause per line.
func (c *Compiler) CompileClauses(clauses ...Clause) (string, error) {
	parts := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		s, err := c.compileClause(cl)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n"), nil
}

// --- Clauses ---

func (c *Compiler) compileClause(clause Clause) (string, error) {
	switch cl := clause.(type) {
	case MatchClause:
		if len(cl.Patterns) == 0 {
			return "", fmt.Errorf("match clause without patterns")
		}
		patterns, err := c.compilePaths(cl.Patterns)
		if err != nil {
			return "", err
		}
		kw := "MATCH "
		if cl.Optional {
			kw = "OPTIONAL MATCH "
		}
		out := kw + patterns
		if cl.Where != nil {
			w, err := c.compileExpr(cl.Where)
			if err != nil {
				return "", err
			}
			out += " WHERE " + w
		}
		return out, nil

	case WithClause:
		proj, err := c.compileProjection("WITH", cl.Projection)
		if err != nil {
			return "", err
		}
		if cl.Where != nil {
			w, err := c.compileExpr(cl.Where)
			if err != nil {
				return "", err
			}
			proj += " WHERE " + w
		}
		return proj, nil

	case ReturnClause:
		return c.compileProjection("RETURN", cl.Projection)

	case CreateClause:
		patterns, err := c.compilePaths(cl.Patterns)
		if err != nil {
			return "", err
		}
		return "CREATE " + patterns, nil

	case MergeClause:
		p, err := c.compilePath(cl.Pattern)
		if err != nil {
			return "", err
		}
		return "MERGE " + p, nil

	case SetClause:
		if len(cl.Items) == 0 {
			return "", fmt.Errorf("set clause without items")
		}
		items := make([]string, 0, len(cl.Items))
		for _, item := range cl.Items {
			target, err := c.compileExpr(item.Target)
			if err != nil {
				return "", err
			}
			value, err := c.compileExpr(item.Value)
			if err != nil {
				return "", err
			}
			op := " = "
			if item.Merge {
				op = " += "
			}
			items = append(items, target+op+value)
		}
		return "SET " + strings.Join(items, ", "), nil

	case DeleteClause:
		if len(cl.Vars) == 0 {
			return "", fmt.Errorf("delete clause without variables")
		}
		vars := make([]string, len(cl.Vars))
		for i, v := range cl.Vars {
			vars[i] = QuoteName(v)
		}
		kw := "DELETE "
		if cl.Detach {
			kw = "DETACH DELETE "
		}
		return kw + strings.Join(vars, ", "), nil

	case RawClause:
		return cl.Text, nil

	default:
		return "", fmt.Errorf("unknown clause type: %T", clause)
	}
}

func (c *Compiler) compileProjection(keyword string, p Projection) (string, error) {
	if len(p.Items) == 0 {
		return "", fmt.Errorf("%s without items", strings.ToLower(keyword))
	}
	items := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		s, err := c.compileExpr(item.Expr)
		if err != nil {
			return "", err
		}
		if item.Alias != "" {
			s += " AS " + QuoteName(item.Alias)
		}
		items = append(items, s)
	}

	var sb strings.Builder
	sb.WriteString(keyword)
	if p.Distinct {
		sb.WriteString(" DISTINCT")
	}
	sb.WriteString(" ")
	sb.WriteString(strings.Join(items, ", "))

	if len(p.OrderBy) > 0 {
		keys := make([]string, 0, len(p.OrderBy))
		for _, o := range p.OrderBy {
			s, err := c.compileExpr(o.Expr)
			if err != nil {
				return "", err
			}
			if o.Desc {
				s += " DESC"
			}
			keys = append(keys, s)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}
	if p.Skip != nil {
		s, err := c.compileExpr(p.Skip)
		if err != nil {
			return "", err
		}
		sb.WriteString(" SKIP ")
		sb.WriteString(s)
	}
	if p.Limit != nil {
		s, err := c.compileExpr(p.Limit)
		if err != nil {
			return "", err
		}
		sb.WriteString(" LIMIT ")
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// --- Patterns ---

func (c *Compiler) compilePaths(paths []PathPattern) (string, error) {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		s, err := c.compilePath(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

func (c *Compiler) compilePath(p PathPattern) (string, error) {
	if len(p.Elements) == 0 {
		return "", fmt.Errorf("empty path pattern")
	}
	var sb strings.Builder
	for i, el := range p.Elements {
		_, isNode := el.(NodePattern)
		if isNode != (i%2 == 0) {
			return "", fmt.Errorf("path element %d: expected alternating node and relationship patterns", i)
		}
		s, err := c.compileElement(el)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	if len(p.Elements)%2 == 0 {
		return "", fmt.Errorf("path pattern must end with a node")
	}
	return sb.String(), nil
}

func (c *Compiler) compileElement(el PatternElement) (string, error) {
	switch e := el.(type) {
	case NodePattern:
		return "(" + optionalName(e.Var) + compileLabels(e.Labels) + ")", nil
	case RelPattern:
		body := optionalName(e.Var)
		if len(e.Types) > 0 {
			types := make([]string, len(e.Types))
			for i, t := range e.Types {
				types[i] = QuoteSymbol(t)
			}
			body += ":" + strings.Join(types, "|")
		}
		if e.VarLength {
			body += "*"
			if e.MinHops > 0 || e.MaxHops > 0 {
				if e.MinHops > 0 {
					body += strconv.Itoa(e.MinHops)
				}
				body += ".."
				if e.MaxHops > 0 {
					body += strconv.Itoa(e.MaxHops)
				}
			}
		}
		inner := "[" + body + "]"
		if body == "" {
			inner = ""
		}
		switch e.Dir {
		case DirOut:
			return "-" + inner + "->", nil
		case DirIn:
			return "<-" + inner + "-", nil
		default:
			return "-" + inner + "-", nil
		}
	default:
		return "", fmt.Errorf("unknown pattern element type: %T", el)
	}
}

func optionalName(name string) string {
	if name == "" {
		return ""
	}
	return QuoteName(name)
}

func compileLabels(labels []string) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(":")
		sb.WriteString(QuoteName(l))
	}
	return sb.String()
}

// --- Expressions ---

func (c *Compiler) compileExpr(expr Expr) (string, error) {
	switch e := expr.(type) {
	case Ident:
		return QuoteName(e.Name), nil
	case PropRef:
		return QuoteName(e.Var) + "." + QuoteName(e.Prop), nil
	case Param:
		return "$" + QuoteSymbol(e.Name), nil
	case Literal:
		return FormatGoValue(e.Val), nil
	case Comparison:
		left, err := c.compileExpr(e.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compileExpr(e.Right)
		if err != nil {
			return "", err
		}
		return left + " " + e.Operator + " " + right, nil
	case NullCheck:
		s, err := c.compileExpr(e.Expr)
		if err != nil {
			return "", err
		}
		if e.Negated {
			return s + " IS NOT NULL", nil
		}
		return s + " IS NULL", nil
	case And:
		if len(e.Exprs) == 0 {
			return "true", nil
		}
		return c.joinExprs(e.Exprs, " AND ", len(e.Exprs) > 1)
	case Or:
		if len(e.Exprs) == 0 {
			return "false", nil
		}
		s, err := c.joinExprs(e.Exprs, " OR ", false)
		if err != nil {
			return "", err
		}
		if len(e.Exprs) == 1 {
			return s, nil
		}
		return "(" + s + ")", nil
	case Not:
		s, err := c.compileExpr(e.Expr)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	case FuncCall:
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			s, err := c.compileExpr(a)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
		prefix := ""
		if e.Distinct {
			prefix = "DISTINCT "
		}
		return e.Name + "(" + prefix + strings.Join(args, ", ") + ")", nil
	case List:
		items := make([]string, 0, len(e.Items))
		for _, it := range e.Items {
			s, err := c.compileExpr(it)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case HasLabels:
		if len(e.Labels) == 0 {
			return "", fmt.Errorf("label predicate on %s without labels", e.Var)
		}
		return QuoteName(e.Var) + compileLabels(e.Labels), nil
	case Exists:
		p, err := c.compilePath(e.Pattern)
		if err != nil {
			return "", err
		}
		if e.Where != nil {
			w, err := c.compileExpr(e.Where)
			if err != nil {
				return "", err
			}
			p += " WHERE " + w
		}
		return "EXISTS { " + p + " }", nil
	case Raw:
		return e.Text, nil
	default:
		return "", fmt.Errorf("unknown expression type: %T", expr)
	}
}

// joinExprs compiles operands and joins them with sep. Nested Or operands are
// already parenthesized; Raw operands are wrapped when wrapRaw is set so that
// an opaque fragment containing OR cannot change precedence.
func (c *Compiler) joinExprs(exprs []Expr, sep string, wrapRaw bool) (string, error) {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		s, err := c.compileExpr(e)
		if err != nil {
			return "", err
		}
		if _, ok := e.(Raw); ok && wrapRaw {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

// EscapeString escapes special characters in a string for use in Cypher
// single-quoted string literals.
// It handles backslashes, quotes, newlines, carriage returns, and tabs.
func EscapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

// FormatGoValue converts a Go value into its Cypher literal string representation.
// It uses reflection to determine the type and handles basic types, pointers,
// slices, string-keyed maps, and time.Time.
// Map keys are emitted in sorted order so the output is deterministic.
func FormatGoValue(value any) string {
	if value == nil {
		return "null"
	}

	v := reflect.ValueOf(value)

	// Dereference pointers
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "null"
		}
		v = v.Elem()
		value = v.Interface()
	}

	switch val := value.(type) {
	case string:
		return "'" + EscapeString(val) + "'"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	case time.Time:
		return "datetime('" + val.Format(time.RFC3339Nano) + "')"
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = FormatGoValue(v.Index(i).Interface())
		}
		return "[" + strings.Join(items, ", ") + "]"
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			keys := make([]string, 0, v.Len())
			for _, k := range v.MapKeys() {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			entries := make([]string, len(keys))
			for i, k := range keys {
				entries[i] = QuoteName(k) + ": " + FormatGoValue(v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())).Interface())
			}
			return "{" + strings.Join(entries, ", ") + "}"
		}
	}

	// Fallback: convert to string and escape
	s := fmt.Sprintf("%v", value)
	return "'" + EscapeString(s) + "'"
}
