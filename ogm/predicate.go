package ogm

import (
	"maps"
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/CaliLuke/go-ogm/ast"
)

// predicateLexer tokenizes raw Cypher predicate fragments. It only needs to
// tell identifiers apart from strings, parameters and punctuation; the
// fragment itself is passed to the database as written.
var predicateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "String", Pattern: `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`},
	{Name: "Quoted", Pattern: "`(?:[^`]|``)*`"},
	{Name: "Param", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `<>|<=|>=|=~|\.\.|[+\-*/%^=<>!|]`},
	{Name: "Punct", Pattern: `[.,:;()\[\]{}]`},
})

var (
	predicateSymbols = predicateLexer.Symbols()
	tokIdent         = predicateSymbols["Ident"]
	tokPunct         = predicateSymbols["Punct"]
	tokWhitespace    = predicateSymbols["Whitespace"]
)

// rawPredicate is an analyzed raw predicate fragment.
type rawPredicate struct {
	tokens []lexer.Token
	// refs are the identifiers the text qualifies explicitly (x.prop, x:Label).
	refs []string
	// bare are the indexes of tokens that name a property of the filtered
	// identifier without qualifying it.
	bare []int
}

// analyzeRaw lexes text and classifies its identifiers. scope lists the
// explicit identifiers known to the chain; a bare word that matches one is a
// reference to it, not a property.
func analyzeRaw(text string, scope []string) (*rawPredicate, error) {
	lex, err := predicateLexer.LexString("", text)
	if err != nil {
		return nil, usageErr("raw", "cannot tokenize %q: %v", text, err)
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, usageErr("raw", "cannot tokenize %q: %v", text, err)
	}
	rp := &rawPredicate{tokens: all}

	prev := func(i int) (lexer.Token, bool) {
		for j := i - 1; j >= 0; j-- {
			if all[j].Type != tokWhitespace {
				return all[j], true
			}
		}
		return lexer.Token{}, false
	}
	next := func(i int) (lexer.Token, bool) {
		for j := i + 1; j < len(all); j++ {
			if all[j].Type == lexer.EOF {
				break
			}
			if all[j].Type != tokWhitespace {
				return all[j], true
			}
		}
		return lexer.Token{}, false
	}

	for i, tok := range all {
		if tok.Type != tokIdent {
			continue
		}
		if p, ok := prev(i); ok && p.Type == tokPunct && (p.Value == "." || p.Value == ":") {
			continue
		}
		n, hasNext := next(i)
		switch {
		case hasNext && n.Type == tokPunct && n.Value == "(":
			// function call
		case hasNext && n.Type == tokPunct && n.Value == ".":
			rp.refs = append(rp.refs, tok.Value)
		case hasNext && n.Type == tokPunct && n.Value == ":":
			// label predicate on an identifier, or a map key
			if slices.Contains(scope, tok.Value) {
				rp.refs = append(rp.refs, tok.Value)
			}
		case ast.IsReservedWord(tok.Value):
		case slices.Contains(scope, tok.Value):
			rp.refs = append(rp.refs, tok.Value)
		default:
			rp.bare = append(rp.bare, i)
		}
	}
	return rp, nil
}

// qualified reports whether the text names any identifier explicitly.
func (rp *rawPredicate) qualified() bool { return len(rp.refs) > 0 }

// render returns the text with bare property names prefixed by ident.
// Texts that already qualify an identifier are returned unchanged.
func (rp *rawPredicate) render(ident string) string {
	var sb strings.Builder
	bare := 0
	for i, tok := range rp.tokens {
		if tok.Type == lexer.EOF {
			break
		}
		if !rp.qualified() && bare < len(rp.bare) && rp.bare[bare] == i {
			sb.WriteString(ast.QuoteName(ident))
			sb.WriteByte('.')
			bare++
		}
		sb.WriteString(tok.Value)
	}
	return sb.String()
}

type rawCond struct {
	text   string
	params map[string]any
}

// Raw adds a Cypher predicate written by hand. A fragment that does not name
// any identifier is applied to the filtered identifier: "age > 3" becomes
// "n2.age > 3". Identifiers named in the text must have been introduced with
// As or RelAs.
func Raw(text string) Condition { return rawCond{text: text} }

// RawWith is Raw with parameters. Parameter names are used as given and must
// not clash with generated ones.
func RawWith(text string, params map[string]any) Condition {
	return rawCond{text: text, params: maps.Clone(params)}
}

func (c rawCond) check(scope []string) error {
	if strings.TrimSpace(c.text) == "" {
		return usageErr("raw", "empty predicate")
	}
	rp, err := analyzeRaw(c.text, scope)
	if err != nil {
		return err
	}
	for _, ref := range rp.refs {
		if !slices.Contains(scope, ref) {
			return usageErr("raw", "identifier %q is not in scope", ref)
		}
	}
	return nil
}

func (c rawCond) build(bc *buildContext) (ast.Expr, error) {
	rp, err := analyzeRaw(c.text, bc.scope)
	if err != nil {
		return nil, err
	}
	keys := slices.Sorted(maps.Keys(c.params))
	for _, k := range keys {
		if err := bc.params.addExact(k, c.params[k]); err != nil {
			return nil, err
		}
	}
	return ast.Raw{Text: rp.render(bc.ident)}, nil
}

// rawParamNames lists the caller-named parameters declared anywhere in cond.
func rawParamNames(cond Condition) []string {
	var names []string
	var walk func(Condition)
	walk = func(cond Condition) {
		switch c := cond.(type) {
		case rawCond:
			names = append(names, slices.Sorted(maps.Keys(c.params))...)
		case andCond:
			for _, inner := range c {
				walk(inner)
			}
		case orCond:
			for _, inner := range c {
				walk(inner)
			}
		case notCond:
			walk(c.inner)
		case relCond:
			for _, inner := range c.conds {
				walk(inner)
			}
		}
	}
	walk(cond)
	return names
}
