package ast

import "strings"

// CypherReservedWords is the set of Cypher keywords that must be quoted with
// backticks when used as labels, relationship types, property keys or
// identifiers.
var CypherReservedWords = map[string]bool{
	// Reading clauses
	"match": true, "optional": true, "where": true, "with": true, "return": true,
	"unwind": true, "call": true, "yield": true, "union": true, "all": true,
	// Writing clauses
	"create": true, "merge": true, "set": true, "delete": true, "detach": true,
	"remove": true, "foreach": true, "load": true, "csv": true,
	// Sub-clauses
	"order": true, "by": true, "asc": true, "ascending": true, "desc": true,
	"descending": true, "skip": true, "limit": true, "distinct": true, "as": true,
	"on": true,
	// Expressions
	"and": true, "or": true, "xor": true, "not": true, "in": true, "is": true,
	"starts": true, "ends": true, "contains": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "exists": true,
	// Literals
	"null": true, "true": true, "false": true,
	// Schema
	"constraint": true, "index": true, "unique": true, "drop": true,
	"assert": true, "node": true, "key": true, "for": true, "require": true,
	"of": true, "add": true, "do": true, "from": true, "to": true,
}

// IsReservedWord returns true if the given name is a Cypher reserved keyword.
// The check is case-insensitive.
func IsReservedWord(name string) bool {
	return CypherReservedWords[strings.ToLower(name)]
}

// IsPlainName reports whether name can appear unquoted as a Cypher symbolic
// name: an ASCII letter or underscore followed by letters, digits or
// underscores, and not a reserved word.
func IsPlainName(name string) bool {
	return !IsReservedWord(name) && isSymbolic(name)
}

func isSymbolic(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// QuoteName returns name unchanged when it is a plain symbolic name and
// wrapped in backticks otherwise. Embedded backticks are doubled.
func QuoteName(name string) string {
	if IsPlainName(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteSymbol quotes name only when it is not lexically a symbolic name.
// Parameter names and relationship types may be keywords, so reserved words
// pass through unchanged.
func QuoteSymbol(name string) string {
	if isSymbolic(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
