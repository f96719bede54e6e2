package ogm

import (
	"fmt"
	"unicode"

	"github.com/CaliLuke/go-ogm/ast"
)

// IsReservedWord returns true if the given name is a Cypher reserved keyword.
// The check is case-insensitive.
func IsReservedWord(name string) bool {
	return ast.IsReservedWord(name)
}

// ValidateIdentifier checks that a name can be used as an explicit Cypher
// identifier without quoting. Valid identifiers start with a letter or
// underscore and continue with letters, digits, or underscores, and are not
// reserved words.
func ValidateIdentifier(name, context string) error {
	if name == "" {
		return fmt.Errorf("empty %s name", context)
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return &InvalidIdentifierError{
					Name:    name,
					Context: context,
					Reason:  fmt.Sprintf("must start with a letter or underscore, got %q", r),
				}
			}
		} else if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return &InvalidIdentifierError{
				Name:    name,
				Context: context,
				Reason:  fmt.Sprintf("invalid character %q at position %d", r, i),
			}
		}
	}
	if IsReservedWord(name) {
		return &ReservedWordError{Word: name, Context: context}
	}
	return nil
}

// InvalidIdentifierError is returned when a name contains characters
// not allowed in Cypher identifiers.
type InvalidIdentifierError struct {
	Name    string
	Context string
	Reason  string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Context, e.Name, e.Reason)
}
