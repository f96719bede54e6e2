package ogm

import "strconv"

// IdentKind selects the identifier family handed out by the allocator.
type IdentKind int

const (
	// NodeIdent identifiers are n1, n2, ...
	NodeIdent IdentKind = iota
	// RelIdent identifiers are r1, r2, ...
	RelIdent
)

func (k IdentKind) prefix() string {
	if k == RelIdent {
		return "r"
	}
	return "n"
}

// IdentifierAllocator hands out statement identifiers. Numbering is
// monotonic per kind within one allocator, and generated names never clash
// with names reserved for explicit use.
//
// A fresh allocator is created for every compilation, so the identifiers of
// a plan depend only on the plan itself and not on how it was branched.
type IdentifierAllocator struct {
	counters [2]int
	used     map[string]bool
}

// NewIdentifierAllocator creates an allocator with nothing reserved.
func NewIdentifierAllocator() *IdentifierAllocator {
	return &IdentifierAllocator{used: make(map[string]bool)}
}

// Reserve claims an explicit identifier. Invalid names and names already
// claimed or generated produce a ConfigurationError.
func (a *IdentifierAllocator) Reserve(name string) error {
	if err := ValidateIdentifier(name, "identifier"); err != nil {
		return &ConfigurationError{Subject: "identifier " + name, Message: err.Error()}
	}
	if a.used[name] {
		return configErr("identifier "+name, "already in use")
	}
	a.used[name] = true
	return nil
}

// Next returns the next free generated identifier of the given kind.
func (a *IdentifierAllocator) Next(kind IdentKind) string {
	for {
		a.counters[kind]++
		name := kind.prefix() + strconv.Itoa(a.counters[kind])
		if !a.used[name] {
			a.used[name] = true
			return name
		}
	}
}

// InUse reports whether name has been reserved or generated.
func (a *IdentifierAllocator) InUse(name string) bool {
	return a.used[name]
}
