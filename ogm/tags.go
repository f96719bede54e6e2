package ogm

import (
	"fmt"
	"strings"
)

// FieldTag contains the structured representation of a parsed `ogm` struct tag.
type FieldTag struct {
	// Name is the graph property name.
	Name string
	// Key marks the property as identifying (used by Save to look up records).
	Key bool
	// Skip indicates the field should be ignored by the mapper.
	Skip bool
	// Labels overrides the node labels, declared on the embedded base.
	Labels []string
	// RelType overrides the relationship type, declared on the embedded Rel.
	RelType string
	// IDProperty overrides the id property name, declared on the embedded base.
	IDProperty string
}

// ParseTag parses the content of an `ogm` struct tag into a FieldTag structure.
// It supports a leading property name, the key flag, labels (label:A:B),
// relationship types (type:NAME) and id property overrides (id:name).
func ParseTag(tag string) (FieldTag, error) {
	if tag == "" || tag == "-" {
		return FieldTag{Skip: tag == "-"}, nil
	}

	parts := strings.Split(tag, ",")
	ft := FieldTag{}

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		switch {
		case part == "key":
			ft.Key = true
		case part == "-":
			ft.Skip = true
		case strings.HasPrefix(part, "label:"):
			for _, l := range strings.Split(strings.TrimPrefix(part, "label:"), ":") {
				if l == "" {
					return FieldTag{}, fmt.Errorf("empty label in %q", part)
				}
				ft.Labels = append(ft.Labels, l)
			}
		case strings.HasPrefix(part, "type:"):
			ft.RelType = strings.TrimPrefix(part, "type:")
			if ft.RelType == "" {
				return FieldTag{}, fmt.Errorf("empty relationship type in %q", part)
			}
		case strings.HasPrefix(part, "id:"):
			ft.IDProperty = strings.TrimPrefix(part, "id:")
			if ft.IDProperty == "" {
				return FieldTag{}, fmt.Errorf("empty id property in %q", part)
			}
		default:
			if i == 0 && !strings.ContainsAny(part, ":=") {
				ft.Name = part
			} else {
				return FieldTag{}, fmt.Errorf("unknown tag option: %q", part)
			}
		}
	}

	return ft, nil
}
