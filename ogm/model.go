package ogm

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"
)

// DefaultIDProperty is the property holding the application id of node
// models that do not override it with an id: tag option.
var DefaultIDProperty = "uuid"

// ModelKind specifies whether a registered model maps nodes or relationships.
type ModelKind int

const (
	// ModelKindNode represents a node model (embeds Node).
	ModelKindNode ModelKind = iota
	// ModelKindRel represents a relationship model (embeds Rel).
	ModelKindRel
)

var (
	nodeBaseType = reflect.TypeOf(Node{})
	relBaseType  = reflect.TypeOf(Rel{})
)

// FieldInfo contains metadata about a single mapped field in a model struct.
type FieldInfo struct {
	// Tag is the parsed 'ogm' struct tag. Tag.Name is always set.
	Tag FieldTag
	// FieldName is the name of the field in the Go struct.
	FieldName string
	// Index is the reflect index path, longer than one for inherited fields.
	Index []int
	// FieldType is the reflection type of the field.
	FieldType reflect.Type
	// IsPointer is true if the field is a pointer, used for optional properties.
	IsPointer bool
	// IsSlice is true if the field is a slice, used for list properties.
	IsSlice bool
	// ElemType is the base element type for slices and pointers.
	ElemType reflect.Type
}

// Prop returns the graph property name of the field.
func (f FieldInfo) Prop() string { return f.Tag.Name }

// ModelInfo contains metadata about a registered model: its Go type, its
// labels or relationship type, and its mapped properties.
type ModelInfo struct {
	// GoType is the reflection type of the Go struct representing the model.
	GoType reflect.Type
	// Kind indicates whether this model is a node or a relationship.
	Kind ModelKind
	// Name is the Go type name, used to resolve deferred model references.
	Name string
	// Labels is the full label set, inherited labels first.
	Labels []string
	// RelType is the relationship type of relationship models.
	RelType string
	// IDProperty is the application id property of node models.
	IDProperty string
	// Parent is the registered model this one embeds, if any.
	Parent *ModelInfo
	// Fields lists the mapped properties, inherited fields first.
	Fields []FieldInfo
}

// FieldByName retrieves FieldInfo by the Go struct field name.
func (m *ModelInfo) FieldByName(name string) (FieldInfo, bool) {
	for _, f := range m.Fields {
		if f.FieldName == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// FieldByProp retrieves FieldInfo by the graph property name.
func (m *ModelInfo) FieldByProp(prop string) (FieldInfo, bool) {
	for _, f := range m.Fields {
		if f.Tag.Name == prop {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// IsA reports whether m is other or inherits from it.
func (m *ModelInfo) IsA(other *ModelInfo) bool {
	for cur := m; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

// ExtractModelInfo analyzes a Go struct type and extracts its model metadata.
// The struct must embed Node, Rel, or a model already known to parentOf.
func ExtractModelInfo(t reflect.Type, parentOf func(reflect.Type) (*ModelInfo, bool)) (*ModelInfo, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", t.Kind())
	}

	info := &ModelInfo{GoType: t, Name: t.Name()}
	var baseTag FieldTag
	foundBase := false

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			tag, err := ParseTag(field.Tag.Get("ogm"))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			switch {
			case field.Type == nodeBaseType:
				info.Kind = ModelKindNode
			case field.Type == relBaseType:
				info.Kind = ModelKindRel
			default:
				parent, ok := lookupParent(field.Type, parentOf)
				if !ok {
					return nil, fmt.Errorf("embedded field %s is not Node, Rel or a registered model", field.Name)
				}
				info.Kind = parent.Kind
				info.Parent = parent
				for _, pf := range parent.Fields {
					pf.Index = append([]int{i}, pf.Index...)
					info.Fields = append(info.Fields, pf)
				}
			}
			if foundBase {
				return nil, fmt.Errorf("type %s embeds more than one model base", t.Name())
			}
			foundBase = true
			baseTag = tag
			continue
		}

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		tag, err := ParseTag(field.Tag.Get("ogm"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tag.Skip {
			continue
		}
		if len(tag.Labels) > 0 || tag.RelType != "" || tag.IDProperty != "" {
			return nil, fmt.Errorf("field %s: label, type and id options belong on the embedded base", field.Name)
		}
		if tag.Name == "" {
			tag.Name = toSnakeCase(field.Name)
		}
		info.Fields = append(info.Fields, buildFieldInfo(field, i, tag))
	}

	if !foundBase {
		return nil, fmt.Errorf("type %s must embed ogm.Node or ogm.Rel", t.Name())
	}

	switch info.Kind {
	case ModelKindNode:
		own := baseTag.Labels
		if len(own) == 0 {
			own = []string{t.Name()}
		}
		if info.Parent != nil {
			info.Labels = slices.Clone(info.Parent.Labels)
		}
		for _, l := range own {
			if !slices.Contains(info.Labels, l) {
				info.Labels = append(info.Labels, l)
			}
		}
		info.IDProperty = DefaultIDProperty
		if info.Parent != nil {
			info.IDProperty = info.Parent.IDProperty
		}
		if baseTag.IDProperty != "" {
			info.IDProperty = baseTag.IDProperty
		}
	case ModelKindRel:
		info.RelType = toUpperSnake(t.Name())
		if info.Parent != nil {
			info.RelType = info.Parent.RelType
		}
		if baseTag.RelType != "" {
			info.RelType = baseTag.RelType
		}
	}

	seen := make(map[string]string, len(info.Fields))
	for _, f := range info.Fields {
		if prev, dup := seen[f.Tag.Name]; dup {
			return nil, fmt.Errorf("property %q mapped by both %s and %s", f.Tag.Name, prev, f.FieldName)
		}
		seen[f.Tag.Name] = f.FieldName
	}
	return info, nil
}

func lookupParent(t reflect.Type, parentOf func(reflect.Type) (*ModelInfo, bool)) (*ModelInfo, bool) {
	if parentOf == nil || t.Kind() != reflect.Struct {
		return nil, false
	}
	return parentOf(t)
}

func buildFieldInfo(field reflect.StructField, index int, tag FieldTag) FieldInfo {
	fi := FieldInfo{
		Tag:       tag,
		FieldName: field.Name,
		Index:     []int{index},
		FieldType: field.Type,
	}

	ft := field.Type
	if ft.Kind() == reflect.Ptr {
		fi.IsPointer = true
		fi.ElemType = ft.Elem()
		ft = ft.Elem()
	}
	if ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
		fi.IsSlice = true
		fi.ElemType = ft.Elem()
	}
	return fi
}

// toSnakeCase converts a Go identifier to a property name: FirstName -> first_name,
// HTTPCode -> http_code.
func toSnakeCase(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// toUpperSnake converts a Go identifier to a relationship type: EnrolledIn -> ENROLLED_IN.
func toUpperSnake(name string) string {
	return strings.ToUpper(toSnakeCase(name))
}

// toCamelCase converts a snake_case association name to a Go type name:
// bus_stop -> BusStop.
func toCamelCase(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
