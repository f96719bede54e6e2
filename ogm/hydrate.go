package ogm

import (
	"fmt"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// hydrateFields populates the mapped fields of v, a struct value of
// info.GoType, from a flat property map. Properties without a mapped field
// are ignored; mapped fields without a property are reset to their zero value.
func hydrateFields(v reflect.Value, info *ModelInfo, props map[string]any) error {
	for _, fi := range info.Fields {
		field := v.FieldByIndex(fi.Index)
		val, ok := props[fi.Prop()]
		if !ok || val == nil {
			field.Set(reflect.Zero(fi.FieldType))
			continue
		}
		if err := setFieldValue(field, fi, val); err != nil {
			return &HydrationError{TypeName: info.Name, Field: fi.FieldName, Cause: err}
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, fi FieldInfo, val any) error {
	if fi.IsSlice {
		return setSliceField(field, fi, val)
	}

	target := fi.FieldType
	if fi.IsPointer {
		target = fi.ElemType
	}
	converted, err := coerceValue(val, target)
	if err != nil {
		return err
	}

	if fi.IsPointer {
		ptr := reflect.New(fi.ElemType)
		ptr.Elem().Set(converted)
		field.Set(ptr)
	} else {
		field.Set(converted)
	}
	return nil
}

func setSliceField(field reflect.Value, fi FieldInfo, val any) error {
	sliceType := fi.FieldType
	if fi.IsPointer {
		sliceType = fi.FieldType.Elem()
	}

	rv := reflect.ValueOf(val)
	var slice reflect.Value
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		// Single value -> wrap in slice
		converted, err := coerceValue(val, fi.ElemType)
		if err != nil {
			return err
		}
		slice = reflect.MakeSlice(sliceType, 1, 1)
		slice.Index(0).Set(converted)
	} else {
		slice = reflect.MakeSlice(sliceType, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			converted, err := coerceValue(rv.Index(i).Interface(), fi.ElemType)
			if err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
			slice.Index(i).Set(converted)
		}
	}

	if fi.IsPointer {
		ptr := reflect.New(sliceType)
		ptr.Elem().Set(slice)
		field.Set(ptr)
		return nil
	}
	field.Set(slice)
	return nil
}

// coerceValue converts a database value to the Go type of a field.
func coerceValue(val any, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}

	switch target.Kind() {
	case reflect.String:
		s, ok := val.(string)
		if !ok {
			s = fmt.Sprintf("%v", val)
		}
		return reflect.ValueOf(s).Convert(target), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i64, err := coerceToInt64(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(i64) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", i64, target)
		}
		out.SetInt(i64)
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i64, err := coerceToInt64(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(target).Elem()
		if i64 < 0 || out.OverflowUint(uint64(i64)) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", i64, target)
		}
		out.SetUint(uint64(i64))
		return out, nil

	case reflect.Float32, reflect.Float64:
		f64, err := coerceToFloat64(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(target).Elem()
		out.SetFloat(f64)
		return out, nil

	case reflect.Bool:
		b, ok := val.(bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected bool, got %T", val)
		}
		return reflect.ValueOf(b).Convert(target), nil
	}

	if target == timeType {
		t, err := coerceToTime(val)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t), nil
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot coerce %T to %s", val, target)
}

func coerceToInt64(val any) (int64, error) {
	switch v := val.(type) {
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to integer", val)
	}
}

func coerceToFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to float", val)
	}
}

func coerceToTime(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		// Try common formats
		for _, layout := range []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05",
			"2006-01-02",
		} {
			t, err := time.Parse(layout, v)
			if err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %q", v)
	default:
		return time.Time{}, fmt.Errorf("cannot coerce %T to time.Time", val)
	}
}

// extractProps reads the mapped fields of v into a property map. Nil
// pointers are stored as nil so an update removes the property.
func extractProps(v reflect.Value, info *ModelInfo) map[string]any {
	props := make(map[string]any, len(info.Fields))
	for _, fi := range info.Fields {
		field := v.FieldByIndex(fi.Index)
		if fi.IsPointer {
			if field.IsNil() {
				props[fi.Prop()] = nil
				continue
			}
			field = field.Elem()
		}
		props[fi.Prop()] = field.Interface()
	}
	return props
}
