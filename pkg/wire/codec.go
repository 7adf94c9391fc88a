package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// IntUnmarshaler is implemented by integer enums that validate the value they
// are decoded from.
type IntUnmarshaler interface {
	UnmarshalInt(int64) error
}

var intUnmarshalerType = reflect.TypeOf((*IntUnmarshaler)(nil)).Elem()

type extensionReader interface {
	Extra() map[string]any
}

type extensionWriter interface {
	SetExtra(map[string]any)
}

// Encode serializes a value into its wire payload. Extension fields retained
// from a previous decode are appended when they do not collide with a known
// field.
func Encode(v any) (json.RawMessage, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding %T: %w", v, err)
	}

	ext, ok := v.(extensionReader)
	if !ok {
		return bs, nil
	}
	extra := ext.Extra()
	if len(extra) == 0 {
		return bs, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bs, &fields); err != nil {
		return bs, nil
	}
	for k, val := range extra {
		if _, ok := fields[k]; ok {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding %T extension %q: %w", v, k, err)
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// EncodeAll encodes each value in order.
func EncodeAll(values ...any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		raw, err := Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

// Decode deserializes a payload into out, which must be a non-nil pointer.
//
// Fields without `omitempty` in their json tag are required; an explicit null
// counts as present and leaves the zero value. Unknown
// top-level keys are retained on records that embed Extensions.
func Decode(payload json.RawMessage, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("wire: decode target must be a non-nil pointer, got %T", out)
	}
	target := rv.Elem().Type()
	typeName := target.String()

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return &UnexpectedTypeError{Type: typeName, Err: err}
	}

	var md mapstructure.Metadata
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: intEnumHook,
		Metadata:   &md,
		Result:     out,
		TagName:    "json",
		MatchName: func(mapKey, fieldName string) bool {
			return mapKey == fieldName
		},
	})
	if err != nil {
		return fmt.Errorf("wire: building decoder for %s: %w", typeName, err)
	}

	if err := d.Decode(raw); err != nil {
		return &UnexpectedTypeError{Type: typeName, Err: err}
	}

	if field, ok := firstRequired(target, md.Unset); ok {
		return &MissingFieldError{Type: typeName, Field: field}
	}

	if w, ok := out.(extensionWriter); ok {
		fields, _ := raw.(map[string]any)
		extra := make(map[string]any)
		for _, key := range md.Unused {
			if val, ok := fields[key]; ok {
				extra[key] = val
			}
		}
		w.SetExtra(extra)
	}

	return nil
}

func intEnumHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if !reflect.PointerTo(to).Implements(intUnmarshalerType) {
		return data, nil
	}

	num, ok := data.(json.Number)
	if !ok {
		return nil, fmt.Errorf("expected integer for %s, got %s", to, from)
	}
	n, err := num.Int64()
	if err != nil {
		return nil, fmt.Errorf("expected integer for %s, got %s", to, num)
	}

	v := reflect.New(to)
	if err := v.Interface().(IntUnmarshaler).UnmarshalInt(n); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}

// firstRequired returns the first unset path that names a required field.
func firstRequired(t reflect.Type, unset []string) (string, bool) {
	paths := append([]string(nil), unset...)
	sort.Strings(paths)
	for _, path := range paths {
		if !isOptional(t, path) {
			return path, true
		}
	}
	return "", false
}

// isOptional walks a mapstructure path such as "powerUpLocations[0].location"
// and reports whether the field it names is tagged omitempty.
func isOptional(t reflect.Type, path string) bool {
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		name, _, _ := strings.Cut(segment, "[")

		t = indirect(t)
		if t.Kind() != reflect.Struct {
			return true
		}
		field, ok := fieldByWireName(t, name)
		if !ok {
			return true
		}
		_, optional := tagName(field.Tag.Get("json"))
		if i == len(segments)-1 {
			return optional
		}

		t = field.Type
		for k, n := 0, strings.Count(segment, "["); k < n; k++ {
			t = indirect(t)
			if t.Kind() != reflect.Slice && t.Kind() != reflect.Array && t.Kind() != reflect.Map {
				return true
			}
			t = t.Elem()
		}
	}
	return true
}

func fieldByWireName(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, _ := tagName(field.Tag.Get("json"))
		if tag == name || (tag == "" && field.Name == name) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
