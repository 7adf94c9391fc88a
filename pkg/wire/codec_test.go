package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type Level int

func (l *Level) UnmarshalInt(v int64) error {
	if v < 0 || v > 2 {
		return fmt.Errorf("level %d out of range", v)
	}
	*l = Level(v)
	return nil
}

type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type Marker struct {
	Point Point `json:"point"`
	Kind  int32 `json:"kind"`
}

type Record struct {
	Name    string           `json:"name"`
	Count   int32            `json:"count"`
	Level   Level            `json:"level"`
	Scores  map[string]int32 `json:"scores"`
	Grid    [][]bool         `json:"grid"`
	Cells   [][]int          `json:"cells"`
	Markers []Marker         `json:"markers,omitempty"`
	Comment string           `json:"comment,omitempty"`

	Extensions `json:"-"`
}

func validRecordJSON() string {
	return `{
		"name": "alpha",
		"count": 7,
		"level": 2,
		"scores": {"a": 1, "b": 2},
		"grid": [[true, false], [false, true]],
		"cells": [[0, 255], [4, 7]]
	}`
}

func TestDecodeRecord(t *testing.T) {
	var r Record
	err := Decode(json.RawMessage(validRecordJSON()), &r)
	require.NoError(t, err)

	assert.Equal(t, "alpha", r.Name)
	assert.Equal(t, int32(7), r.Count)
	assert.Equal(t, Level(2), r.Level)
	assert.Equal(t, map[string]int32{"a": 1, "b": 2}, r.Scores)
	assert.Equal(t, [][]bool{{true, false}, {false, true}}, r.Grid)
	assert.Equal(t, [][]int{{0, 255}, {4, 7}}, r.Cells)
	assert.Nil(t, r.Markers)
	assert.Empty(t, r.Extra())
}

func TestDecodeRetainsUnknownFields(t *testing.T) {
	payload := `{
		"name": "alpha",
		"count": 7,
		"level": 0,
		"scores": {},
		"grid": [],
		"cells": [],
		"weather": "rain",
		"wind": {"speed": 12}
	}`

	var r Record
	err := Decode(json.RawMessage(payload), &r)
	require.NoError(t, err)

	assert.Equal(t, "alpha", r.Name)

	extra := r.Extra()
	require.Len(t, extra, 2)
	assert.Equal(t, "rain", extra["weather"])

	wind, ok := r.Lookup("wind")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"speed": json.Number("12")}, wind)
}

func TestDecodeMissingField(t *testing.T) {
	payload := `{"name": "alpha", "level": 1, "scores": {}, "grid": [], "cells": []}`

	var r Record
	err := Decode(json.RawMessage(payload), &r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "count", missing.Field)
	assert.Contains(t, err.Error(), `"count"`)
}

// An explicit null counts as present and leaves the zero value, since Encode
// writes nil maps and slices as null.
func TestDecodeNullRequiredField(t *testing.T) {
	payload := `{"name": "alpha", "count": null, "level": 1, "scores": null, "grid": null, "cells": []}`

	var r Record
	require.NoError(t, Decode(json.RawMessage(payload), &r))
	assert.Equal(t, "alpha", r.Name)
	assert.Zero(t, r.Count)
	assert.Nil(t, r.Scores)
	assert.Nil(t, r.Grid)

	encoded, err := Encode(Record{Name: "alpha", Level: 1})
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"scores":null`)
	assert.NoError(t, Decode(encoded, &Record{}))

	// dropping the key instead still fails
	payload = `{"name": "alpha", "level": 1, "scores": null, "grid": null, "cells": []}`
	var missing *MissingFieldError
	require.ErrorAs(t, Decode(json.RawMessage(payload), &Record{}), &missing)
	assert.Equal(t, "count", missing.Field)
}

func TestDecodeMissingNestedField(t *testing.T) {
	payload := `{
		"name": "alpha",
		"count": 1,
		"level": 1,
		"scores": {},
		"grid": [],
		"cells": [],
		"markers": [{"point": {"x": 1, "y": 2}, "kind": 1}, {"point": {"x": 3}, "kind": 2}]
	}`

	var r Record
	err := Decode(json.RawMessage(payload), &r)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "markers[1].point.y", missing.Field)
}

func TestDecodeOptionalFields(t *testing.T) {
	payload := `{
		"name": "alpha",
		"count": 1,
		"level": 1,
		"scores": {},
		"grid": [],
		"cells": [],
		"markers": [{"point": {"x": 1, "y": 2}, "kind": 3}],
		"comment": "hello"
	}`

	var r Record
	err := Decode(json.RawMessage(payload), &r)
	require.NoError(t, err)

	require.Len(t, r.Markers, 1)
	assert.Equal(t, Marker{Point: Point{X: 1, Y: 2}, Kind: 3}, r.Markers[0])
	assert.Equal(t, "hello", r.Comment)
}

func TestDecodeEnumOutOfRange(t *testing.T) {
	for _, level := range []string{"3", "-1", "1.5", `"1"`} {
		var l Level
		err := Decode(json.RawMessage(level), &l)
		require.Error(t, err, "level %s should fail", level)
		assert.True(t, errors.Is(err, ErrDecode))
	}
}

func TestDecodeEnumInRecord(t *testing.T) {
	payload := `{"name": "alpha", "count": 1, "level": 9, "scores": {}, "grid": [], "cells": []}`

	var r Record
	err := Decode(json.RawMessage(payload), &r)

	var unexpected *UnexpectedTypeError
	require.True(t, errors.As(err, &unexpected))
	assert.Contains(t, err.Error(), "out of range")
}

func TestDecodeUnexpectedType(t *testing.T) {
	tests := []string{
		`{"name": {"first": "a"}, "count": 1, "level": 1, "scores": {}, "grid": [], "cells": []}`,
		`{"name": "a", "count": "many", "level": 1, "scores": {}, "grid": [], "cells": []}`,
		`[1, 2, 3]`,
		`not json`,
	}

	for _, payload := range tests {
		var r Record
		err := Decode(json.RawMessage(payload), &r)

		var unexpected *UnexpectedTypeError
		require.True(t, errors.As(err, &unexpected), "payload %s", payload)
		assert.True(t, errors.Is(err, ErrDecode))
	}
}

func TestDecodeString(t *testing.T) {
	var s string
	require.NoError(t, Decode(json.RawMessage(`"P7"`), &s))
	assert.Equal(t, "P7", s)

	err := Decode(json.RawMessage(`true`), &s)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeRequiresPointer(t *testing.T) {
	var r Record
	err := Decode(json.RawMessage(validRecordJSON()), r)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDecode))
}

func TestEncodeUsesWireNames(t *testing.T) {
	bs, err := Encode(Marker{Point: Point{X: 3, Y: 4}, Kind: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"point": {"x": 3, "y": 4}, "kind": 1}`, string(bs))
}

func TestEncodeReemitsExtensions(t *testing.T) {
	payload := `{"name": "alpha", "count": 7, "level": 0, "scores": {}, "grid": [], "cells": [], "weather": "rain", "count2": 5}`

	var r Record
	require.NoError(t, Decode(json.RawMessage(payload), &r))

	bs, err := Encode(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(bs, &fields))
	assert.Equal(t, "rain", fields["weather"])
	assert.Equal(t, float64(5), fields["count2"])
	assert.Equal(t, "alpha", fields["name"])
}

func TestEncodeKnownFieldsWinOverExtensions(t *testing.T) {
	r := Record{Name: "alpha"}
	r.SetExtra(map[string]any{"name": "shadow"})

	bs, err := Encode(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(bs, &fields))
	assert.Equal(t, "alpha", fields["name"])
}

func TestEncodeAll(t *testing.T) {
	args, err := EncodeAll("abc", "RustBot", 4)
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, `"abc"`, string(args[0]))
	assert.Equal(t, `"RustBot"`, string(args[1]))
	assert.Equal(t, `4`, string(args[2]))
}

func TestRoundTripWithUnknownFields(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		in := Record{
			Name:   rapid.String().Draw(rt, "name"),
			Count:  rapid.Int32().Draw(rt, "count"),
			Level:  Level(rapid.IntRange(0, 2).Draw(rt, "level")),
			Scores: rapid.MapOf(rapid.StringN(1, 8, -1), rapid.Int32()).Draw(rt, "scores"),
			Grid:   rapid.SliceOf(rapid.SliceOf(rapid.Bool())).Draw(rt, "grid"),
			Cells:  rapid.SliceOf(rapid.SliceOf(rapid.IntRange(0, 255))).Draw(rt, "cells"),
		}
		extra := rapid.MapOf(rapid.StringMatching(`x[a-z]{1,6}`), rapid.StringN(0, 8, -1)).Draw(rt, "extra")

		bs, err := json.Marshal(in)
		require.NoError(rt, err)

		var fields map[string]any
		require.NoError(rt, json.Unmarshal(bs, &fields))
		for k, v := range extra {
			fields[k] = v
		}
		payload, err := json.Marshal(fields)
		require.NoError(rt, err)

		var out Record
		require.NoError(rt, Decode(payload, &out))

		assert.Equal(rt, in.Name, out.Name)
		assert.Equal(rt, in.Count, out.Count)
		assert.Equal(rt, in.Level, out.Level)
		assert.Equal(rt, len(in.Scores), len(out.Scores))
		for k, v := range in.Scores {
			assert.Equal(rt, v, out.Scores[k])
		}
		assert.Equal(rt, len(in.Grid), len(out.Grid))
		assert.Equal(rt, len(in.Cells), len(out.Cells))
		for k, v := range extra {
			got, ok := out.Lookup(k)
			assert.True(rt, ok, "extension %q retained", k)
			assert.Equal(rt, v, got)
		}
	})
}
