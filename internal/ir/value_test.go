package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRString("")
	var _ IRValue = IRInt(0)
	var _ IRValue = IRBool(false)
	var _ IRValue = IRArray{}
	var _ IRValue = IRObject{}
}

func TestSortedKeysUTF16Order(t *testing.T) {
	obj := IRObject{"b": IRInt(1), "a": IRInt(2), "": IRInt(3), "𐀀": IRInt(4)}
	assert.Equal(t, []string{"a", "b", "𐀀", ""}, obj.SortedKeys())
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{
		"tags": IRArray{IRString("go")},
		"meta": IRObject{"author": IRString("ann")},
	}

	cp := orig.Clone()
	cp["tags"].(IRArray)[0] = IRString("rust")
	cp["meta"].(IRObject)["author"] = IRString("bob")

	assert.Equal(t, IRString("go"), orig["tags"].(IRArray)[0])
	assert.Equal(t, IRString("ann"), orig["meta"].(IRObject)["author"])
}

func TestMergeOverlays(t *testing.T) {
	base := IRObject{"a": IRInt(1), "b": IRInt(2)}
	merged := base.Merge(IRObject{"b": IRInt(3), "c": IRInt(4)})

	assert.Equal(t, IRObject{"a": IRInt(1), "b": IRInt(3), "c": IRInt(4)}, merged)
	assert.Equal(t, IRInt(2), base["b"], "merge does not modify the receiver")
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"same string", IRString("x"), IRString("x"), true},
		{"different kinds", IRString("1"), IRInt(1), false},
		{"nested objects", IRObject{"a": IRArray{IRInt(1)}}, IRObject{"a": IRArray{IRInt(1)}}, true},
		{"different array length", IRArray{IRInt(1)}, IRArray{}, false},
		{"array vs string", IRArray{}, IRString(""), false},
		{"missing key", IRObject{"a": IRInt(1)}, IRObject{"b": IRInt(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestFromAny(t *testing.T) {
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  IRValue
	}{
		{"string", "hi", IRString("hi")},
		{"int", 3, IRInt(3)},
		{"integral float", float64(7), IRInt(7)},
		{"fractional float", 1.5, IRString("1.5")},
		{"timestamp", stamp, IRString("2024-01-02T03:04:05Z")},
		{"nested", map[string]any{"a": []any{true, "x"}}, IRObject{"a": IRArray{IRBool(true), IRString("x")}}},
		{"yaml style map", map[any]any{1: "one"}, IRObject{"1": IRString("one")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyRejectsNull(t *testing.T) {
	_, err := FromAny(map[string]any{"a": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestToAnyRoundTrip(t *testing.T) {
	obj := IRObject{"n": IRInt(2), "list": IRArray{IRString("a")}, "ok": IRBool(true)}

	plain := ToAny(obj)
	back, err := FromAny(plain)
	require.NoError(t, err)
	assert.True(t, Equal(obj, back))
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"a":[1,"x",true]}`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRArray{IRInt(1), IRString("x"), IRBool(true)}}, v)

	_, err = UnmarshalIRValue([]byte(`{"a":1.5}`))
	assert.Error(t, err, "floats are rejected")

	_, err = UnmarshalIRValue([]byte(`{"a":null}`))
	assert.Error(t, err, "null is rejected")
}
