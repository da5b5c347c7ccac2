package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
		kind Kind
	}{
		{"object", `{"a":1}`, true, Object},
		{"array", `[1,2]`, true, Array},
		{"string", `"hi"`, true, String},
		{"number", `42`, true, Number},
		{"bool", `true`, true, Bool},
		{"null", `null`, true, Null},
		{"padded", "  {\"a\":1}\n", true, Object},
		{"empty", ``, false, Absent},
		{"plain text", `hello world`, false, Absent},
		{"truncated", `{"a":`, false, Absent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Decode(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestLookup(t *testing.T) {
	v, ok := Decode(`{"user":{"profile":{"name":"ann"},"tags":["x","y"],"nil":null},"items":[{"x":1}],"dup":1,"dup":2}`)
	require.True(t, ok)

	assert.Equal(t, "ann", v.Lookup("user.profile.name").String())
	assert.Equal(t, "y", v.Lookup("user.tags.1").String())
	assert.Equal(t, "1", v.Lookup("items.0.x").String())
	assert.Equal(t, "2", v.Lookup("dup").String())

	// null 叶子存在，null 中间值不可继续解析
	assert.True(t, v.Lookup("user.nil").Exists())
	assert.False(t, v.Lookup("user.nil.deeper").Exists())

	assert.False(t, v.Lookup("user.missing").Exists())
	assert.False(t, v.Lookup("items.x").Exists())
	assert.False(t, v.Lookup("user.tags.9").Exists())
	// 带前导零的下标不是数组索引
	assert.False(t, v.Lookup("items.00.x").Exists())
	assert.False(t, v.Lookup("user.tags.01").Exists())
	assert.False(t, v.Lookup("user.profile.name.first").Exists())
}

func TestString_Coercion(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`"hello world"`, "hello world"},
		{`42`, "42"},
		{`42.0`, "42"},
		{`3.14`, "3.14"},
		{`-0`, "0"},
		{`1e21`, "1e+21"},
		{`1e-7`, "1e-7"},
		{`0.000001`, "0.000001"},
		{`123456789012345680000`, "123456789012345680000"},
		{`true`, "true"},
		{`false`, "false"},
		{`null`, "null"},
		{`{ "a" : 1, "b" : [1, 2] }`, `{"a":1,"b":[1,2]}`},
		{`[ 1, "x" ]`, `[1,"x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			v, ok := Decode(tt.data)
			require.True(t, ok)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestFirst(t *testing.T) {
	v, ok := Decode(`[{"a":1},{"b":2}]`)
	require.True(t, ok)
	first := v.First()
	assert.True(t, first.IsObject())
	assert.Equal(t, "1", first.Key("a").String())

	empty, ok := Decode(`[]`)
	require.True(t, ok)
	assert.False(t, empty.First().Exists())
}

func TestPretty(t *testing.T) {
	v, ok := Decode(`{"a":1}`)
	require.True(t, ok)
	assert.Equal(t, "{\n  \"a\": 1\n}", v.Pretty())
	assert.Equal(t, "", Value{}.Pretty())

	v, ok = Decode(`{"tags":[1,2],"empty":[],"nested":[[true]]}`)
	require.True(t, ok)
	want := "{\n  \"tags\": [\n    1,\n    2\n  ],\n  \"empty\": [],\n  \"nested\": [\n    [\n      true\n    ]\n  ]\n}"
	assert.Equal(t, want, v.Pretty())
}
