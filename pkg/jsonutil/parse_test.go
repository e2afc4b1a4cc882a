package jsonutil_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	v := mustParse(t, `{"n":null,"b":true,"num":1.25,"s":"x","arr":[1],"obj":{}}`)
	require.Equal(t, jsonutil.KindObject, v.Kind())
	assert.Equal(t, 6, v.Len())

	n, _ := v.Get("n")
	assert.True(t, n.IsNull())

	b, _ := v.Get("b")
	bv, ok := b.AsBool()
	assert.True(t, ok)
	assert.True(t, bv)

	num, _ := v.Get("num")
	lit, ok := num.AsNumber()
	assert.True(t, ok)
	assert.Equal(t, "1.25", lit)
	f, err := num.Float64()
	require.NoError(t, err)
	assert.Equal(t, 1.25, f)

	arr, _ := v.Get("arr")
	assert.Equal(t, jsonutil.KindArray, arr.Kind())
	assert.Len(t, arr.Items(), 1)

	obj, _ := v.Get("obj")
	assert.Equal(t, jsonutil.KindObject, obj.Kind())
	assert.Empty(t, obj.Members())
}

func TestParse_PreservesIntegerLiteral(t *testing.T) {
	v := mustParse(t, `18446744073709551617`)
	lit, ok := v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, "18446744073709551617", lit)
}

func TestParse_Path(t *testing.T) {
	v := mustParse(t, `{"lineage":{"caseId":"CASE-7"}}`)
	got, ok := v.Path("lineage", "caseId")
	require.True(t, ok)
	s, _ := got.AsString()
	assert.Equal(t, "CASE-7", s)

	_, ok = v.Path("lineage", "missing")
	assert.False(t, ok)
	_, ok = v.Path("lineage", "caseId", "deeper")
	assert.False(t, ok)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"truncated object", `{"a":1`},
		{"trailing data", `{"a":1} {"b":2}`},
		{"trailing garbage", `[1]x`},
		{"duplicate key", `{"a":1,"a":2}`},
		{"nested duplicate key", `{"x":{"k":1,"k":1}}`},
		{"invalid utf8", "\"\xff\""},
		{"lone high surrogate", `"\ud800"`},
		{"lone low surrogate", `"\udc00x"`},
		{"high surrogate then text", `"\ud83dabc"`},
		{"single quotes", `{'a':1}`},
		{"leading zero", `01`},
		{"nan literal", `NaN`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jsonutil.Parse([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errclass.ErrMalformedInput), "got %v", err)
		})
	}
}

func TestParse_AcceptsSurrogatePairEscape(t *testing.T) {
	v := mustParse(t, `"😀 and \\ud800 literal"`)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "😀 and \\ud800 literal", s)
}

func TestParse_TrailingWhitespaceAllowed(t *testing.T) {
	v := mustParse(t, "{\"a\":1}\n\t ")
	assert.Equal(t, 1, v.Len())
}

func TestValue_JSONRoundTrip(t *testing.T) {
	type envelope struct {
		Body jsonutil.Value `json:"body"`
	}
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(`{"body":{"b":[1,2],"a":"x"}}`), &env))

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Equal(t, `{"body":{"a":"x","b":[1,2]}}`, string(out))
}

func TestNumber_Validation(t *testing.T) {
	for _, ok := range []string{"0", "-0", "1", "-12.5", "1e5", "1E-5", "0.0e+0"} {
		_, err := jsonutil.Number(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "-", "+1", "01", "1.", ".5", "1e", "1e+", "0x10", "Infinity", "1 "} {
		_, err := jsonutil.Number(bad)
		assert.Error(t, err, bad)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "object", jsonutil.KindObject.String())
	assert.Equal(t, "null", jsonutil.KindNull.String())
	assert.Equal(t, "kind(42)", jsonutil.Kind(42).String())
}
