package bson

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON_SampleDocument(t *testing.T) {
	doc, err := FromJSON([]byte(`{"name": "abc", "age": 43, "phones": ["0001", "0002"]}`))
	require.NoError(t, err)
	assert.True(t, sampleDocument().Equal(doc), "got %s", doc)
}

func TestFromJSON_Numbers(t *testing.T) {
	doc, err := FromJSON([]byte(`{"small": 7, "big": 5000000000, "frac": 1.25, "exp": 1e3, "neg": -2147483648}`))
	require.NoError(t, err)

	tests := []struct {
		key  string
		kind Kind
	}{
		{"small", KindInt32},
		{"big", KindInt64},
		{"frac", KindDouble},
		{"exp", KindDouble},
		{"neg", KindInt32},
	}
	for _, tc := range tests {
		v, ok := doc.Lookup(tc.key)
		require.True(t, ok, tc.key)
		assert.Equal(t, tc.kind, v.Kind(), tc.key)
	}
}

func TestFromJSON_Errors(t *testing.T) {
	inputs := []string{
		``,
		`[1, 2]`,
		`"text"`,
		`{"a": }`,
		`{"a": 1} {"b": 2}`,
		`{"a\u0000b": 1}`,
	}
	for _, in := range inputs {
		_, err := FromJSON([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestMarshalJSON_RoundTripsPlainDocuments(t *testing.T) {
	in := `{"name":"abc","age":43,"ok":true,"none":null,"list":[1,"two",{"x":2.5}],"ratio":3.0}`
	doc, err := FromJSON([]byte(in))
	require.NoError(t, err)

	out, err := doc.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestMarshalJSON_ExtendedTypes(t *testing.T) {
	oid, _ := ObjectIDFromHex("5f1d7c3e9b1e8a0012345678")
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"objectId", ObjectIDValue(oid), `{"$oid":"5f1d7c3e9b1e8a0012345678"}`},
		{"binary", BinaryValue(4, []byte{1, 2, 3}), `{"$binary":{"base64":"AQID","subType":"04"}}`},
		{"date", DateTime(1700000000123), `{"$date":{"$numberLong":"1700000000123"}}`},
		{"regex", RegexValue("a+", "i"), `{"$regularExpression":{"pattern":"a+","options":"i"}}`},
		{"timestamp", TimestampValue(5, 6), `{"$timestamp":{"t":5,"i":6}}`},
		{"nan", Double(math.NaN()), `{"$numberDouble":"NaN"}`},
		{"inf", Double(math.Inf(-1)), `{"$numberDouble":"-Infinity"}`},
		{"decimal", Decimal128Value(Decimal128{High: 0x3040000000000000, Low: 12345}), `{"$numberDecimal":"12345"}`},
		{"js", JavaScript("f()"), `{"$code":"f()"}`},
		{"symbol", Symbol("s"), `{"$symbol":"s"}`},
		{"minKey", MinKey(), `{"$minKey":1}`},
		{"maxKey", MaxKey(), `{"$maxKey":1}`},
		{"undefined", Undefined(), `{"$undefined":true}`},
		{"escaped", String("a\"b\n"), `"a\"b\n"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.v.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestDecimal128_String(t *testing.T) {
	tests := []struct {
		name string
		d    Decimal128
		want string
	}{
		{"one", Decimal128{High: 0x3040000000000000, Low: 1}, "1"},
		{"negative one", Decimal128{High: 0xB040000000000000, Low: 1}, "-1"},
		{"thousandth", Decimal128{High: 0x303A000000000000, Low: 1}, "0.001"},
		{"fraction", Decimal128{High: 0x303C000000000000, Low: 12345}, "123.45"},
		{"positive exponent", Decimal128{High: 0x3046000000000000, Low: 1}, "1E+3"},
		{"zero", Decimal128{High: 0x3040000000000000}, "0"},
		{"nan", Decimal128{High: 0x7C00000000000000}, "NaN"},
		{"infinity", Decimal128{High: 0x7800000000000000}, "Infinity"},
		{"negative infinity", Decimal128{High: 0xF800000000000000}, "-Infinity"},
		{"largest coefficient", Decimal128{High: 0x3041ED09BEAD87C0, Low: 0x378D8E63FFFFFFFF}, "9999999999999999999999999999999999"},
		{"non-canonical coefficient", Decimal128{High: 0x3041ED09BEAD87C0, Low: 0x378D8E6400000000}, "0"},
		{"non-canonical max bits", Decimal128{High: 0x3041FFFFFFFFFFFF, Low: 0xFFFFFFFFFFFFFFFF}, "0"},
		{"non-canonical with exponent", Decimal128{High: 0x303FFFFFFFFFFFFF, Low: 0xFFFFFFFFFFFFFFFF}, "0.0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.String())
		})
	}
}

func TestDocument_LookupPath(t *testing.T) {
	doc := NewDocument(
		E("a", Doc(NewDocument(E("b", Arr(NewArray(Int32(1), Doc(NewDocument(E("c", String("deep")))))))))),
	)

	v, ok := doc.LookupPath("a", "b", "1", "c")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "deep", s)

	_, ok = doc.LookupPath("a", "b", "9")
	assert.False(t, ok)
	_, ok = doc.LookupPath("a", "b", "x")
	assert.False(t, ok)
	_, ok = doc.LookupPath("a", "b", "0", "c")
	assert.False(t, ok)
	_, ok = doc.LookupPath("missing")
	assert.False(t, ok)
}

func TestDocument_Set(t *testing.T) {
	doc := NewDocument(E("a", Int32(1)), E("b", Int32(2)))
	doc.Set("a", String("x")).Set("c", Null())

	assert.Equal(t, []string{"a", "b", "c"}, doc.Keys())
	v, _ := doc.Lookup("a")
	s, _ := v.AsString()
	assert.Equal(t, "x", s)
}
