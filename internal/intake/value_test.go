package intake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    Kind
		wantErr bool
	}{
		{name: "object", body: `{"a":1}`, kind: KindObject},
		{name: "array", body: `[1,"two",null]`, kind: KindArray},
		{name: "string", body: `"x"`, kind: KindString},
		{name: "number", body: `-3.5`, kind: KindNumber},
		{name: "bool", body: `false`, kind: KindBool},
		{name: "null", body: `null`, kind: KindNull},
		{name: "surrounding whitespace", body: " \n{}\t", kind: KindObject},
		{name: "empty body", body: ``, wantErr: true},
		{name: "truncated", body: `{"a":`, wantErr: true},
		{name: "trailing data", body: `{} {}`, wantErr: true},
		{name: "not json", body: `patient_name=John`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse([]byte(tt.body))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestValue_PreservesMemberOrder(t *testing.T) {
	v, err := Parse([]byte(`{"z":1,"a":{"y":true,"b":null},"m":[1,2]}`))
	require.NoError(t, err)

	keys := make([]string, 0)
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":true,"b":null},"m":[1,2]}`, string(out))
}

func TestValue_Path(t *testing.T) {
	v, err := Parse([]byte(`{"results":[{"items":[{"collected_data":{"k":"v"}}]}]}`))
	require.NoError(t, err)

	got, ok := v.Path("results", 0, "items", 0, "collected_data", "k")
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(mustMarshal(t, got)))

	_, ok = v.Path("results", 1)
	assert.False(t, ok)
	_, ok = v.Path("results", "items")
	assert.False(t, ok)
}

func TestValue_DuplicateKeysLastWins(t *testing.T) {
	v, err := Parse([]byte(`{"k":"first","k":"second"}`))
	require.NoError(t, err)
	got, ok := v.Get("k")
	require.True(t, ok)
	assert.Equal(t, `"second"`, string(mustMarshal(t, got)))
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var wrapper struct {
		Payload Value `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"payload":{"b":2,"a":1}}`), &wrapper))
	assert.Equal(t, `{"b":2,"a":1}`, string(mustMarshal(t, wrapper.Payload)))
}

func mustMarshal(t *testing.T, v Value) []byte {
	t.Helper()
	b, err := v.MarshalJSON()
	require.NoError(t, err)
	return b
}

func TestValue_KindPredicates(t *testing.T) {
	v, err := Parse([]byte(`{"a":null,"b":[1],"c":{}}`))
	require.NoError(t, err)

	a, _ := v.Get("a")
	b, _ := v.Get("b")
	c, _ := v.Get("c")
	assert.True(t, a.IsNull())
	assert.True(t, b.IsArray())
	assert.False(t, b.IsNull())
	assert.True(t, c.IsObject())
	assert.False(t, c.IsArray())

	missing, ok := v.Get("zzz")
	assert.False(t, ok)
	assert.True(t, missing.IsNull(), "zero Value is null")
}
