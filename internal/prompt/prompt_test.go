package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestResolveOriginalPrompt(t *testing.T) {
	res := Resolve(raw(`"a cat"`), raw(`{"a":1}`))
	assert.Equal(t, Resolution{Key: "a cat", Form: FormOriginal}, res)
}

func TestResolveSentinelUsesStructuredPrompt(t *testing.T) {
	res := Resolve(raw(`"Injection completely consistent"`), raw(`{"a":1,"b":2}`))
	assert.Equal(t, FormCanonical, res.Form)
	assert.Equal(t, `{"a":1,"b":2}`, res.Key)
	assert.NoError(t, res.Err)
}

func TestResolveKeepsSourceKeyOrder(t *testing.T) {
	res := Resolve(raw(`"`+Sentinel+`"`), raw("{\n  \"z\": 1,\n  \"a\": {\"y\": [1, 2], \"b\": \"x y\"}\n}"))
	assert.Equal(t, FormCanonical, res.Form)
	assert.Equal(t, `{"z":1,"a":{"y":[1,2],"b":"x y"}}`, res.Key)
}

func TestResolveMissingOriginal(t *testing.T) {
	for _, original := range []json.RawMessage{nil, raw("  "), raw(`""`)} {
		res := Resolve(original, raw(`{"a":1}`))
		assert.Equal(t, Resolution{Key: "", Form: FormOriginal}, res)
	}
}

func TestResolveNullOriginalIsDistinct(t *testing.T) {
	res := Resolve(raw("null"), raw(`{"a":1}`))
	assert.Equal(t, Resolution{Key: NullKey, Form: FormOriginal}, res)
	assert.NotEqual(t, Resolve(nil, nil).Key, res.Key)
	// the title tag still renders null as empty
	assert.Equal(t, "", Original(raw("null")))
}

func TestResolveEscapedAndLiteralStringsShareKey(t *testing.T) {
	sentinel := raw(`"` + Sentinel + `"`)
	literal := Resolve(sentinel, raw(`{"scene":"你好","n":1}`))
	escaped := Resolve(sentinel, raw(`{"scene":"\u4f60\u597d","n":1}`))

	assert.Equal(t, FormCanonical, escaped.Form)
	assert.Equal(t, literal.Key, escaped.Key)
	assert.Equal(t, `{"scene":"你好","n":1}`, escaped.Key)
}

func TestCanonicalEscaping(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html characters stay literal", `{"a":"<b>&</b>"}`, `{"a":"<b>&</b>"}`},
		{"escaped slash is decoded", `{"a":"x\/y"}`, `{"a":"x/y"}`},
		{"quotes and backslashes stay escaped", `{"a":"say \"hi\" \\ bye"}`, `{"a":"say \"hi\" \\ bye"}`},
		{"newline stays escaped", `{"a":"l1\nl2"}`, `{"a":"l1\nl2"}`},
		{"escaped key", `{"\u0061":1}`, `{"a":1}`},
		{"number text is kept", `{"a":1.50,"b":1e3,"c":-0}`, `{"a":1.50,"b":1e3,"c":-0}`},
		{"nested literals", `{"a":[true,false,null,{}],"b":[]}`, `{"a":[true,false,null,{}],"b":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(raw(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalRejectsTrailingData(t *testing.T) {
	_, err := Canonical(raw(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}

func TestResolveNonStringOriginalIsCoerced(t *testing.T) {
	assert.Equal(t, "42", Resolve(raw("42"), nil).Key)
	assert.Equal(t, `{"k":"v"}`, Resolve(raw(`{ "k": "v" }`), nil).Key)
	assert.Equal(t, "true", Resolve(raw("true"), nil).Key)
}

func TestResolveFallbacks(t *testing.T) {
	sentinel := raw(`"` + Sentinel + `"`)

	tests := []struct {
		name       string
		structured json.RawMessage
		wantKey    string
		wantForm   Form
	}{
		{"missing structured prompt is empty object", nil, "{}", FormCanonical},
		{"string structured prompt", raw(`"a dog running"`), "a dog running", FormFallback},
		{"array structured prompt", raw(`[1, 2]`), "[1,2]", FormFallback},
		{"null structured prompt", raw(`null`), "null", FormFallback},
		{"broken object", raw(`{"a":`), `{"a":`, FormFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(sentinel, tt.structured)
			assert.Equal(t, tt.wantKey, res.Key)
			assert.Equal(t, tt.wantForm, res.Form)
			if tt.wantForm == FormFallback {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestCanonicalRejectsNonObjects(t *testing.T) {
	_, err := Canonical(raw(`[1]`))
	require.ErrorIs(t, err, ErrNotObject)
}

func TestCompact(t *testing.T) {
	got, err := Compact(raw(` [ 1, {"b": 2, "a": 1} ] `))
	require.NoError(t, err)
	assert.Equal(t, `[1,{"b":2,"a":1}]`, got)

	got, err = Compact(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)

	got, err = Compact(raw(`{"scene":"caf\u00e9"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"scene":"café"}`, got)

	_, err = Compact(raw(`{`))
	assert.Error(t, err)
}

type field struct {
	Key   string
	Value int
}

// buildObject renders fields as a JSON object in the given order, using sep
// between tokens so the same structure can be written with different spacing.
func buildObject(fields []field, sep string) string {
	var b strings.Builder
	b.WriteString("{" + sep)
	for i, f := range fields {
		if i > 0 {
			b.WriteString("," + sep)
		}
		fmt.Fprintf(&b, "%q%s:%s%d", f.Key, sep, sep, f.Value)
	}
	b.WriteString(sep + "}")
	return b.String()
}

func genFields() gopter.Gen {
	return gen.SliceOfN(5, gopter.CombineGens(
		gen.Identifier(),
		gen.IntRange(-1000, 1000),
	).Map(func(vals []interface{}) field {
		return field{Key: vals[0].(string), Value: vals[1].(int)}
	}))
}

func TestCanonicalProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	sentinel := raw(`"` + Sentinel + `"`)

	properties.Property("whitespace does not change the canonical key", prop.ForAll(
		func(fields []field) bool {
			compact := Resolve(sentinel, raw(buildObject(fields, "")))
			spaced := Resolve(sentinel, raw(buildObject(fields, "\n  ")))
			return compact.Form == FormCanonical && compact.Key == spaced.Key
		},
		genFields(),
	))

	properties.Property("canonical key preserves source key order", prop.ForAll(
		func(fields []field) bool {
			return Resolve(sentinel, raw(buildObject(fields, " "))).Key == buildObject(fields, "")
		},
		genFields(),
	))

	properties.Property("non-sentinel originals are returned as-is", prop.ForAll(
		func(text string) bool {
			if text == Sentinel {
				return true
			}
			encoded, _ := json.Marshal(text)
			res := Resolve(encoded, raw(`{"a":1}`))
			return res.Form == FormOriginal && res.Key == text
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
