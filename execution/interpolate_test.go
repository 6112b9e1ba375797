package execution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	variables := map[string]any{
		"name":  "Carlos",
		"age":   float64(34),
		"score": 4.5,
		"vip":   true,
		"api_result": map[string]any{
			"status": float64(200),
			"items":  []any{"first", "second"},
		},
	}

	for name, tc := range map[string]struct {
		text string
		want string
	}{
		"simple variable":       {"Hola {{name}}", "Hola Carlos"},
		"spaces inside braces":  {"Hola {{ name }}", "Hola Carlos"},
		"integer float":         {"Tienes {{age}} años", "Tienes 34 años"},
		"decimal float":         {"Score: {{score}}", "Score: 4.5"},
		"boolean":               {"VIP: {{vip}}", "VIP: true"},
		"dotted path":           {"Status: {{api_result.status}}", "Status: 200"},
		"slice index":           {"Item: {{api_result.items.1}}", "Item: second"},
		"unknown stays literal": {"Hola {{missing}}", "Hola {{missing}}"},
		"unknown nested path":   {"{{api_result.nope.deep}}", "{{api_result.nope.deep}}"},
		"multiple placeholders": {"{{name}} ({{age}})", "Carlos (34)"},
		"no placeholders":       {"sin variables", "sin variables"},
		"empty text":            {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, Interpolate(tc.text, variables))
		})
	}
}

func TestInterpolateIsIdempotentOnLiterals(t *testing.T) {
	variables := map[string]any{"known": "x"}
	text := "{{known}} y {{unknown}}"

	once := Interpolate(text, variables)
	twice := Interpolate(once, variables)
	require.Equal(t, once, twice)
}

func TestInterpolateMap(t *testing.T) {
	variables := map[string]any{"city": "Lima", "code": float64(51)}

	body := map[string]any{
		"destination": "{{city}}",
		"meta": map[string]any{
			"prefix": "+{{code}}",
		},
		"tags":  []any{"{{city}}", "fixed"},
		"count": 3,
	}

	out := InterpolateMap(body, variables)

	require.Equal(t, "Lima", out["destination"])
	require.Equal(t, "+51", out["meta"].(map[string]any)["prefix"])
	require.Equal(t, []any{"Lima", "fixed"}, out["tags"])
	require.Equal(t, 3, out["count"])

	// El map original no se muta
	require.Equal(t, "{{city}}", body["destination"])
}

func TestLookupPath(t *testing.T) {
	variables := map[string]any{
		"user": map[string]any{
			"orders": []any{
				map[string]any{"total": 99.9},
			},
		},
	}

	value, ok := LookupPath(variables, "user.orders.0.total")
	require.True(t, ok)
	require.Equal(t, 99.9, value)

	_, ok = LookupPath(variables, "user.orders.5.total")
	require.False(t, ok)

	_, ok = LookupPath(variables, "user.orders.x")
	require.False(t, ok)
}
