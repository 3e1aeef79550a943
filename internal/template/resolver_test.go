package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-runner/internal/models"
)

func TestResolveString(t *testing.T) {
	vars := map[string]string{
		"host": "api.example.com",
		"id":   "42",
	}

	assert.Equal(t, "https://api.example.com/users/42", ResolveString("https://{{host}}/users/{{id}}", vars))
	assert.Equal(t, "plain", ResolveString("plain", vars))
	assert.Equal(t, "", ResolveString("", vars))
}

func TestResolveStringUnknownTokenKeptVerbatim(t *testing.T) {
	assert.Equal(t, "{{missing}}", ResolveString("{{missing}}", map[string]string{}))
	assert.Equal(t, "{{missing}}/42", ResolveString("{{missing}}/{{id}}", map[string]string{"id": "42"}))
}

func TestResolveStringIsSinglePass(t *testing.T) {
	// A value that itself looks like a token is not resolved again.
	vars := map[string]string{
		"a": "{{b}}",
		"b": "deep",
	}
	assert.Equal(t, "{{b}}", ResolveString("{{a}}", vars))
}

func TestResolveStringMalformedTokens(t *testing.T) {
	vars := map[string]string{"id": "42"}

	assert.Equal(t, "{id}", ResolveString("{id}", vars))
	assert.Equal(t, "{{ id }}", ResolveString("{{ id }}", vars))
	assert.Equal(t, "{{9bad}}", ResolveString("{{9bad}}", vars))
}

func TestResolveRecursesThroughShapes(t *testing.T) {
	vars := map[string]string{"v": "x"}

	in := map[string]any{
		"s":    "{{v}}",
		"n":    7,
		"list": []any{"{{v}}", 1},
		"m":    map[string]string{"k": "{{v}}"},
	}
	out, ok := Resolve(in, vars).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, "x", out["s"])
	assert.Equal(t, 7, out["n"])
	assert.Equal(t, []any{"x", 1}, out["list"])
	assert.Equal(t, map[string]string{"k": "x"}, out["m"])

	// Input shapes are never mutated.
	assert.Equal(t, "{{v}}", in["s"])
	assert.Equal(t, "{{v}}", in["m"].(map[string]string)["k"])
}

func TestResolveRequest(t *testing.T) {
	spec := &models.RequestSpec{
		Method: "POST",
		URL:    "https://{{host}}/orders",
		Headers: []models.Header{
			{Key: "Authorization", Value: "Bearer {{token}}", Enabled: true},
			{Key: "X-Debug", Value: "1", Enabled: false},
		},
		Body: models.Body{Mode: models.BodyModeRaw, Raw: `{"id":"{{id}}"}`},
		Auth: &models.Auth{Type: "apikey", Params: map[string]string{"key": "{{token}}"}},
	}
	vars := map[string]string{"host": "api.example.com", "token": "t0k", "id": "9"}

	resolved := ResolveRequest(spec, vars)

	assert.Equal(t, "POST", resolved.Method)
	assert.Equal(t, "https://api.example.com/orders", resolved.URL)
	assert.Equal(t, map[string]string{"Authorization": "Bearer t0k"}, resolved.Headers)
	assert.Equal(t, `{"id":"9"}`, resolved.Body)
	require.NotNil(t, resolved.Auth)
	assert.Equal(t, "t0k", resolved.Auth.Params["key"])

	// The stored spec keeps its templates.
	assert.Equal(t, "https://{{host}}/orders", spec.URL)
	assert.Equal(t, "Bearer {{token}}", spec.Headers[0].Value)
}

func TestResolveRequestBodyModes(t *testing.T) {
	vars := map[string]string{"v": "a b"}

	form := []models.FormField{
		{Key: "name", Value: "{{v}}", Enabled: true},
		{Key: "off", Value: "x", Enabled: false},
	}

	urlencoded := ResolveRequest(&models.RequestSpec{
		Method: "POST",
		URL:    "https://example.com",
		Body:   models.Body{Mode: models.BodyModeURLEncoded, Form: form},
	}, vars)
	assert.Equal(t, "name=a+b", urlencoded.Body)

	none := ResolveRequest(&models.RequestSpec{
		Method: "GET",
		URL:    "https://example.com",
		Body:   models.Body{Mode: models.BodyModeNone, Raw: "ignored"},
	}, vars)
	assert.Equal(t, "", none.Body)
}
