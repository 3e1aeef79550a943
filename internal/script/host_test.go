package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-runner/internal/models"
)

func TestRunSetProducesVariableDelta(t *testing.T) {
	host := NewExprHost()

	result := host.Run(context.Background(), `set("token", "abc")`, Context{
		Variables: map[string]string{},
	})

	assert.Equal(t, map[string]string{"token": "abc"}, result.Variables)
	assert.Empty(t, result.Assertions)
}

func TestRunSetStringifiesValues(t *testing.T) {
	host := NewExprHost()

	result := host.Run(context.Background(), `set("n", 1 + 2)`, Context{})

	assert.Equal(t, "3", result.Variables["n"])
}

func TestRunSetVisibleToLaterLines(t *testing.T) {
	host := NewExprHost()

	source := "set(\"x\", \"1\")\nassert(vars.x == \"1\", \"sees own delta\")"
	result := host.Run(context.Background(), source, Context{
		Variables: map[string]string{},
	})

	require.Len(t, result.Assertions, 1)
	assert.True(t, result.Assertions[0].Passed)
	assert.Equal(t, "1", result.Variables["x"])
}

func TestRunAssertOutcomes(t *testing.T) {
	host := NewExprHost()

	source := "assert(1 == 1, \"math works\")\nassert(1 == 2, \"math broke\")"
	result := host.Run(context.Background(), source, Context{})

	require.Len(t, result.Assertions, 2)
	assert.Equal(t, models.Assertion{Name: "math works", Passed: true}, result.Assertions[0])
	assert.Equal(t, "math broke", result.Assertions[1].Name)
	assert.False(t, result.Assertions[1].Passed)
	assert.Equal(t, "assertion failed", result.Assertions[1].Error)
}

func TestRunFailedLineDoesNotStopLaterLines(t *testing.T) {
	host := NewExprHost()

	source := "assert(false, \"first\")\nset(\"after\", \"yes\")"
	result := host.Run(context.Background(), source, Context{})

	require.Len(t, result.Assertions, 1)
	assert.False(t, result.Assertions[0].Passed)
	assert.Equal(t, "yes", result.Variables["after"])
}

func TestRunInvalidLineRecordedAsFailedAssertion(t *testing.T) {
	host := NewExprHost()

	result := host.Run(context.Background(), "this is not ((( valid", Context{})

	require.Len(t, result.Assertions, 1)
	assert.False(t, result.Assertions[0].Passed)
	assert.Contains(t, result.Assertions[0].Error, "line 1")
}

func TestRunSkipsCommentsAndBlankLines(t *testing.T) {
	host := NewExprHost()

	source := "// comment\n\n# also a comment\nassert(true, \"ok\")"
	result := host.Run(context.Background(), source, Context{})

	require.Len(t, result.Assertions, 1)
	assert.True(t, result.Assertions[0].Passed)
}

func TestRunSeesRequestAndResponse(t *testing.T) {
	host := NewExprHost()

	sctx := Context{
		Request: &models.ResolvedRequest{Method: "GET", URL: "https://example.com/x"},
		Response: &models.ResponseData{
			Status: 200,
			Body:   `{"ok":true}`,
		},
		Variables: map[string]string{"expected": "200"},
	}
	source := "assert(response.status == 200, \"status ok\")\nassert(request.method == \"GET\", \"method ok\")"
	result := host.Run(context.Background(), source, sctx)

	require.Len(t, result.Assertions, 2)
	assert.True(t, result.Assertions[0].Passed)
	assert.True(t, result.Assertions[1].Passed)
}

func TestRunReadsBoundVariables(t *testing.T) {
	host := NewExprHost()

	result := host.Run(context.Background(), `assert(vars.region == "eu", "region bound")`, Context{
		Variables: map[string]string{"region": "eu"},
	})

	require.Len(t, result.Assertions, 1)
	assert.True(t, result.Assertions[0].Passed)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	host := NewExprHost()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := host.Run(ctx, `set("x", "1")`, Context{})

	assert.Empty(t, result.Variables)
}
