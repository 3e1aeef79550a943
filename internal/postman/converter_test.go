package postman

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-runner/internal/models"
)

const maxHeaders = 50

func TestImportMinimalDocument(t *testing.T) {
	data := []byte(`{
		"info": {"name": "Demo"},
		"item": [
			{"name": "Get", "request": {"method": "GET", "url": "https://e.x/{{id}}"}}
		]
	}`)

	c, err := Import(data, maxHeaders)
	require.NoError(t, err)

	assert.Equal(t, "Demo", c.Name)
	assert.Equal(t, 1, c.Version)
	require.Len(t, c.Items, 1)

	item := c.Items[0]
	assert.Equal(t, models.ItemTypeRequest, item.Type)
	assert.Equal(t, "", item.ParentID)
	assert.Equal(t, 0, item.Position)
	require.NotNil(t, item.Request)
	assert.Equal(t, "GET", item.Request.Method)
	// Template tokens pass through untouched.
	assert.Equal(t, "https://e.x/{{id}}", item.Request.URL)
}

func TestImportNestedFolders(t *testing.T) {
	data := []byte(`{
		"info": {"name": "Nested", "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"},
		"item": [
			{"name": "Users", "item": [
				{"name": "List", "request": {"method": "GET", "url": "https://e.x/users"}},
				{"name": "Create", "request": {"method": "POST", "url": "https://e.x/users"}}
			]},
			{"name": "Ping", "request": {"method": "GET", "url": "https://e.x/ping"}}
		]
	}`)

	c, err := Import(data, maxHeaders)
	require.NoError(t, err)
	require.Len(t, c.Items, 4)

	folder := c.Items[0]
	assert.Equal(t, models.ItemTypeFolder, folder.Type)
	assert.Equal(t, "Users", folder.Name)
	assert.Nil(t, folder.Request)

	list, create := c.Items[1], c.Items[2]
	assert.Equal(t, folder.ID, list.ParentID)
	assert.Equal(t, folder.ID, create.ParentID)
	assert.Equal(t, 0, list.Position)
	assert.Equal(t, 1, create.Position)

	ping := c.Items[3]
	assert.Equal(t, "", ping.ParentID)
	assert.Equal(t, 1, ping.Position)
}

func TestImportEmptyFolderSurvives(t *testing.T) {
	data := []byte(`{"info": {"name": "F"}, "item": [{"name": "Empty folder"}]}`)

	c, err := Import(data, maxHeaders)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, models.ItemTypeFolder, c.Items[0].Type)
}

func TestImportURLObjectAndEvents(t *testing.T) {
	data := []byte(`{
		"info": {"name": "Evented"},
		"item": [{
			"name": "Req",
			"event": [
				{"listen": "prerequest", "script": {"exec": ["set(\"a\", \"1\")"]}},
				{"listen": "test", "script": {"exec": ["assert(true, \"ok\")", "assert(vars.a == \"1\", \"delta\")"]}}
			],
			"request": {
				"method": "post",
				"url": {"raw": "https://e.x/items", "host": ["e", "x"]},
				"header": [
					{"key": "Content-Type", "value": "application/json"},
					{"key": "X-Off", "value": "1", "disabled": true}
				],
				"body": {"mode": "raw", "raw": "{\"n\": {{n}}}"}
			}
		}]
	}`)

	c, err := Import(data, maxHeaders)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	item := c.Items[0]
	assert.Equal(t, `set("a", "1")`, item.PreRequestScript)
	assert.Equal(t, "assert(true, \"ok\")\nassert(vars.a == \"1\", \"delta\")", item.TestScript)

	spec := item.Request
	require.NotNil(t, spec)
	assert.Equal(t, "POST", spec.Method)
	assert.Equal(t, "https://e.x/items", spec.URL)
	require.Len(t, spec.Headers, 2)
	assert.True(t, spec.Headers[0].Enabled)
	assert.False(t, spec.Headers[1].Enabled)
	assert.Equal(t, models.BodyModeRaw, spec.Body.Mode)
	assert.Equal(t, `{"n": {{n}}}`, spec.Body.Raw)
}

func TestImportVariablesAndAuth(t *testing.T) {
	data := []byte(`{
		"info": {"name": "Vars"},
		"variable": [
			{"key": "host", "value": "e.x"},
			{"key": "off", "value": "x", "disabled": true}
		],
		"auth": {"type": "bearer", "bearer": [{"key": "token", "value": "{{token}}"}]},
		"item": []
	}`)

	c, err := Import(data, maxHeaders)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"host": "e.x"}, c.Variables)
	require.NotNil(t, c.Auth)
	assert.Equal(t, "bearer", c.Auth.Type)
	assert.Equal(t, "{{token}}", c.Auth.Params["token"])
}

func TestImportRejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", `{"info": {}, "item": []}`},
		{"bad schema", `{"info": {"name": "X", "schema": "https://schema.getpostman.com/json/collection/v1.0.0/collection.json"}, "item": []}`},
		{"not json", `{"info":`},
		{"bad method", `{"info": {"name": "X"}, "item": [{"name": "R", "request": {"method": "TELEPORT", "url": "https://e.x"}}]}`},
		{"bad body mode", `{"info": {"name": "X"}, "item": [{"name": "R", "request": {"method": "GET", "url": "https://e.x", "body": {"mode": "graphql"}}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.data), maxHeaders)
			assert.Error(t, err)
		})
	}
}

func TestExportFollowsSiblingOrdinals(t *testing.T) {
	// Slice order deliberately disagrees with positions, as it does after an
	// item move.
	c := &models.Collection{
		Name: "Moved",
		Items: []models.Item{
			{ID: "a", Name: "A", Type: models.ItemTypeRequest, Position: 1,
				Request: &models.RequestSpec{Method: "GET", URL: "https://e.x/a"}},
			{ID: "b", Name: "B", Type: models.ItemTypeRequest, Position: 0,
				Request: &models.RequestSpec{Method: "GET", URL: "https://e.x/b"}},
			{ID: "f", Name: "F", Type: models.ItemTypeFolder, Position: 2},
			{ID: "f2", Name: "F2", ParentID: "f", Type: models.ItemTypeRequest, Position: 1,
				Request: &models.RequestSpec{Method: "GET", URL: "https://e.x/f2"}},
			{ID: "f1", Name: "F1", ParentID: "f", Type: models.ItemTypeRequest, Position: 0,
				Request: &models.RequestSpec{Method: "GET", URL: "https://e.x/f1"}},
		},
	}

	doc, err := Export(c)
	require.NoError(t, err)

	require.Len(t, doc.Item, 3)
	assert.Equal(t, "B", doc.Item[0].Name)
	assert.Equal(t, "A", doc.Item[1].Name)
	assert.Equal(t, "F", doc.Item[2].Name)
	require.Len(t, doc.Item[2].Item, 2)
	assert.Equal(t, "F1", doc.Item[2].Item[0].Name)
	assert.Equal(t, "F2", doc.Item[2].Item[1].Name)
}

func TestExportRoundTrip(t *testing.T) {
	original := []byte(`{
		"info": {"name": "Round", "description": "trip"},
		"variable": [{"key": "host", "value": "e.x"}],
		"item": [
			{"name": "Group", "item": [
				{"name": "Post it", "request": {
					"method": "POST",
					"url": "https://{{host}}/items",
					"header": [{"key": "Content-Type", "value": "application/json"}],
					"body": {"mode": "raw", "raw": "{\"a\":1}"}
				}}
			]}
		]
	}`)

	c, err := Import(original, maxHeaders)
	require.NoError(t, err)

	doc, err := Export(c)
	require.NoError(t, err)

	assert.Equal(t, "Round", doc.Info.Name)
	assert.Equal(t, SchemaV21, doc.Info.Schema)
	require.Len(t, doc.Item, 1)
	require.Len(t, doc.Item[0].Item, 1)

	exported := doc.Item[0].Item[0]
	require.NotNil(t, exported.Request)
	assert.Equal(t, "POST", exported.Request.Method)
	assert.Equal(t, "https://{{host}}/items", exported.Request.URL)
	require.Len(t, exported.Request.Header, 1)
	assert.Equal(t, "Content-Type", exported.Request.Header[0].Key)
	require.NotNil(t, exported.Request.Body)
	assert.Equal(t, `{"a":1}`, exported.Request.Body.Raw)

	// The exported document imports back cleanly.
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	again, err := Import(data, maxHeaders)
	require.NoError(t, err)
	assert.Equal(t, c.Name, again.Name)
	assert.Len(t, again.Items, len(c.Items))
}
