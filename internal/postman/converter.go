// Package postman converts between the internal collection model and the
// Postman Collection v2.1 JSON format. Import is all-or-nothing: a malformed
// document leaves nothing behind. Template tokens pass through verbatim in
// both directions.
package postman

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"collection-runner/internal/models"
	"collection-runner/internal/validator"
)

var validSchemas = map[string]bool{
	"https://schema.getpostman.com/json/collection/v2.0.0/collection.json": true,
	"https://schema.getpostman.com/json/collection/v2.1.0/collection.json": true,
	"https://schema.getpostman.com/json/collection/v2.0":                   true,
	"https://schema.getpostman.com/json/collection/v2.1":                   true,
}

// Import parses a Postman v2.1 document into a new Collection. The caller is
// responsible for persisting it; validation failures abort the whole import.
func Import(data []byte, maxHeaderCount int) (*models.Collection, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	return FromDocument(&doc, maxHeaderCount)
}

// FromDocument maps a parsed Postman document into the internal tree model.
func FromDocument(doc *Document, maxHeaderCount int) (*models.Collection, error) {
	if doc.Info.Name == "" {
		return nil, fmt.Errorf("collection info.name is required")
	}
	if doc.Info.Schema != "" && !validSchemas[doc.Info.Schema] {
		return nil, fmt.Errorf("unsupported Postman schema version: %s (only v2.0 and v2.1 are supported)", doc.Info.Schema)
	}

	now := time.Now().UTC()
	c := &models.Collection{
		ID:          uuid.NewString(),
		Name:        doc.Info.Name,
		Description: doc.Info.Description,
		Variables:   importVariables(doc.Variable),
		Auth:        importAuth(doc.Auth),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	items, err := importItems(doc.Item, "", maxHeaderCount)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return c, nil
}

func importItems(items []Item, parentID string, maxHeaderCount int) ([]models.Item, error) {
	var out []models.Item
	for i, pi := range items {
		item := models.Item{
			ID:          uuid.NewString(),
			ParentID:    parentID,
			Name:        pi.Name,
			Description: pi.Description,
			Position:    i,
		}
		item.PreRequestScript, item.TestScript = importEvents(pi.Event)

		if pi.Request == nil {
			// Items without a request act as folders, including empty ones.
			item.Type = models.ItemTypeFolder
			children, err := importItems(pi.Item, item.ID, maxHeaderCount)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
			out = append(out, children...)
			continue
		}

		item.Type = models.ItemTypeRequest
		spec, err := importRequest(pi.Request)
		if err != nil {
			return nil, fmt.Errorf("invalid request %q: %w", pi.Name, err)
		}
		if err := validator.ValidateRequestSpec(spec, maxHeaderCount); err != nil {
			return nil, fmt.Errorf("invalid request %q: %w", pi.Name, err)
		}
		item.Request = spec
		out = append(out, item)
	}
	return out, nil
}

func importRequest(req *Request) (*models.RequestSpec, error) {
	urlStr, err := extractURL(req.URL)
	if err != nil {
		return nil, err
	}

	spec := &models.RequestSpec{
		Method: strings.ToUpper(req.Method),
		URL:    urlStr,
		Auth:   importAuth(req.Auth),
		Body:   models.Body{Mode: models.BodyModeNone},
	}

	for _, h := range req.Header {
		spec.Headers = append(spec.Headers, models.Header{
			Key:     h.Key,
			Value:   h.Value,
			Enabled: !h.Disabled,
		})
	}

	if req.Body != nil {
		switch req.Body.Mode {
		case "raw":
			spec.Body = models.Body{Mode: models.BodyModeRaw, Raw: req.Body.Raw}
		case "urlencoded":
			spec.Body = models.Body{Mode: models.BodyModeURLEncoded, Form: importForm(req.Body.URLEncoded)}
		case "formdata":
			spec.Body = models.Body{Mode: models.BodyModeFormData, Form: importForm(req.Body.FormData)}
		case "", "none":
		default:
			return nil, fmt.Errorf("unsupported body mode: %s", req.Body.Mode)
		}
	}

	return spec, nil
}

func importForm(params []FormParam) []models.FormField {
	fields := make([]models.FormField, 0, len(params))
	for _, p := range params {
		fields = append(fields, models.FormField{Key: p.Key, Value: p.Value, Enabled: !p.Disabled})
	}
	return fields
}

// extractURL normalizes the string-or-object URL shapes Postman emits.
func extractURL(urlData any) (string, error) {
	switch v := urlData.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]any:
		if raw, ok := v["raw"].(string); ok {
			return raw, nil
		}
		return "", fmt.Errorf("URL object missing 'raw' field")
	default:
		return "", fmt.Errorf("invalid URL type %T", urlData)
	}
}

func importVariables(vars []Variable) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		if !v.Disabled {
			out[v.Key] = v.Value
		}
	}
	return out
}

func importAuth(a *Auth) *models.Auth {
	if a == nil {
		return nil
	}
	out := &models.Auth{Type: a.Type, Params: map[string]string{}}
	for _, group := range [][]AuthParam{a.Bearer, a.Basic, a.APIKey} {
		for _, p := range group {
			out.Params[p.Key] = p.Value
		}
	}
	return out
}

func importEvents(events []Event) (preRequest, test string) {
	for _, e := range events {
		source := strings.Join(e.Script.Exec, "\n")
		switch e.Listen {
		case "prerequest":
			preRequest = source
		case "test":
			test = source
		}
	}
	return preRequest, test
}

// Export maps a collection back onto the Postman v2.1 document shape. It is
// the structural inverse of Import: method, URL template, headers and body
// content survive a round trip unchanged.
func Export(c *models.Collection) (*Document, error) {
	doc := &Document{
		Info: Info{
			PostmanID:   c.ID,
			Name:        c.Name,
			Description: c.Description,
			Schema:      SchemaV21,
		},
		Variable: exportVariables(c.Variables),
		Auth:     exportAuth(c.Auth),
	}

	children := make(map[string][]models.Item)
	for _, item := range c.Items {
		children[item.ParentID] = append(children[item.ParentID], item)
	}
	// Arena slice order and sibling ordinals diverge after moves; the document
	// follows the ordinals, same as the tree view.
	for _, siblings := range children {
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
	}

	doc.Item = exportItems(children, "")
	return doc, nil
}

func exportItems(children map[string][]models.Item, parentID string) []Item {
	siblings := children[parentID]
	out := make([]Item, 0, len(siblings))
	for _, item := range siblings {
		pi := Item{
			Name:        item.Name,
			Description: item.Description,
			Event:       exportEvents(item.PreRequestScript, item.TestScript),
		}
		if item.Type == models.ItemTypeFolder {
			pi.Item = exportItems(children, item.ID)
		} else if item.Request != nil {
			pi.Request = exportRequest(item.Request)
		}
		out = append(out, pi)
	}
	return out
}

func exportRequest(spec *models.RequestSpec) *Request {
	req := &Request{
		Method: spec.Method,
		URL:    spec.URL,
		Auth:   exportAuth(spec.Auth),
	}
	for _, h := range spec.Headers {
		req.Header = append(req.Header, Header{Key: h.Key, Value: h.Value, Disabled: !h.Enabled})
	}
	switch spec.Body.Mode {
	case models.BodyModeRaw:
		req.Body = &Body{Mode: "raw", Raw: spec.Body.Raw}
	case models.BodyModeURLEncoded:
		req.Body = &Body{Mode: "urlencoded", URLEncoded: exportForm(spec.Body.Form)}
	case models.BodyModeFormData:
		req.Body = &Body{Mode: "formdata", FormData: exportForm(spec.Body.Form)}
	}
	return req
}

func exportForm(fields []models.FormField) []FormParam {
	params := make([]FormParam, 0, len(fields))
	for _, f := range fields {
		params = append(params, FormParam{Key: f.Key, Value: f.Value, Type: "text", Disabled: !f.Enabled})
	}
	return params
}

func exportVariables(vars map[string]string) []Variable {
	if len(vars) == 0 {
		return nil
	}
	out := make([]Variable, 0, len(vars))
	for k, v := range vars {
		out = append(out, Variable{Key: k, Value: v, Type: "string"})
	}
	return out
}

func exportAuth(a *models.Auth) *Auth {
	if a == nil {
		return nil
	}
	out := &Auth{Type: a.Type}
	params := make([]AuthParam, 0, len(a.Params))
	for k, v := range a.Params {
		params = append(params, AuthParam{Key: k, Value: v, Type: "string"})
	}
	switch a.Type {
	case "bearer":
		out.Bearer = params
	case "basic":
		out.Basic = params
	case "apikey":
		out.APIKey = params
	}
	return out
}

func exportEvents(preRequest, test string) []Event {
	var events []Event
	if preRequest != "" {
		events = append(events, Event{Listen: "prerequest", Script: Script{Exec: strings.Split(preRequest, "\n")}})
	}
	if test != "" {
		events = append(events, Event{Listen: "test", Script: Script{Exec: strings.Split(test, "\n")}})
	}
	return events
}
