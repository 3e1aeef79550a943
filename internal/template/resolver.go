// Package template substitutes {{name}} tokens in request fields using a
// flat variable map. Resolution is pure: inputs are never mutated, unresolved
// tokens are left verbatim so partial environments stay usable.
package template

import (
	"net/url"
	"regexp"

	"collection-runner/internal/models"
)

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_.-]*)\}\}`)

// ResolveString substitutes every known {{token}} in s. Unknown tokens are
// kept as-is.
func ResolveString(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-2]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// Resolve applies ResolveString recursively through strings, maps and slices,
// returning a new same-shaped value. Non-string leaves pass through untouched.
func Resolve(value any, vars map[string]string) any {
	switch v := value.(type) {
	case string:
		return ResolveString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = Resolve(val, vars)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, val := range v {
			out[key] = ResolveString(val, vars)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Resolve(val, vars)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, val := range v {
			out[i] = ResolveString(val, vars)
		}
		return out
	default:
		return value
	}
}

// ResolveRequest produces the dispatchable snapshot of a request: URL, enabled
// headers, body content and auth parameters with all known tokens substituted.
// Disabled headers and form fields are dropped here, not at dispatch time.
func ResolveRequest(spec *models.RequestSpec, vars map[string]string) models.ResolvedRequest {
	resolved := models.ResolvedRequest{
		Method:    spec.Method,
		URL:       ResolveString(spec.URL, vars),
		TimeoutMs: spec.TimeoutMs,
	}

	if len(spec.Headers) > 0 {
		headers := make(map[string]string, len(spec.Headers))
		for _, h := range spec.Headers {
			if h.Enabled {
				headers[ResolveString(h.Key, vars)] = ResolveString(h.Value, vars)
			}
		}
		resolved.Headers = headers
	}

	resolved.Body = resolveBody(spec.Body, vars)

	if spec.Auth != nil {
		auth := &models.Auth{Type: spec.Auth.Type, Params: make(map[string]string, len(spec.Auth.Params))}
		for k, v := range spec.Auth.Params {
			auth.Params[k] = ResolveString(v, vars)
		}
		resolved.Auth = auth
	}

	return resolved
}

func resolveBody(body models.Body, vars map[string]string) string {
	switch body.Mode {
	case models.BodyModeRaw:
		return ResolveString(body.Raw, vars)
	case models.BodyModeURLEncoded:
		values := url.Values{}
		for _, f := range body.Form {
			if f.Enabled {
				values.Set(ResolveString(f.Key, vars), ResolveString(f.Value, vars))
			}
		}
		return values.Encode()
	case models.BodyModeFormData:
		// Multipart encoding is the transport's concern; fields are resolved
		// into a plain key=value wire shape.
		return encodeForm(body.Form, vars)
	default:
		return ""
	}
}

func encodeForm(fields []models.FormField, vars map[string]string) string {
	out := ""
	for _, f := range fields {
		if !f.Enabled {
			continue
		}
		if out != "" {
			out += "&"
		}
		out += ResolveString(f.Key, vars) + "=" + ResolveString(f.Value, vars)
	}
	return out
}
