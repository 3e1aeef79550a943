// Package validator checks request specs and execution URLs before anything
// is stored or dispatched.
package validator

import (
	"fmt"
	"net/url"
	"strings"

	"collection-runner/internal/models"
)

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true,
}

// ValidateMethod accepts the HTTP methods the engine dispatches.
func ValidateMethod(method string) error {
	if !allowedMethods[strings.ToUpper(method)] {
		return fmt.Errorf("unsupported HTTP method: %s", method)
	}
	return nil
}

// ValidateRequestSpec checks a stored request's method, URL and header count.
// Templated URLs ({{base_url}}/...) skip scheme validation since the scheme
// arrives with the variable value at run time.
func ValidateRequestSpec(spec *models.RequestSpec, maxHeaderCount int) error {
	if spec == nil {
		return fmt.Errorf("request items must carry a request spec")
	}
	if err := ValidateMethod(spec.Method); err != nil {
		return err
	}
	if len(spec.Headers) > maxHeaderCount {
		return fmt.Errorf("request has %d headers, exceeding limit of %d", len(spec.Headers), maxHeaderCount)
	}
	if spec.URL != "" {
		if err := ValidateURL(spec.URL); err != nil {
			return err
		}
	}
	switch spec.Body.Mode {
	case "", models.BodyModeNone, models.BodyModeRaw, models.BodyModeURLEncoded, models.BodyModeFormData:
	default:
		return fmt.Errorf("unsupported body mode: %s", spec.Body.Mode)
	}
	return nil
}

// ValidateURL accepts http/https URLs and anything still carrying template
// tokens.
func ValidateURL(urlStr string) error {
	if strings.Contains(urlStr, "{{") && strings.Contains(urlStr, "}}") {
		return nil
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", parsed.Scheme)
	}
	return nil
}
