package utils

import (
	"fmt"
	"net/url"
	"strings"
)

func ParseSecureURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return nil, fmt.Errorf("insecure URL rejected: %s", raw)
	}
	return parsed, nil
}

// ExpandTemplate replaces {name} placeholders in a provider URL template.
// Unknown placeholders are left untouched so misconfigurations stay visible.
func ExpandTemplate(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
