// Package template substitutes {{field}} placeholders with record values.
package template

import (
	"regexp"
	"strings"

	"github.com/dukex/flowbase/pkg/models"
)

// Keys may contain inner spaces ("First Name"); surrounding spaces are trimmed.
var placeholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

func placeholderKey(match []string) (string, bool) {
	key := strings.TrimSpace(match[1])

	return key, key != ""
}

// Render replaces every {{key}} (or {{ key }}) with the text of record[key].
// Missing keys render as the empty string. Substitution is a single pass: a
// value that itself contains {{...}} is copied verbatim and never expanded.
func Render(tmpl string, record models.Record) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		key, ok := placeholderKey(placeholder.FindStringSubmatch(match))
		if !ok {
			return match
		}

		return record.Get(key).Text()
	})
}

// RenderValue renders string values and returns every other kind unchanged.
func RenderValue(value models.Value, record models.Record) models.Value {
	if value.Kind() != models.KindString {
		return value
	}

	return models.String(Render(value.Text(), record))
}

// RenderFields renders every value of a field map into a new map.
func RenderFields(fields map[string]models.Value, record models.Record) models.Record {
	rendered := make(models.Record, len(fields))
	for key, value := range fields {
		rendered[key] = RenderValue(value, record)
	}

	return rendered
}

// RenderMap renders the values of a string map, e.g. HTTP headers.
func RenderMap(values map[string]string, record models.Record) map[string]string {
	if values == nil {
		return nil
	}

	rendered := make(map[string]string, len(values))
	for key, value := range values {
		rendered[key] = Render(value, record)
	}

	return rendered
}

// Placeholders lists the keys referenced by tmpl in order of appearance,
// without duplicates.
func Placeholders(tmpl string) []string {
	matches := placeholder.FindAllStringSubmatch(tmpl, -1)
	keys := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, match := range matches {
		key, ok := placeholderKey(match)
		if !ok {
			continue
		}

		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	return keys
}
