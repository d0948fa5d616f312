// internal/service/template_service.go
package service

import (
	"strings"
)

// RenderTemplate substitutes {placeholder} tokens with candidate fields.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}
