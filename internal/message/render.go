// Package message personalizes message templates per recipient.
package message

import (
	"strings"

	"wabulk/internal/domain"
)

// NamePlaceholder is replaced with the recipient's name.
const NamePlaceholder = "{{Name}}"

// Render substitutes every literal NamePlaceholder in template with the
// recipient's name. Everything else passes through untouched.
func Render(template string, r domain.RecipientRecord) string {
	return strings.ReplaceAll(template, NamePlaceholder, r.Name)
}

// HasPlaceholder reports whether the template personalizes anything.
func HasPlaceholder(template string) bool {
	return strings.Contains(template, NamePlaceholder)
}
