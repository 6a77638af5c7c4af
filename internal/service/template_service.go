// internal/service/template_service.go
package service

import (
	"sort"
	"strings"

	"github.com/unclebandit/crm-campaign-service/internal/model"
)

const (
	NamePlaceholder        = "{NAME}"
	FallbackName           = "Valued Customer"
	DefaultMessageTemplate = "Hi {NAME}, we have a special offer just for you!"
)

// RenderTemplate replaces every {key} in template with data[key] in a single
// pass; substituted values are never scanned for placeholders again.
func RenderTemplate(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RenderMessage personalizes a campaign message for one customer. An
// unnamed customer is addressed as FallbackName.
func RenderMessage(template string, c model.Customer) string {
	name := c.DisplayName()
	if name == "" {
		name = FallbackName
	}
	return RenderTemplate(template, map[string]string{
		"NAME":       name,
		"FIRST_NAME": firstOr(c.FirstName, name),
	})
}

func firstOr(first, fallback string) string {
	if s := strings.TrimSpace(first); s != "" {
		return s
	}
	return fallback
}
