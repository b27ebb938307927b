package services

import (
	"context"
	"strings"
)

// GuestNamePlaceholder is the token organisers embed in templates; it is
// replaced with the guest's name when queue rows are rendered.
const GuestNamePlaceholder = "{guest_name}"

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// RenderTemplate substitutes the guest-name placeholder into a template.
func RenderTemplate(template, guestName string) string {
	return strings.ReplaceAll(template, GuestNamePlaceholder, guestName)
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
