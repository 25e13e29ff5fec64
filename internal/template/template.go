// Package template performs placeholder substitution for outreach messages.
// It is pure string work with no storage or UI dependencies.
package template

import (
	"strings"

	"pipeterm/internal/storage"
)

// Placeholder tokens recognized in template subjects and bodies.
const (
	TokenContactName = "{{contact_name}}"
	TokenCompanyName = "{{company_name}}"
	TokenPosition    = "{{position}}"
	TokenEmail       = "{{email}}"
)

// tokenOrder fixes the replacement sequence so identical inputs always yield
// identical output, even when an attribute value itself contains a token.
var tokenOrder = []string{TokenContactName, TokenCompanyName, TokenPosition, TokenEmail}

// resolvers maps each known token to the contact attribute that replaces it.
// Every known token always resolves; an absent attribute resolves to the
// empty string, and unknown {{...}} tokens pass through untouched.
var resolvers = map[string]func(storage.Contact) string{
	TokenContactName: func(c storage.Contact) string { return c.Name },
	TokenCompanyName: func(c storage.Contact) string { return c.Company },
	TokenPosition:    func(c storage.Contact) string { return c.Position },
	TokenEmail:       func(c storage.Contact) string { return c.Email },
}

// Render replaces every occurrence of each recognized placeholder in pattern
// with the corresponding attribute of the contact.
func Render(pattern string, contact storage.Contact) string {
	out := pattern
	for _, token := range tokenOrder {
		out = strings.ReplaceAll(out, token, resolvers[token](contact))
	}
	return out
}

// RenderParts applies Render independently to a template's subject and body.
func RenderParts(t storage.EmailTemplate, contact storage.Contact) (subject, body string) {
	return Render(t.Subject, contact), Render(t.Body, contact)
}
