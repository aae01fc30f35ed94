package templates

import "regexp"

// placeholder matches {{key}} where key is one or more characters other than '}'.
var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Attributes are the values a recipient contributes to substitution.
// Name and Email are always available and shadow custom fields of the same key.
type Attributes struct {
	Name   string
	Email  string
	Custom map[string]string
}

// Lookup returns the value for key, or "" when the recipient has none.
func (a Attributes) Lookup(key string) string {
	switch key {
	case "name":
		return a.Name
	case "email":
		return a.Email
	}
	return a.Custom[key]
}

// Render replaces every {{key}} in text with the recipient's value for key.
// Substituted values are not scanned again.
func Render(text string, attrs Attributes) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		return attrs.Lookup(m[2 : len(m)-2])
	})
}

// ExtractVariables returns the distinct placeholder keys used in subject and body,
// subject keys first, each in first-seen order.
func ExtractVariables(subject, body string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, text := range []string{subject, body} {
		for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			out = append(out, m[1])
		}
	}
	return out
}
