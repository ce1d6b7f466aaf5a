package browser

import (
	"fmt"
	"strings"
)

// ARIA roles used by the verification scenarios.
const (
	RoleHeading = "heading"
	RoleLink    = "link"
	RoleButton  = "button"
)

// Locator is a re-evaluatable element query by accessible role and name, or by
// accessible label. It holds no element handle; the page resolves it on every use.
type Locator struct {
	role  string
	name  string
	label string
	exact bool
}

// ByRole matches elements with the given ARIA role. An empty name matches any
// accessible name.
func ByRole(role, name string) Locator {
	return Locator{role: role, name: name}
}

// ByLabel matches elements by their accessible label (aria-label, <label>, title).
func ByLabel(label string) Locator {
	return Locator{label: label}
}

// Exact returns a copy that matches the name or label case-sensitively and
// as a whole string.
func (l Locator) Exact() Locator {
	l.exact = true
	return l
}

func (l Locator) Role() string  { return l.role }
func (l Locator) Name() string  { return l.name }
func (l Locator) Label() string { return l.label }
func (l Locator) IsExact() bool { return l.exact }

// IsLabel reports whether the locator queries by label rather than by role.
func (l Locator) IsLabel() bool { return l.role == "" }

func (l Locator) String() string {
	var b strings.Builder
	if l.IsLabel() {
		fmt.Fprintf(&b, "label=%q", l.label)
	} else {
		fmt.Fprintf(&b, "role=%s", l.role)
		if l.name != "" {
			fmt.Fprintf(&b, " name=%q", l.name)
		}
	}
	if l.exact {
		b.WriteString(" exact")
	}
	return b.String()
}
