package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/verbgate/pkg/dsl"
)

// ErrUnknownMacro is returned by Expand for a name the catalog does not define.
var ErrUnknownMacro = errors.New("macro not in catalog")

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Macros recognises "/name" invocations and trigger phrases.
type Macros struct {
	catalog *Catalog
}

// NewMacros creates a macro engine over c.
func NewMacros(c *Catalog) *Macros {
	return &Macros{catalog: c}
}

// Lookup implements ports.MacroEngine.
func (m *Macros) Lookup(utterance string) (string, bool) {
	u := strings.TrimSpace(utterance)
	if name, ok := strings.CutPrefix(u, "/"); ok {
		name, _, _ = strings.Cut(name, " ")
		if _, found := m.find(name); found {
			return name, true
		}
		return "", false
	}

	lower := strings.ToLower(u)
	for _, mac := range m.catalog.Macros {
		for _, t := range mac.Triggers {
			if t != "" && strings.EqualFold(lower, strings.TrimSpace(t)) {
				return mac.Name, true
			}
		}
	}
	return "", false
}

// Expand implements ports.MacroEngine. Placeholders are filled from scope and
// rendered as DSL literals; a missing key is an error.
func (m *Macros) Expand(ctx context.Context, name, utterance string, scope map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mac, ok := m.find(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownMacro, name)
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(mac.Body, func(s string) string {
		key := placeholder.FindStringSubmatch(s)[1]
		val, ok := scope[key]
		if !ok {
			missing = append(missing, key)
			return s
		}
		return dsl.Literal(val)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("macro %s: missing scope values %v", name, missing)
	}
	return out, nil
}

func (m *Macros) find(name string) (Macro, bool) {
	for _, mac := range m.catalog.Macros {
		if mac.Name == name {
			return mac, true
		}
	}
	return Macro{}, false
}
