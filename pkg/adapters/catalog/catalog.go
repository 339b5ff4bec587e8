// Package catalog provides reference implementations of the external collaborators
// (matcher, generator, macro engine) driven by a single YAML verb catalog.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/verbgate/pkg/domain"
)

// DefaultMargin is the score gap under which the top candidates count as comparable.
const DefaultMargin = 0.15

// Verb describes one verb the matcher can propose and the generator can render.
type Verb struct {
	FQN      domain.FQN     `yaml:"fqn" json:"fqn"`
	Label    string         `yaml:"label" json:"label"`
	Keywords []string       `yaml:"keywords" json:"keywords"`
	Args     map[string]any `yaml:"args" json:"args"`
	// ScopeArgs are copied from the generation scope into the call, when present.
	ScopeArgs []string `yaml:"scope_args" json:"scope_args"`
}

// Macro is a named DSL block. Body may reference scope values as {{key}}.
type Macro struct {
	Name     string   `yaml:"name" json:"name"`
	Triggers []string `yaml:"triggers" json:"triggers"`
	Body     string   `yaml:"body" json:"body"`
}

// Catalog is the file format.
type Catalog struct {
	// Margin is the matcher's ambiguity threshold: candidates scoring within
	// Margin of the best one are offered as a choice.
	Margin float64 `yaml:"ambiguity_margin" json:"ambiguity_margin"`
	// MinScore drops weak candidates entirely.
	MinScore float64 `yaml:"min_score" json:"min_score"`
	Verbs    []Verb  `yaml:"verbs" json:"verbs"`
	Macros   []Macro `yaml:"macros" json:"macros"`
}

// Load reads a catalog file (YAML, or JSON by extension).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &c)
	} else {
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks names and fills defaults.
func (c *Catalog) Validate() error {
	if c.Margin <= 0 {
		c.Margin = DefaultMargin
	}
	seen := make(map[domain.FQN]struct{}, len(c.Verbs))
	for _, v := range c.Verbs {
		if !v.FQN.Valid() {
			return fmt.Errorf("verb %q is not a valid FQN", v.FQN)
		}
		if _, dup := seen[v.FQN]; dup {
			return fmt.Errorf("duplicate verb %q", v.FQN)
		}
		seen[v.FQN] = struct{}{}
	}
	names := make(map[string]struct{}, len(c.Macros))
	for _, m := range c.Macros {
		if m.Name == "" || strings.ContainsAny(m.Name, " \t\n") {
			return fmt.Errorf("macro name %q must be a single word", m.Name)
		}
		if _, dup := names[m.Name]; dup {
			return fmt.Errorf("duplicate macro %q", m.Name)
		}
		names[m.Name] = struct{}{}
	}
	return nil
}

// Verb returns the catalog entry for fqn.
func (c *Catalog) Verb(fqn domain.FQN) (Verb, bool) {
	for _, v := range c.Verbs {
		if v.FQN == fqn {
			return v, true
		}
	}
	return Verb{}, false
}
