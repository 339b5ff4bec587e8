package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/dsl"
)

// ErrUnknownVerb is returned when the generator is asked for a verb outside the catalog.
var ErrUnknownVerb = errors.New("verb not in catalog")

// Generator renders a single call per verb from the catalog's argument template.
type Generator struct {
	catalog *Catalog
}

// NewGenerator creates a template generator over c.
func NewGenerator(c *Catalog) *Generator {
	return &Generator{catalog: c}
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, verb domain.FQN, scope map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := g.catalog.Verb(verb)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownVerb, verb)
	}

	args := make(map[string]any, len(v.Args)+len(v.ScopeArgs))
	for k, val := range v.Args {
		args[k] = val
	}
	for _, k := range v.ScopeArgs {
		if val, ok := scope[k]; ok {
			args[k] = val
		}
	}

	b := dsl.New()
	b.Add(verb).Args(args)
	return b.Build()
}
