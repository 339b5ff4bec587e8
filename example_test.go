package verbgate_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/verbgate"
	"github.com/aretw0/verbgate/pkg/adapters/catalog"
	"github.com/aretw0/verbgate/pkg/domain"
)

// ExampleNew wires a gateway from an in-memory catalog instead of a file.
// Only report verbs are allowed, so the purge request is refused before any DSL is generated.
func ExampleNew() {
	c := &catalog.Catalog{Verbs: []catalog.Verb{
		{FQN: "report.send.v1", Label: "Send report", Keywords: []string{"send", "report"}},
		{FQN: "admin.purge.v1", Label: "Purge", Keywords: []string{"purge"}},
	}}
	if err := c.Validate(); err != nil {
		log.Fatal(err)
	}

	cfg := verbgate.DefaultConfig()
	cfg.Policy.Allow = []string{"report.*"}
	gw, err := verbgate.New(cfg,
		verbgate.WithMatcher(catalog.NewMatcher(c)),
		verbgate.WithGenerator(catalog.NewGenerator(c)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer gw.Close()

	ctx := context.Background()
	for _, utterance := range []string{"send the report", "purge"} {
		out, err := gw.Resolve(ctx, "example", utterance)
		if err != nil {
			log.Fatal(err)
		}
		v := domain.Describe(out)
		fmt.Println(v.Kind, v.DSL, v.Denied)
	}

	// Output:
	// direct (report.send.v1) []
	// no_allowed_verbs  [admin.purge.v1]
}
