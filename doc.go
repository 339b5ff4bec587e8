/*
Package verbgate governs how free-form requests become executable DSL.

Every utterance goes through one pipeline: a matcher proposes verbs, ambiguous
matches are turned into a pending choice for the user, a generator writes DSL for
exactly one verb, and the verbs actually present in that DSL are extracted and
checked against the semantic registry (SemReg) before anything is staged. There is
no path to the stager that skips the check, and there is no way to force a verb
other than answering a choice the gateway itself offered.

# Usage

	cfg, err := verbgate.LoadConfig("verbgate.yaml")
	if err != nil {
		log.Fatal(err)
	}
	gw, err := verbgate.New(cfg, verbgate.WithLogger(slog.Default()))
	if err != nil {
		log.Fatal(err)
	}
	defer gw.Close()

	out, err := gw.Resolve(ctx, "session-123", "send the weekly report")
	switch o := out.(type) {
	case domain.ClarifyVerb:
		out, err = gw.Reply(ctx, "session-123", 0, o.ChoiceID)
	case domain.NoAllowedVerbs:
		log.Printf("denied: %v", o.Denied)
	}

# Adapters

The same gate is served over HTTP (pkg/adapters/http), MCP (pkg/adapters/mcp) and
the verbgate CLI. Pending choices live in memory or in Redis (pkg/adapters/redis),
which also provides a distributed session lock, a trace sink and a staging queue.
*/
package verbgate
