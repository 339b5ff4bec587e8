/*
Package observability turns orchestrator lifecycle hooks into Prometheus metrics
and structured log lines.

	m := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.Chain(m.Hooks(), observability.LogHooks(logger))
	gate := orchestrator.New(p, sessions, recorder, stager, orchestrator.WithHooks(hooks))
*/
package observability
