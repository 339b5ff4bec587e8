// Package semreg implements the Semantic Registry policy engine.
//
// The registry holds the allow-list of verbs that may be generated and staged. It is
// fail-closed: a verb is allowed only when the allow-list names it (or its domain) and
// no deny rule matches it. Malformed names, rule evaluation errors and the extractor's
// unknown-verb sentinel are always denied. A non-empty denied set is terminal for staging
// in both strict and permissive mode.
//
// Policies are swapped atomically; callers pin a Snapshot for the duration of one
// invocation so an update becomes visible to the next invocation, never mid-invocation.
package semreg
