/*
Package orchestrator owns the per-session lifecycle of governed verb resolution.

Resolve and Reply run entirely under the session lock: load the pending choice, run the
pipeline, then apply the outcome. Applying a Direct or MacroExpanded outcome means
rechecking the pinned policy against the live one, recording the trace and only then
staging. A ClarifyVerb replaces the pending choice. Denials and failures are traced and
leave the pending choice as it was.

A reply consumes its pending choice exactly once, before the forced-verb pipeline runs.
Replies with an out-of-range index are rejected without touching the pending choice.
*/
package orchestrator
