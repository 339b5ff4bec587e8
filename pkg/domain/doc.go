/*
Package domain contains the core domain models of the verb gate.

It defines the entities that flow between the intent pipeline and the orchestrator:
verbs and their candidates, the pending disambiguation offered to a session, the tagged
pipeline outcome, and the trace record written for every governed decision. This package
is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - FQN: The fully-qualified name of a verb (e.g. "report.send.v1").
  - PendingChoice: An immutable disambiguation offer awaiting the user's reply.
  - Outcome: The sealed result of one pipeline invocation (Direct, ClarifyVerb,
    MacroExpanded, NoAllowedVerbs, Failure).
  - TraceRecord: The append-only audit entry for a governed decision.
*/
package domain
