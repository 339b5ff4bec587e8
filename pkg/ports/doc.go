/*
Package ports defines the driven ports (interfaces) of the verb gate.

These interfaces decouple the governed core from the collaborators it wraps: the
natural-language matcher, the DSL generator, the macro engine, the pending-choice
storage, the trace sink and the execution stager.

# Key Interfaces

  - Matcher, Generator, MacroEngine: External collaborators, always treated as untrusted.
  - ChoiceStore: Persists the PendingChoice of each session.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - TraceSink: Append-only destination for TraceRecords.
  - Stager: Receives DSL that passed governance. Only the orchestrator calls it.
*/
package ports
