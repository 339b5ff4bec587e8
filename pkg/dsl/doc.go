/*
Package dsl parses, inspects and builds the verb DSL.

Programs are sequences of s-expression calls with keyword arguments:

	;; weekly digest
	(report.send.v1 :report @weekly :to ["ops@example.com"])
	(email.notify.v1 :subject "Digest ready" :body (report.summary.v1 :for @weekly))

The package does not evaluate DSL. It provides the authoritative parser (Parse), a
governance-grade verb extractor (Extract) and a fluent builder used by generators (Call).

Extract never under-reports: when the parser rejects the input it falls back to a
structural scan and marks anything it cannot classify as an unknown verb, so the
policy engine denies rather than silently omits.
*/
package dsl
