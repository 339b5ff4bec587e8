// Package redis provides Redis-backed pending-choice storage, distributed session
// locks and an append-only trace sink for multi-replica deployments.
package redis
