/*
Package session guards the pending choice of each session.

The Manager serialises every read-modify-write on a session behind a per-session lock
(optionally backed by a distributed lock for multi-replica deployments) while different
sessions proceed in parallel. Pending choices older than the configured TTL are treated
as absent and removed on access.
*/
package session
