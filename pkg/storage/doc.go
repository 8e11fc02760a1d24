// Package storage provides the persistent per-origin key-value store the
// session layer mirrors its state into, so sibling instances ("tabs") can
// observe each other's writes.
//
// Three backends implement the Store interface:
//
//   - MemoryStore – process-local, for single-instance use and tests.
//   - FileStore – one JSON file with atomic rename writes, shared by
//     processes on the same machine.
//   - RedisStore – go-redis backed, shared across hosts.
//
// All backends write whole values atomically (no partial-field patches) and
// enforce an optional byte-size ceiling, surfacing ErrQuotaExceeded so
// callers can degrade gracefully instead of failing hard.
package storage
