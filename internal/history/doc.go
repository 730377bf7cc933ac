// Package history provides the durable message log for the chat service.
//
// Broadcast messages are appended to an ordered store and replayed to every
// newly joined participant. Two implementations are provided:
//   - PostgresStore: production storage backed by a pgx connection pool
//   - MemoryStore: in-process storage for tests and storeless runs
package history
