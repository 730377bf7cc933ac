package history

import "context"

// Record is one persisted broadcast message. Private messages are never
// recorded.
type Record struct {
	Username string
	Message  string
}

// Store is an append-only log of broadcast messages. Implementations must
// return records from ListAll in the exact order they were appended.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ListAll(ctx context.Context) ([]Record, error)
}
