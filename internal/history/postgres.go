package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id       BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	message  TEXT NOT NULL
)`

// PostgresStore persists chat messages in a PostgreSQL table. The serial
// primary key preserves append order for history replay.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool, verifies it with a ping, and ensures
// the messages table exists.
func Connect(ctx context.Context, cfg Config) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, messagesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure messages table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Append stores one broadcast message at the end of the log.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (username, message) VALUES ($1, $2)`,
		rec.Username, rec.Message,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListAll returns every stored message in append order.
func (s *PostgresStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, message FROM messages ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Username, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read message rows: %w", err)
	}

	return records, nil
}

// Ping verifies the database connection is healthy.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
