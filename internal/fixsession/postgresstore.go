package fixsession

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the alternative SequenceStore/MessageStore backend
// selected by configuration (§4.6, §2.2), backed by pgxpool instead of the
// filesystem. Both stores satisfy the same interfaces so Session never
// depends on which one is wired in.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool and ensures the backing
// tables exist.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fix_session_sequences (
			session_id TEXT PRIMARY KEY,
			next_out_seq INTEGER NOT NULL DEFAULT 1,
			next_in_seq INTEGER NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS fix_outbound_messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			raw BYTEA NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
	`)
	return err
}

func (s *PostgresStore) GetNextOutSeq(sessionID string) (int, error) {
	out, _, err := s.loadOrInitSequences(sessionID)
	return out, err
}

func (s *PostgresStore) SetNextOutSeq(sessionID string, n int) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fix_session_sequences (session_id, next_out_seq, next_in_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (session_id) DO UPDATE SET next_out_seq = $2
	`, sessionID, n)
	return err
}

func (s *PostgresStore) GetNextInSeq(sessionID string) (int, error) {
	_, in, err := s.loadOrInitSequences(sessionID)
	return in, err
}

func (s *PostgresStore) SetNextInSeq(sessionID string, n int) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fix_session_sequences (session_id, next_out_seq, next_in_seq)
		VALUES ($1, 1, $2)
		ON CONFLICT (session_id) DO UPDATE SET next_in_seq = $2
	`, sessionID, n)
	return err
}

func (s *PostgresStore) loadOrInitSequences(sessionID string) (out, in int, err error) {
	ctx := context.Background()
	row := s.pool.QueryRow(ctx,
		`SELECT next_out_seq, next_in_seq FROM fix_session_sequences WHERE session_id = $1`, sessionID)
	if err := row.Scan(&out, &in); err != nil {
		_, insertErr := s.pool.Exec(ctx,
			`INSERT INTO fix_session_sequences (session_id) VALUES ($1) ON CONFLICT DO NOTHING`, sessionID)
		if insertErr != nil {
			return 0, 0, insertErr
		}
		return 1, 1, nil
	}
	return out, in, nil
}

func (s *PostgresStore) StoreOutbound(sessionID string, seq int, raw []byte) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fix_outbound_messages (session_id, seq, raw)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, seq) DO UPDATE SET raw = $3
	`, sessionID, seq, raw)
	return err
}

func (s *PostgresStore) LoadOutbound(sessionID string, seq int) ([]byte, bool, error) {
	ctx := context.Background()
	var raw []byte
	row := s.pool.QueryRow(ctx,
		`SELECT raw FROM fix_outbound_messages WHERE session_id = $1 AND seq = $2`, sessionID, seq)
	if err := row.Scan(&raw); err != nil {
		return nil, false, nil
	}
	return raw, true, nil
}
