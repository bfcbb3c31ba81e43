package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is one persisted analysis exchange.
type Record struct {
	ID         int64          `json:"id"`
	UserEmail  string         `json:"user_email"`
	Module     string         `json:"module"`
	InputText  string         `json:"input_text"`
	ResultText string         `json:"result_text"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata"`
}

// Store provides DB access for users and their analysis history.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// EnsureSchema creates the users and history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	is_premium BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS history (
	id SERIAL PRIMARY KEY,
	user_email TEXT NOT NULL REFERENCES users(email),
	module TEXT NOT NULL,
	input_text TEXT NOT NULL,
	result_text TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_history_user_email ON history (user_email, timestamp DESC);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: ensure schema: %w", err)
	}
	return nil
}

// EnsureUser creates the user row if it does not exist. The premium flag is
// written only at creation time; later allowlist changes never rewrite it.
func (s *Store) EnsureUser(ctx context.Context, email string, premium bool) error {
	if email == "" {
		return errors.New("history: EnsureUser requires an email")
	}

	const q = `INSERT INTO users (email, is_premium) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, email, premium); err != nil {
		return fmt.Errorf("history: ensure user: %w", err)
	}
	return nil
}

// Append inserts one history row for a completed exchange.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.UserEmail == "" {
		return errors.New("history: Append requires a user email")
	}

	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("history: marshal metadata: %w", err)
	}

	const q = `
INSERT INTO history (user_email, module, input_text, result_text, metadata)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q, rec.UserEmail, rec.Module, rec.InputText, rec.ResultText, metaJSON); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// ListByEmail returns the user's exchanges, most recent first, capped at limit.
func (s *Store) ListByEmail(ctx context.Context, email string, limit int) ([]Record, error) {
	if email == "" {
		return []Record{}, nil
	}

	const q = `
SELECT id, user_email, module, input_text, result_text, timestamp, metadata
FROM history
WHERE user_email = $1
ORDER BY timestamp DESC, id DESC
LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, email, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		var metaJSON []byte
		if err := rows.Scan(&rec.ID, &rec.UserEmail, &rec.Module, &rec.InputText, &rec.ResultText, &rec.Timestamp, &metaJSON); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("history: unmarshal metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
