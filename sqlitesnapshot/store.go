// Package sqlitesnapshot mirrors chathistory's recent-conversation
// snapshot into a read-only SQLite side table, so a host application can
// run SQL queries (search, pagination) over plaintext it has already
// decrypted without re-touching the encrypted conversation logs.
//
// This table is strictly derived state: chathistory's append-only logs
// remain the source of truth, and rebuilding this table is always safe.
package sqlitesnapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mi-e2ee/chathistory"
)

// Store wraps a SQLite database holding the derived snapshot table.
type Store struct{ db *sql.DB }

// Open opens (or creates) the SQLite database at dsn and ensures schema
// and PRAGMAs matching the rest of this module's durability posture.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	schema := `
CREATE TABLE IF NOT EXISTS snapshot_messages (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  conv_id      TEXT    NOT NULL,
  is_group     INTEGER NOT NULL,
  outgoing     INTEGER NOT NULL,
  is_system    INTEGER NOT NULL,
  status       INTEGER NOT NULL,
  timestamp    INTEGER NOT NULL,
  sender       TEXT    NOT NULL,
  system_text  TEXT    NOT NULL,
  envelope_len INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshot_messages_conv_ts ON snapshot_messages(conv_id, timestamp);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Replace atomically truncates the derived table and repopulates it from
// msgs, the exact output of chathistory.Store.ExportRecentSnapshot. The
// envelope is never stored, only its length. This table exists for
// plaintext metadata queries, not as a second copy of message content.
func (s *Store) Replace(msgs []chathistory.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_messages`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO snapshot_messages
  (conv_id, is_group, outgoing, is_system, status, timestamp, sender, system_text, envelope_len)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx,
			m.ConvID, boolInt(m.IsGroup), boolInt(m.Outgoing), boolInt(m.IsSystem),
			int(m.Status), m.TimestampSec, m.Sender, m.SystemText, len(m.Envelope)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountByConversation returns the number of derived rows per conv_id,
// the simplest query this side table exists to make cheap.
func (s *Store) CountByConversation(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conv_id, COUNT(*) FROM snapshot_messages GROUP BY conv_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var convID string
		var n int
		if err := rows.Scan(&convID, &n); err != nil {
			return nil, err
		}
		out[convID] = n
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
