package checkpoint

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is a Store backed by SQLite, for hosts that hibernate across
// process restarts.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (or creates) the checkpoint database at path and runs
// schema migrations.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	// WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		room_id TEXT NOT NULL,
		conn_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		vote TEXT,
		PRIMARY KEY (room_id, conn_id)
	);

	CREATE TABLE IF NOT EXISTS rooms (
		room_id TEXT PRIMARY KEY,
		revealed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_room_id ON sessions(room_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) PutSession(roomID, connID string, rec SessionRecord) error {
	query := `
		INSERT INTO sessions (room_id, conn_id, user_id, name, vote)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (room_id, conn_id)
		DO UPDATE SET user_id = excluded.user_id, name = excluded.name, vote = excluded.vote
	`

	var vote sql.NullString
	if rec.Vote != nil {
		vote = sql.NullString{String: *rec.Vote, Valid: true}
	}

	if _, err := s.db.Exec(query, roomID, connID, rec.UserID, rec.Name, vote); err != nil {
		return fmt.Errorf("failed to checkpoint session: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteSession(roomID, connID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE room_id = ? AND conn_id = ?`, roomID, connID); err != nil {
		return fmt.Errorf("failed to delete session checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) SessionsFor(roomID string) (map[string]SessionRecord, error) {
	rows, err := s.db.Query(`SELECT conn_id, user_id, name, vote FROM sessions WHERE room_id = ?`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session checkpoints: %w", err)
	}
	defer rows.Close()

	records := make(map[string]SessionRecord)
	for rows.Next() {
		var (
			connID string
			rec    SessionRecord
			vote   sql.NullString
		)
		if err := rows.Scan(&connID, &rec.UserID, &rec.Name, &vote); err != nil {
			return nil, fmt.Errorf("failed to scan session checkpoint: %w", err)
		}
		if vote.Valid {
			v := vote.String
			rec.Vote = &v
		}
		records[connID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session checkpoints: %w", err)
	}
	return records, nil
}

func (s *SQLStore) PutRevealed(roomID string, revealed bool) error {
	query := `
		INSERT INTO rooms (room_id, revealed)
		VALUES (?, ?)
		ON CONFLICT (room_id)
		DO UPDATE SET revealed = excluded.revealed
	`
	if _, err := s.db.Exec(query, roomID, revealed); err != nil {
		return fmt.Errorf("failed to checkpoint room state: %w", err)
	}
	return nil
}

func (s *SQLStore) Revealed(roomID string) (bool, error) {
	var revealed bool
	err := s.db.QueryRow(`SELECT revealed FROM rooms WHERE room_id = ?`, roomID).Scan(&revealed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read room checkpoint: %w", err)
	}
	return revealed, nil
}

func (s *SQLStore) DeleteRoom(roomID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("failed to delete session checkpoints: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM rooms WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("failed to delete room checkpoint: %w", err)
	}
	return nil
}
