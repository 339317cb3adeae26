package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const tokenSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	room_id    TEXT PRIMARY KEY,
	player_id  TEXT NOT NULL,
	token      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// TokenStore persists the per-room session credential across runs. The
// token is the only state that survives a restart; room state never does.
type TokenStore struct {
	db *sqlx.DB
}

func OpenTokenStore(path string) (*TokenStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	if _, err := db.Exec(tokenSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init token store: %w", err)
	}
	return &TokenStore{db: db}, nil
}

func (ts *TokenStore) Close() error { return ts.db.Close() }

type storedSession struct {
	RoomID    string `db:"room_id"`
	PlayerID  string `db:"player_id"`
	Token     string `db:"token"`
	UpdatedAt int64  `db:"updated_at"`
}

// Lookup returns the stored credentials for a room, if any.
func (ts *TokenStore) Lookup(roomID string) (Credentials, bool, error) {
	var row storedSession
	err := ts.db.Get(&row, `SELECT room_id, player_id, token, updated_at FROM sessions WHERE room_id = ?`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, fmt.Errorf("lookup session: %w", err)
	}
	return Credentials{PlayerID: row.PlayerID, Token: row.Token}, true, nil
}

func (ts *TokenStore) Save(roomID string, creds Credentials) error {
	_, err := ts.db.Exec(`
		INSERT INTO sessions (room_id, player_id, token, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET player_id = excluded.player_id,
			token = excluded.token, updated_at = excluded.updated_at`,
		roomID, creds.PlayerID, creds.Token, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete drops a room's credential, e.g. after the server rejects it.
func (ts *TokenStore) Delete(roomID string) error {
	if _, err := ts.db.Exec(`DELETE FROM sessions WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
