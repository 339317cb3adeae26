// Package session owns the join handshake, the persisted room credential,
// and the single persistent connection to the game server.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Join failures. Surfaced to the caller, never retried automatically.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrJoinRejected = errors.New("join rejected")
)

// Credentials bind a connection to one player within one room, resumable
// across reconnects.
type Credentials struct {
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

type Manager struct {
	logger    *zap.Logger
	http      *http.Client
	serverURL string
	socketURL string
	tokens    *TokenStore

	conn *Conn
}

func NewManager(logger *zap.Logger, serverURL, socketURL string, tokens *TokenStore) *Manager {
	return &Manager{
		logger:    logger,
		http:      &http.Client{},
		serverURL: serverURL,
		socketURL: socketURL,
		tokens:    tokens,
	}
}

type joinRequest struct {
	ProfileID string `json:"profile_id"`
}

type joinErrorBody struct {
	Detail string `json:"detail"`
}

// AcquireSession returns credentials for the room, reusing a stored token
// when one exists (resume) and performing the join call otherwise. Join
// failures come back as ErrRoom*/ErrJoinRejected wrapping the server detail.
func (m *Manager) AcquireSession(ctx context.Context, roomID, profileID string) (Credentials, error) {
	if creds, ok, err := m.tokens.Lookup(roomID); err != nil {
		return Credentials{}, err
	} else if ok {
		m.logger.Debug("resuming stored session", zap.String("room_id", roomID))
		return creds, nil
	}

	body, err := json.Marshal(joinRequest{ProfileID: profileID})
	if err != nil {
		return Credentials{}, fmt.Errorf("encode join request: %w", err)
	}

	joinURL := fmt.Sprintf("%s/games/%s/join", m.serverURL, url.PathEscape(roomID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, fmt.Errorf("build join request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrJoinRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, joinError(resp)
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("decode join response: %w", err)
	}
	if err := m.tokens.Save(roomID, creds); err != nil {
		return Credentials{}, err
	}
	m.logger.Info("joined room", zap.String("room_id", roomID), zap.String("player_id", creds.PlayerID))
	return creds, nil
}

func joinError(resp *http.Response) error {
	detail := ""
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		var body joinErrorBody
		if json.Unmarshal(raw, &body) == nil {
			detail = body.Detail
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRoomNotFound
	case detail == "Room is full":
		return ErrRoomFull
	case detail != "":
		return fmt.Errorf("%w: %s", ErrJoinRejected, detail)
	default:
		return fmt.Errorf("%w: status %d", ErrJoinRejected, resp.StatusCode)
	}
}

// Connect opens the persistent connection for the room. At most one live
// connection per manager: any prior one is closed first, so a remount is
// safe. The server re-sends a full snapshot on every fresh connection.
func (m *Manager) Connect(ctx context.Context, roomID string, creds Credentials) (*Conn, error) {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	// The token is opaque; escape it so reserved characters survive the
	// query string.
	dialURL := fmt.Sprintf("%s/ws/%s/%s?token=%s", m.socketURL,
		url.PathEscape(roomID), url.PathEscape(creds.PlayerID), url.QueryEscape(creds.Token))
	conn, err := dial(ctx, m.logger, dialURL)
	if err != nil {
		return nil, err
	}
	m.conn = conn
	return conn, nil
}

// ForgetSession drops the stored credential for a room, for when the server
// no longer honors it.
func (m *Manager) ForgetSession(roomID string) error {
	return m.tokens.Delete(roomID)
}

// Close tears down the live connection, if any.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}
