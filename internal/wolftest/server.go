// Package wolftest runs an in-process stand-in for the game server so
// session and client tests can exercise the real join call and the real
// websocket path without a live backend.
package wolftest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/moonhowl/werewolf-client/internal/protocol"
)

// Server accepts one join call per room and hands accepted websocket
// connections to the test through NextConn.
type Server struct {
	t    *testing.T
	http *httptest.Server

	mu        sync.Mutex
	joinCode  int
	joinBody  string
	lastJoin  map[string]string // roomID -> profileID
	playerIDs map[string]string // roomID -> issued player id

	conns chan *ServerConn
}

func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		t:         t,
		joinCode:  http.StatusOK,
		lastJoin:  make(map[string]string),
		playerIDs: make(map[string]string),
		conns:     make(chan *ServerConn, 4),
	}

	r := chi.NewRouter()
	r.Post("/games/{roomID}/join", s.handleJoin)
	r.Get("/ws/{roomID}/{playerID}", s.handleSocket)

	s.http = httptest.NewServer(r)
	t.Cleanup(s.http.Close)
	return s
}

// URL is the join/session HTTP base.
func (s *Server) URL() string { return s.http.URL }

// SocketURL is the persistent-connection base.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http")
}

// RejectJoins makes subsequent join calls fail with the given status and
// FastAPI-style detail body.
func (s *Server) RejectJoins(code int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinCode = code
	s.joinBody = detail
}

// JoinCount reports how many join calls a room has seen.
func (s *Server) JoinCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lastJoin[roomID]; ok {
		return 1
	}
	return 0
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var req struct {
		ProfileID string `json:"profile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	code, detail := s.joinCode, s.joinBody
	if code == http.StatusOK {
		s.lastJoin[roomID] = req.ProfileID
		s.playerIDs[roomID] = uuid.NewString()
	}
	playerID := s.playerIDs[roomID]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"player_id": playerID,
		"token":     uuid.NewString(),
	})
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	sc := &ServerConn{
		t:        s.t,
		ws:       ws,
		RoomID:   chi.URLParam(r, "roomID"),
		PlayerID: chi.URLParam(r, "playerID"),
		Token:    r.URL.Query().Get("token"),
		intents:  make(chan protocol.Intent, 16),
		done:     make(chan struct{}),
	}
	go sc.readLoop()
	s.conns <- sc
	<-sc.done
}

// NextConn waits for the next accepted connection.
func (s *Server) NextConn() *ServerConn {
	s.t.Helper()
	select {
	case sc := <-s.conns:
		return sc
	case <-time.After(2 * time.Second):
		s.t.Fatalf("timed out waiting for a websocket connection")
		return nil
	}
}

// ServerConn is the server side of one accepted connection.
type ServerConn struct {
	t        *testing.T
	ws       *websocket.Conn
	RoomID   string
	PlayerID string
	Token    string

	intents chan protocol.Intent
	done    chan struct{}
}

func (sc *ServerConn) readLoop() {
	defer close(sc.done)
	for {
		_, data, err := sc.ws.Read(context.Background())
		if err != nil {
			close(sc.intents)
			return
		}
		var intent protocol.Intent
		if json.Unmarshal(data, &intent) != nil {
			continue
		}
		sc.intents <- intent
	}
}

// Send pushes one envelope to the client under test.
func (sc *ServerConn) Send(envType string, payload any) {
	sc.t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		sc.t.Fatalf("marshal %s payload: %v", envType, err)
	}
	env := protocol.Envelope{Type: envType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		sc.t.Fatalf("marshal %s envelope: %v", envType, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sc.ws.Write(ctx, websocket.MessageText, data); err != nil {
		sc.t.Fatalf("write %s: %v", envType, err)
	}
}

// SendRaw pushes raw bytes, for malformed-frame cases.
func (sc *ServerConn) SendRaw(data []byte) {
	sc.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sc.ws.Write(ctx, websocket.MessageText, data); err != nil {
		sc.t.Fatalf("write raw frame: %v", err)
	}
}

// NextIntent waits for the next intent from the client under test.
func (sc *ServerConn) NextIntent() protocol.Intent {
	sc.t.Helper()
	select {
	case intent, ok := <-sc.intents:
		if !ok {
			sc.t.Fatalf("connection closed while waiting for an intent")
		}
		return intent
	case <-time.After(2 * time.Second):
		sc.t.Fatalf("timed out waiting for an intent")
		return protocol.Intent{}
	}
}

// ExpectNoIntent asserts the client stays quiet for the given window.
func (sc *ServerConn) ExpectNoIntent(within time.Duration) {
	sc.t.Helper()
	select {
	case intent, ok := <-sc.intents:
		if ok {
			sc.t.Fatalf("expected no intent within %v, got %s", within, intent.Type)
		}
	case <-time.After(within):
	}
}

func (sc *ServerConn) Close() {
	_ = sc.ws.Close(websocket.StatusNormalClosure, "bye")
}
