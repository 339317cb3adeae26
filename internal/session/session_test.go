package session_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moonhowl/werewolf-client/internal/protocol"
	"github.com/moonhowl/werewolf-client/internal/session"
	"github.com/moonhowl/werewolf-client/internal/wolftest"
)

func newTokenStore(t *testing.T) *session.TokenStore {
	t.Helper()
	ts, err := session.OpenTokenStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })
	return ts
}

func TestTokenStore_RoundTrip(t *testing.T) {
	ts := newTokenStore(t)

	_, ok, err := ts.Lookup("room-1")
	require.NoError(t, err)
	assert.False(t, ok)

	creds := session.Credentials{PlayerID: "p1", Token: "tok-1"}
	require.NoError(t, ts.Save("room-1", creds))

	got, ok, err := ts.Lookup("room-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, creds, got)

	// Overwrite keeps one credential per room.
	require.NoError(t, ts.Save("room-1", session.Credentials{PlayerID: "p1", Token: "tok-2"}))
	got, _, err = ts.Lookup("room-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Token)

	require.NoError(t, ts.Delete("room-1"))
	_, ok, err = ts.Lookup("room-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcquireSession_JoinThenResume(t *testing.T) {
	srv := wolftest.New(t)
	ts := newTokenStore(t)
	m := session.NewManager(zap.NewNop(), srv.URL(), srv.SocketURL(), ts)

	ctx := context.Background()
	creds, err := m.AcquireSession(ctx, "room-1", "prof-1")
	require.NoError(t, err)
	require.NotEmpty(t, creds.PlayerID)
	require.NotEmpty(t, creds.Token)

	// Second acquisition resumes from the stored token; no second join call.
	again, err := m.AcquireSession(ctx, "room-1", "prof-1")
	require.NoError(t, err)
	assert.Equal(t, creds, again)
	assert.Equal(t, 1, srv.JoinCount("room-1"))
}

func TestAcquireSession_JoinFailures(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		detail  string
		wantErr error
	}{
		{name: "unknown room", code: http.StatusNotFound, detail: "Room not found", wantErr: session.ErrRoomNotFound},
		{name: "full room", code: http.StatusBadRequest, detail: "Room is full", wantErr: session.ErrRoomFull},
		{name: "other rejection", code: http.StatusForbidden, detail: "Game already started", wantErr: session.ErrJoinRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := wolftest.New(t)
			srv.RejectJoins(tc.code, tc.detail)
			m := session.NewManager(zap.NewNop(), srv.URL(), srv.SocketURL(), newTokenStore(t))

			_, err := m.AcquireSession(context.Background(), "room-x", "prof-1")
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestConnect_DeliversInboundInOrder(t *testing.T) {
	srv := wolftest.New(t)
	ts := newTokenStore(t)
	m := session.NewManager(zap.NewNop(), srv.URL(), srv.SocketURL(), ts)
	defer m.Close()

	ctx := context.Background()
	creds, err := m.AcquireSession(ctx, "room-1", "prof-1")
	require.NoError(t, err)

	conn, err := m.Connect(ctx, "room-1", creds)
	require.NoError(t, err)

	sc := srv.NextConn()
	assert.Equal(t, "room-1", sc.RoomID)
	assert.Equal(t, creds.PlayerID, sc.PlayerID)
	assert.Equal(t, creds.Token, sc.Token)

	// The open transition is signaled exactly once.
	select {
	case sig := <-conn.Signals():
		_, ok := sig.(session.Opened)
		require.True(t, ok, "want Opened, got %T", sig)
	case <-time.After(2 * time.Second):
		t.Fatal("no Opened signal")
	}

	sc.Send(protocol.TypeGameEvent, map[string]string{"message": "one"})
	sc.Send(protocol.TypeGameEvent, map[string]string{"message": "two"})

	for _, want := range []string{"one", "two"} {
		select {
		case raw := <-conn.Inbound():
			msg, err := protocol.Decode(raw)
			require.NoError(t, err)
			evt, ok := msg.(protocol.GameEvent)
			require.True(t, ok, "want GameEvent, got %T", msg)
			assert.Equal(t, want, evt.Message)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %q never arrived", want)
		}
	}
}

// The token is opaque to the client; reserved characters in it must survive
// the dial URL intact.
func TestConnect_EscapesTokenInDialURL(t *testing.T) {
	srv := wolftest.New(t)
	m := session.NewManager(zap.NewNop(), srv.URL(), srv.SocketURL(), newTokenStore(t))
	defer m.Close()

	creds := session.Credentials{PlayerID: "p1", Token: "t&k=#n?x"}
	conn, err := m.Connect(context.Background(), "room-1", creds)
	require.NoError(t, err)
	defer conn.Close()

	sc := srv.NextConn()
	assert.Equal(t, "p1", sc.PlayerID)
	assert.Equal(t, "t&k=#n?x", sc.Token)
}

func TestConnect_SendAfterCloseFails(t *testing.T) {
	srv := wolftest.New(t)
	m := session.NewManager(zap.NewNop(), srv.URL(), srv.SocketURL(), newTokenStore(t))

	ctx := context.Background()
	creds, err := m.AcquireSession(ctx, "room-1", "prof-1")
	require.NoError(t, err)
	conn, err := m.Connect(ctx, "room-1", creds)
	require.NoError(t, err)
	_ = srv.NextConn()

	conn.Close()
	conn.Close() // idempotent

	data, err := protocol.EncodeIntent(protocol.ReadyToggle())
	require.NoError(t, err)
	err = conn.Send(ctx, data)
	require.ErrorIs(t, err, session.ErrConnClosed)
}

func TestConnect_ServerCloseSignalsOnce(t *testing.T) {
	srv := wolftest.New(t)
	m := session.NewManager(zap.NewNop(), srv.URL(), srv.SocketURL(), newTokenStore(t))
	defer m.Close()

	ctx := context.Background()
	creds, err := m.AcquireSession(ctx, "room-1", "prof-1")
	require.NoError(t, err)
	conn, err := m.Connect(ctx, "room-1", creds)
	require.NoError(t, err)

	sc := srv.NextConn()
	drainOpened(t, conn)
	sc.Close()

	select {
	case sig := <-conn.Signals():
		_, ok := sig.(session.Closed)
		require.True(t, ok, "want Closed, got %T", sig)
	case <-time.After(2 * time.Second):
		t.Fatal("no Closed signal")
	}

	// The feed ends with the connection.
	select {
	case _, ok := <-conn.Inbound():
		assert.False(t, ok, "inbound channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("inbound channel never closed")
	}
}

func drainOpened(t *testing.T, conn *session.Conn) {
	t.Helper()
	select {
	case <-conn.Signals():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal")
	}
}
