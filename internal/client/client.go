// Package client runs the single logical thread of the game client: one
// actor goroutine that owns the room snapshot, the panel machine, and the
// event log, and that serializes inbound messages, the 1 Hz countdown tick,
// and render-layer commands so no state is ever touched concurrently.
package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/moonhowl/werewolf-client/internal/game"
	"github.com/moonhowl/werewolf-client/internal/gamelog"
	"github.com/moonhowl/werewolf-client/internal/panel"
	"github.com/moonhowl/werewolf-client/internal/protocol"
	"github.com/moonhowl/werewolf-client/internal/session"
	"github.com/moonhowl/werewolf-client/internal/state"
)

// Transport is the slice of session.Conn the loop needs. *session.Conn
// satisfies it; tests plug in channel fakes.
type Transport interface {
	Inbound() <-chan []byte
	Signals() <-chan session.Signal
	Send(ctx context.Context, data []byte) error
	Close()
}

// Msg is a render-layer command. Everything the UI may do funnels through
// the inbox so it runs on the loop goroutine.
type Msg interface{ isClientMsg() }

type Select struct{ TargetID string }

type UseSave struct{}

type Confirm struct{}

// SkipAction declines the current night-action grant without a target.
type SkipAction struct{}

type StartGame struct{}

type TakeSeat struct{ Seat int }

type ReadyToggle struct{}

type SheriffWithdraw struct{}

type GetView struct{ Reply chan View }

func (Select) isClientMsg()          {}
func (UseSave) isClientMsg()         {}
func (Confirm) isClientMsg()         {}
func (SkipAction) isClientMsg()      {}
func (StartGame) isClientMsg()       {}
func (TakeSeat) isClientMsg()        {}
func (ReadyToggle) isClientMsg()     {}
func (SheriffWithdraw) isClientMsg() {}
func (GetView) isClientMsg()         {}

// View is a copied read model for the render layer. Nothing in it aliases
// loop-owned state.
type View struct {
	Room      *game.State
	MyRole    game.Role
	Teammates []string
	Panel     panel.Kind
	Selection string
	Remaining int
	Timed     bool
	Connected bool
	Log       []string
}

type Client struct {
	logger *zap.Logger

	conn   Transport
	store  *state.Store
	panels *panel.Machine
	log    *gamelog.Log

	inbox     chan Msg
	connected bool
	// startRequested enforces single-intent-then-wait for the host's
	// StartGame affordance; cleared by the next phase change.
	startRequested bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a client around an open connection and starts its loop. The
// store is always rebuilt from scratch here: a resumed connection gets a
// fresh snapshot from the server, never carried-over local state.
func New(parent context.Context, logger *zap.Logger, tmpl game.Template, conn Transport, localPlayerID string) *Client {
	ctx, cancel := context.WithCancel(parent)

	store := state.New(tmpl)
	store.Bind(localPlayerID)

	c := &Client{
		logger:    logger,
		conn:      conn,
		store:     store,
		panels:    panel.NewMachine(),
		log:       gamelog.New(),
		inbox:     make(chan Msg, 16),
		connected: true,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Client) Inbox() chan<- Msg { return c.inbox }

// Stop cancels the loop, which synchronously stops the ticker and releases
// the transport before Done is closed.
func (c *Client) Stop() { c.cancel() }

func (c *Client) Done() <-chan struct{} { return c.done }

// View is a convenience wrapper around the GetView message. It never blocks
// past the loop's lifetime: a Stop racing the request yields a zero View.
func (c *Client) View() View {
	reply := make(chan View, 1)
	select {
	case c.inbox <- GetView{Reply: reply}:
	case <-c.done:
		return View{}
	}
	select {
	case v := <-reply:
		return v
	case <-c.done:
		return View{}
	}
}

func (c *Client) loop() {
	defer close(c.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer c.conn.Close()

	inbound := c.conn.Inbound()
	for {
		select {
		case <-c.ctx.Done():
			return

		case raw, ok := <-inbound:
			if !ok {
				// A nil channel blocks forever, so the loop idles on the
				// remaining channels instead of spinning on the closed feed.
				inbound = nil
				c.connected = false
				continue
			}
			c.handleInbound(raw)

		case sig := <-c.conn.Signals():
			c.handleSignal(sig)

		case <-ticker.C:
			c.store.Tick(time.Now())

		case m := <-c.inbox:
			c.handleCommand(m)
		}
	}
}

func (c *Client) handleInbound(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		// Malformed frame: visible trace, state untouched.
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		c.log.Append("Received a malformed message from the server.")
		return
	}

	result, err := c.store.Apply(msg)
	if err != nil {
		c.logger.Warn("event not applied", zap.Error(err))
		c.log.Append("Ignored an out-of-order server event.")
		return
	}

	if result.PhaseChanged {
		// The single reset point for all ephemeral panel state.
		c.panels.Reset()
		c.startRequested = false
		c.store.Tick(time.Now())
	}

	switch msg.(type) {
	case protocol.WerewolfGrant, protocol.WitchGrant, protocol.SeerGrant, protocol.GuardGrant:
		c.panels.ApplyGrant(msg, c.store.Self())
	default:
		c.panels.SyncPhase(c.store.Room(), c.store.Self())
	}

	if line, ok := gamelog.Project(msg, c.store.Room()); ok {
		c.log.Append(line)
	}
}

func (c *Client) handleSignal(sig session.Signal) {
	switch s := sig.(type) {
	case session.Opened:
		c.connected = true
		c.log.Append("Connected to the room.")
	case session.Closed:
		c.connected = false
		if s.Err != nil {
			c.log.Append("Connection lost.")
			c.logger.Warn("connection lost", zap.Error(s.Err))
		} else {
			c.log.Append("Disconnected.")
		}
	case session.TransportErr:
		c.log.Append("Connection trouble.")
		c.logger.Warn("transport error", zap.Error(s.Err))
	}
}

func (c *Client) handleCommand(m Msg) {
	switch cmd := m.(type) {
	case GetView:
		select {
		case cmd.Reply <- c.buildView():
		case <-c.ctx.Done():
		}

	case Select:
		if err := c.panels.Select(cmd.TargetID); err != nil {
			c.logger.Debug("selection rejected", zap.String("target", cmd.TargetID), zap.Error(err))
		}

	case UseSave:
		if err := c.panels.UseSave(); err != nil {
			c.logger.Debug("save rejected", zap.Error(err))
		}

	case Confirm:
		intent, err := c.panels.Confirm()
		if err != nil {
			c.logger.Debug("confirm rejected", zap.Error(err))
			return
		}
		c.send(intent)

	case SkipAction:
		intent, err := c.panels.Skip()
		if err != nil {
			c.logger.Debug("skip rejected", zap.Error(err))
			return
		}
		c.send(intent)

	case StartGame:
		c.handleStartGame()

	case TakeSeat:
		c.handleTakeSeat(cmd.Seat)

	case ReadyToggle:
		if self := c.store.Self(); self == nil || !self.IsAlive {
			return
		}
		if room := c.store.Room(); room == nil || room.Phase != game.PhaseLobby {
			return
		}
		c.send(protocol.ReadyToggle())

	case SheriffWithdraw:
		if c.panels.Kind() != panel.SheriffElection {
			return
		}
		c.send(protocol.SheriffWithdraw())
	}
}

// handleStartGame is host-only, lobby-only, and single-intent-then-wait.
func (c *Client) handleStartGame() {
	room := c.store.Room()
	if room == nil || room.Phase != game.PhaseLobby {
		return
	}
	self := c.store.Self()
	if self == nil || room.HostID != self.ID && room.HostID != self.ProfileID {
		return
	}
	if c.startRequested {
		return
	}
	c.startRequested = true
	c.send(protocol.StartGame())
}

func (c *Client) handleTakeSeat(seat int) {
	room := c.store.Room()
	self := c.store.Self()
	if room == nil || self == nil || room.Phase != game.PhaseLobby {
		return
	}
	if !c.store.Template().ValidSeat(seat) || room.SeatTaken(seat, self.ID) {
		return
	}
	c.send(protocol.TakeSeat(seat))
}

func (c *Client) send(intent protocol.Intent) {
	data, err := protocol.EncodeIntent(intent)
	if err != nil {
		c.logger.Error("cannot encode intent", zap.String("type", intent.Type), zap.Error(err))
		return
	}
	if err := c.conn.Send(c.ctx, data); err != nil {
		if !errors.Is(err, session.ErrConnClosed) {
			c.logger.Warn("send failed", zap.String("type", intent.Type), zap.Error(err))
		}
		c.connected = false
		c.log.Append("Could not reach the server.")
	}
}

func (c *Client) buildView() View {
	remaining, timed := c.store.Remaining()
	return View{
		Room:      c.store.Room(),
		MyRole:    c.store.MyRole(),
		Teammates: c.store.Teammates(),
		Panel:     c.panels.Kind(),
		Selection: c.panels.Selection(),
		Remaining: remaining,
		Timed:     timed,
		Connected: c.connected,
		Log:       c.log.Lines(),
	}
}
