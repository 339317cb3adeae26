package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var ErrConnClosed = errors.New("connection closed")

// Signal is a connection lifecycle notification. Each transition is
// delivered at most once.
type Signal interface{ isSignal() }

type Opened struct{}

type Closed struct{ Err error }

// TransportErr is a non-fatal transport-level problem, e.g. a frame that
// could not be read cleanly before the close.
type TransportErr struct{ Err error }

func (Opened) isSignal()       {}
func (Closed) isSignal()       {}
func (TransportErr) isSignal() {}

// Conn is one live persistent connection. It owns its socket outright; the
// handle lives exactly as long as room membership, not process lifetime.
type Conn struct {
	ws     *websocket.Conn
	logger *zap.Logger

	inbound chan []byte
	signals chan Signal

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
}

func dial(ctx context.Context, logger *zap.Logger, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrConnClosed, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:      ws,
		logger:  logger,
		inbound: make(chan []byte, 16),
		signals: make(chan Signal, 4),
		ctx:     connCtx,
		cancel:  cancel,
	}

	c.signal(Opened{})
	go c.readLoop()
	return c, nil
}

// Inbound is the raw message feed, in transport delivery order. Closed when
// the connection ends, however it ends.
func (c *Conn) Inbound() <-chan []byte { return c.inbound }

// Signals delivers Opened/Closed/TransportErr, each at most once per
// transition.
func (c *Conn) Signals() <-chan Signal { return c.signals }

// Send writes one outbound frame. Fails once the connection is closed; no
// intent ever leaves after Close.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return nil
}

// Close releases the socket and stops the reader. Idempotent, synchronous:
// when it returns, Send is already rejecting.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
	})
}

func (c *Conn) readLoop() {
	defer close(c.inbound)
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.closed.Store(true)
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.signal(Closed{})
			default:
				if c.ctx.Err() != nil {
					// Local Close, not a transport failure.
					c.signal(Closed{})
				} else {
					c.signal(Closed{Err: err})
				}
			}
			return
		}

		select {
		case c.inbound <- data:
		case <-c.ctx.Done():
			c.signal(Closed{})
			return
		}
	}
}

func (c *Conn) signal(s Signal) {
	select {
	case c.signals <- s:
	default:
		c.logger.Warn("dropping connection signal", zap.Any("signal", s))
	}
}
