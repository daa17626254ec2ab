// Package cdp implements the page driver over the Chrome DevTools Protocol:
// a websocket connection carrying easyjson-framed protocol messages, with
// flattened session routing to the attached page target.
package cdp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/log"
)

const wsWriteBufferSize = 1 << 20

// Ensure Connection implements the cdp.Executor interface.
var _ cdp.Executor = &Connection{}

// Connection is the websocket connection to the browser and the root
// "browser session". Messages tagged with a session ID are routed to the
// matching attached Session; the rest belong to the root.
type Connection struct {
	wsURL  string
	logger *log.Logger
	conn   *websocket.Conn

	sendCh    chan *cdproto.Message
	done      chan struct{}
	closeOnce sync.Once
	msgID     int64

	pendingMu sync.Mutex
	pending   map[int64]chan *cdproto.Message

	sessionsMu sync.RWMutex
	sessions   map[target.SessionID]*Session
}

// NewConnection dials the browser's devtools websocket endpoint.
func NewConnection(ctx context.Context, wsURL string, logger *log.Logger) (*Connection, error) {
	wsd := websocket.Dialer{
		HandshakeTimeout: time.Minute,
		Proxy:            http.ProxyFromEnvironment,
		WriteBufferSize:  wsWriteBufferSize,
	}
	conn, _, err := wsd.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", wsURL, err)
	}

	c := &Connection{
		wsURL:    wsURL,
		logger:   logger,
		conn:     conn,
		sendCh:   make(chan *cdproto.Message, 32), // Avoid blocking in Execute
		done:     make(chan struct{}),
		pending:  make(map[int64]chan *cdproto.Message),
		sessions: make(map[target.SessionID]*Session),
	}
	go c.recvLoop()
	go c.sendLoop()
	return c, nil
}

// Done is closed once the connection is unusable.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close cleanly closes the websocket connection and all attached sessions.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(10*time.Second),
		)
		_ = c.conn.Close()

		c.sessionsMu.Lock()
		for id, s := range c.sessions {
			s.close()
			delete(c.sessions, id)
		}
		c.sessionsMu.Unlock()

		close(c.done)
	})
	return err
}

// AttachToTarget attaches to the given target with a flattened session and
// returns the session handle.
func (c *Connection) AttachToTarget(ctx context.Context, id target.ID) (*Session, error) {
	action := target.AttachToTarget(id).WithFlatten(true)
	sessionID, err := action.Do(cdp.WithExecutor(ctx, c))
	if err != nil {
		return nil, fmt.Errorf("attaching to target %q: %w", id, err)
	}
	return c.ensureSession(sessionID), nil
}

func (c *Connection) ensureSession(id target.SessionID) *Session {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	if s, ok := c.sessions[id]; ok {
		return s
	}
	s := newSession(c, id)
	c.sessions[id] = s
	return s
}

func (c *Connection) closeSession(id target.SessionID) {
	c.sessionsMu.Lock()
	if s, ok := c.sessions[id]; ok {
		s.close()
		delete(c.sessions, id)
	}
	c.sessionsMu.Unlock()
}

func (c *Connection) getSession(id target.SessionID) *Session {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()
	return c.sessions[id]
}

// Execute implements the cdp.Executor interface for the root session.
func (c *Connection) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&c.msgID, 1)
	msg := &cdproto.Message{ID: id, Method: cdproto.MethodType(method)}
	if params != nil {
		buf, err := easyjson.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = buf
	}
	return c.roundTrip(ctx, id, msg, res)
}

// roundTrip sends msg and blocks for the response with the matching id.
func (c *Connection) roundTrip(ctx context.Context, id int64, msg *cdproto.Message, res easyjson.Unmarshaler) error {
	ch := make(chan *cdproto.Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.enqueue(ctx, msg); err != nil {
		return err
	}
	select {
	case reply := <-ch:
		if reply.Error != nil {
			return reply.Error
		}
		if res != nil {
			return easyjson.Unmarshal(reply.Result, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return driver.ErrClosed
	}
}

func (c *Connection) enqueue(ctx context.Context, msg *cdproto.Message) error {
	select {
	case c.sendCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return driver.ErrClosed
	}
}

func (c *Connection) sendLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			buf, err := easyjson.Marshal(msg)
			if err != nil {
				c.logger.Errorf("cdp:send", "marshaling message: %v", err)
				continue
			}
			c.logger.Tracef("cdp:send", "-> %s", buf)
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				c.handleIOError(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) recvLoop() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			c.handleIOError(err)
			return
		}
		c.logger.Tracef("cdp:recv", "<- %s", buf)

		var msg cdproto.Message
		decoder := jlexer.Lexer{Data: buf}
		msg.UnmarshalEasyJSON(&decoder)
		if err := decoder.Error(); err != nil {
			c.logger.Errorf("cdp:recv", "malformed message: %v", err)
			continue
		}

		// Track attachment and detachment so sessions exist before any
		// session-tagged message needs routing.
		switch msg.Method {
		case cdproto.EventTargetAttachedToTarget:
			if ev, err := cdproto.UnmarshalMessage(&msg); err == nil {
				c.ensureSession(ev.(*target.EventAttachedToTarget).SessionID)
			}
		case cdproto.EventTargetDetachedFromTarget:
			if ev, err := cdproto.UnmarshalMessage(&msg); err == nil {
				c.closeSession(ev.(*target.EventDetachedFromTarget).SessionID)
			}
		}

		switch {
		case msg.SessionID != "":
			if s := c.getSession(msg.SessionID); s != nil {
				s.dispatch(&msg)
			}
		case msg.ID != 0:
			c.pendingMu.Lock()
			ch := c.pending[msg.ID]
			c.pendingMu.Unlock()
			if ch != nil {
				ch <- &msg
			}
		}
	}
}

func (c *Connection) handleIOError(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Errorf("cdp", "connection lost: %v", err)
	}
	_ = c.Close()
}
