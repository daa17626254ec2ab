package cdp

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"

	"go.beacon.dev/beacon/driver"
)

// Ensure Session implements the cdp.Executor interface.
var _ cdp.Executor = &Session{}

// An Event is one protocol event delivered to a subscriber, with its payload
// already decoded into the matching cdproto domain type.
type Event struct {
	Method cdproto.MethodType
	Data   interface{}
}

// A Subscription delivers protocol events for a chosen set of methods. Its
// channel is buffered; events are dropped, with a log line, if the consumer
// falls too far behind.
type Subscription struct {
	C <-chan *Event

	ch      chan *Event
	methods map[cdproto.MethodType]struct{}
	once    sync.Once
	session *Session
}

// Cancel detaches the subscription from the session.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() {
		sub.session.unsubscribe(sub)
	})
}

const subscriptionBuffer = 256

// Session is a flattened protocol session attached to one target.
type Session struct {
	conn  *Connection
	id    target.SessionID
	msgID int64

	pendingMu sync.Mutex
	pending   map[int64]chan *cdproto.Message

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}

	closedOnce sync.Once
	done       chan struct{}
}

func newSession(conn *Connection, id target.SessionID) *Session {
	return &Session{
		conn:    conn,
		id:      id,
		pending: make(map[int64]chan *cdproto.Message),
		subs:    make(map[*Subscription]struct{}),
		done:    make(chan struct{}),
	}
}

// ID returns the protocol session identifier.
func (s *Session) ID() target.SessionID { return s.id }

// Done is closed when the session detaches or the connection dies.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) close() {
	s.closedOnce.Do(func() {
		close(s.done)
	})
}

// Subscribe returns a subscription delivering the given event methods.
func (s *Session) Subscribe(methods ...cdproto.MethodType) *Subscription {
	sub := &Subscription{
		ch:      make(chan *Event, subscriptionBuffer),
		methods: make(map[cdproto.MethodType]struct{}, len(methods)),
		session: s,
	}
	sub.C = sub.ch
	for _, m := range methods {
		sub.methods[m] = struct{}{}
	}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	return sub
}

func (s *Session) unsubscribe(sub *Subscription) {
	s.subsMu.Lock()
	delete(s.subs, sub)
	s.subsMu.Unlock()
}

// dispatch routes one incoming message for this session: command replies to
// their waiters, events to subscribers.
func (s *Session) dispatch(msg *cdproto.Message) {
	if msg.ID != 0 {
		s.pendingMu.Lock()
		ch := s.pending[msg.ID]
		s.pendingMu.Unlock()
		if ch != nil {
			ch <- msg
		}
		return
	}
	if msg.Method == "" {
		return
	}

	ev, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		// Most likely an event from an older browser that this cdproto
		// doesn't know about. Skip it.
		if _, ok := err.(cdp.ErrUnknownCommandOrEvent); ok {
			return
		}
		s.conn.logger.Errorf("cdp", "decoding event %s: %v", msg.Method, err)
		return
	}

	event := &Event{Method: msg.Method, Data: ev}
	s.subsMu.Lock()
	for sub := range s.subs {
		if _, ok := sub.methods[msg.Method]; !ok {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			s.conn.logger.Warnf("cdp", "dropping %s event, subscriber too slow", msg.Method)
		}
	}
	s.subsMu.Unlock()
}

// Execute implements the cdp.Executor interface for this session.
func (s *Session) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	select {
	case <-s.done:
		return driver.ErrClosed
	default:
	}

	id := atomic.AddInt64(&s.msgID, 1)
	msg := &cdproto.Message{
		ID:        id,
		SessionID: s.id,
		Method:    cdproto.MethodType(method),
	}
	if params != nil {
		buf, err := easyjson.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = buf
	}

	ch := make(chan *cdproto.Message, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.conn.enqueue(ctx, msg); err != nil {
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
	case <-s.done:
		return driver.ErrClosed
	}
}
