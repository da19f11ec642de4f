// Package wsclient implements a reconnecting WebSocket session with
// request/response correlation, used for both the public market-data
// stream and the authenticated user-data stream.
//
// A Session auto-reconnects with exponential backoff (1s -> 30s max),
// replays every subscription recorded in its "recipe" on reconnect, and
// lets callers make request/response style calls (Call) over the same
// connection the push events arrive on, keyed by an id the caller supplies
// and an IDExtractor that pulls that id back out of raw server frames.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// IDExtractor pulls a correlation id out of a raw server frame. ok is false
// for frames that carry no id (unsolicited push events).
type IDExtractor func(raw []byte) (id string, ok bool)

// Handler processes a raw server frame that did not correlate to any
// pending Call (i.e. an unsolicited push event).
type Handler func(ctx context.Context, raw []byte)

// RecipeStep is one subscription to replay on every (re)connect.
type RecipeStep struct {
	Message any
}

// Session manages one WebSocket connection with reconnect and call
// correlation.
type Session struct {
	url         string
	idExtractor IDExtractor
	handler     Handler
	logger      *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	recipeMu sync.Mutex
	recipe   []RecipeStep

	waitersMu sync.Mutex
	waiters   map[string]chan []byte
}

// New creates a Session. idExtractor and handler must be non-nil.
func New(url string, idExtractor IDExtractor, handler Handler, logger *slog.Logger) *Session {
	return &Session{
		url:         url,
		idExtractor: idExtractor,
		handler:     handler,
		logger:      logger,
		waiters:     make(map[string]chan []byte),
	}
}

// Run connects and maintains the connection with auto-reconnect, replaying
// the recipe on every successful connect. Blocks until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// AddRecipeStep records a subscription message to be (re)sent on every
// connect, including the one about to happen.
func (s *Session) AddRecipeStep(msg any) {
	s.recipeMu.Lock()
	s.recipe = append(s.recipe, RecipeStep{Message: msg})
	s.recipeMu.Unlock()
}

// Call sends msg and blocks until a frame correlating to id arrives or ctx
// is done. Call applies no timeout of its own; the wait is bounded only by
// ctx.
func (s *Session) Call(ctx context.Context, id string, msg any) ([]byte, error) {
	const op = "wsclient.Call"
	if id == "" {
		return nil, errs.Client(op, "msg id required")
	}

	ch := make(chan []byte, 1)
	s.waitersMu.Lock()
	s.waiters[id] = ch
	s.waitersMu.Unlock()
	defer func() {
		s.waitersMu.Lock()
		delete(s.waiters, id)
		s.waitersMu.Unlock()
	}()

	if err := s.writeJSON(msg); err != nil {
		return nil, errs.Network(op, err, "send call")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw := <-ch:
		return raw, nil
	}
}

func (s *Session) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	s.recipeMu.Lock()
	steps := append([]RecipeStep(nil), s.recipe...)
	s.recipeMu.Unlock()
	for _, step := range steps {
		if err := s.writeJSON(step.Message); err != nil {
			return fmt.Errorf("replay recipe: %w", err)
		}
	}

	s.logger.Info("websocket connected", "url", s.url)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		s.dispatch(ctx, msg)
	}
}

func (s *Session) dispatch(ctx context.Context, raw []byte) {
	if id, ok := s.idExtractor(raw); ok {
		s.waitersMu.Lock()
		ch, found := s.waiters[id]
		s.waitersMu.Unlock()
		if found {
			select {
			case ch <- raw:
			default:
			}
			return
		}
	}
	s.handler(ctx, raw)
}

func (s *Session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Session) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Session) writeMessage(msgType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(msgType, data)
}

// Close closes the current connection's underlying network connection, if
// any, without sending a close frame. Run is not stopped by Close: it keeps
// reconnecting until its ctx is cancelled.
func (s *Session) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// ExtractJSONID is a ready-made IDExtractor for servers that echo the
// caller-supplied id back as a top-level JSON "id" field (Binance's
// WebSocket API request/response convention).
func ExtractJSONID(raw []byte) (string, bool) {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.ID) == 0 {
		return "", false
	}
	id := string(envelope.ID)
	if len(id) >= 2 && id[0] == '"' && id[len(id)-1] == '"' {
		id = id[1 : len(id)-1]
	}
	return id, true
}
