package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/platform/correlation"
)

// Subprotocol is the Sec-WebSocket-Protocol value of graphql-ws clients.
const Subprotocol = "graphql-transport-ws"

const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// Close codes defined by graphql-transport-ws.
const (
	CloseBadRequest               = 4400
	CloseUnauthorized             = 4401
	CloseSubprotocolNotAcceptable = 4406
	CloseInitTimeout              = 4408
	CloseSubscriberExists         = 4409
	CloseTooManyInits             = 4429
)

const (
	maxMessageBytes = 64 * 1024
	outboundBuffer  = 32
)

type WSConfig struct {
	InitTimeout  time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
}

var DefaultWSConfig = WSConfig{
	InitTimeout:  3 * time.Second,
	PingInterval: 30 * time.Second,
	PongWait:     60 * time.Second,
	WriteTimeout: 5 * time.Second,
}

type inMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WSHandler speaks graphql-transport-ws on upgraded connections.
type WSHandler struct {
	executor Executor
	clock    clockwork.Clock
	metrics  *metrics.WebSocketMetrics
	cfg      WSConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewWSHandler(executor Executor, clock clockwork.Clock, m *metrics.WebSocketMetrics, cfg WSConfig) *WSHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WSHandler{
		executor: executor,
		clock:    clock,
		metrics:  m,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Serve runs the protocol on conn and blocks until the socket is closed.
// ctx only contributes request-scoped values such as the correlation ID.
func (h *WSHandler) Serve(ctx context.Context, conn *websocket.Conn) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.closeConn(conn, websocket.CloseGoingAway, "Server shutting down")
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	if conn.Subprotocol() != Subprotocol {
		h.closeConn(conn, CloseSubprotocolNotAcceptable, "Subprotocol not acceptable")
		return
	}

	h.metrics.ActiveConnections.Inc()
	defer h.metrics.ActiveConnections.Dec()

	sessCtx, cancel := context.WithCancel(h.ctx)
	if id, ok := correlation.ID(ctx); ok {
		sessCtx = correlation.WithID(sessCtx, id)
	}

	s := &session{
		h:          h,
		conn:       conn,
		ctx:        sessCtx,
		cancel:     cancel,
		out:        make(chan outMessage, outboundBuffer),
		writerDone: make(chan struct{}),
		ops:        make(map[string]*operation),
	}

	slog.DebugContext(sessCtx, "WebSocket session opened", "remote", conn.RemoteAddr().String())
	s.run()
	slog.DebugContext(sessCtx, "WebSocket session closed", "remote", conn.RemoteAddr().String())
}

// Shutdown closes every open session with 1001 and waits for them to finish.
func (h *WSHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket sessions did not drain: %w", ctx.Err())
	}
}

func (h *WSHandler) closeConn(conn *websocket.Conn, code int, reason string) {
	h.metrics.ProtocolClosures.WithLabelValues(strconv.Itoa(code)).Inc()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, h.clock.Now().Add(h.cfg.WriteTimeout))
	_ = conn.Close()
}

type operation struct {
	seq    uint64
	cancel context.CancelFunc
}

type session struct {
	h      *WSHandler
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	out        chan outMessage
	writerDone chan struct{}
	closeOnce  sync.Once

	initReceived atomic.Bool
	acked        bool

	mu    sync.Mutex
	ops   map[string]*operation
	seq   uint64
	opsWG sync.WaitGroup
}

func (s *session) run() {
	initTimer := s.h.clock.AfterFunc(s.h.cfg.InitTimeout, func() {
		if !s.initReceived.Load() {
			s.closeWith(CloseInitTimeout, "Connection initialisation timeout")
		}
	})
	defer initTimer.Stop()

	go s.writeLoop()

	s.conn.SetReadLimit(maxMessageBytes)
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(s.ctx, "WebSocket read failed", "error", err)
			}
			break
		}
		s.extendReadDeadline()

		if !s.handle(data) {
			break
		}
	}

	s.closeWith(0, "")
	s.opsWG.Wait()
	<-s.writerDone
}

// closeWith sends a close frame with code (0 sends none), then tears the
// session down. Only the first call has an effect.
func (s *session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		if code != 0 {
			s.h.metrics.ProtocolClosures.WithLabelValues(strconv.Itoa(code)).Inc()
			slog.InfoContext(s.ctx, "Closing WebSocket", "code", code, "reason", reason)
			msg := websocket.FormatCloseMessage(code, reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.h.clock.Now().Add(s.h.cfg.WriteTimeout))
		}
		s.cancel()
		_ = s.conn.Close()
	})
}

func (s *session) writeLoop() {
	defer close(s.writerDone)

	ticker := s.h.clock.NewTicker(s.h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.ErrorContext(s.ctx, "Failed to encode protocol message", "type", msg.Type, "error", err)
				continue
			}
			s.extendWriteDeadline()
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.closeWith(0, "")
				return
			}
			s.h.metrics.MessagesSent.Inc()

		case <-ticker.Chan():
			s.extendWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.closeWith(0, "")
				return
			}

		case <-s.ctx.Done():
			if s.h.ctx.Err() != nil {
				s.closeWith(websocket.CloseGoingAway, "Server shutting down")
			}
			return
		}
	}
}

func (s *session) extendReadDeadline() {
	_ = s.conn.SetReadDeadline(s.h.clock.Now().Add(s.h.cfg.PongWait))
}

func (s *session) extendWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.h.clock.Now().Add(s.h.cfg.WriteTimeout))
}

func (s *session) send(ctx context.Context, msg outMessage) bool {
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// handle processes one client message and reports whether the session
// stays open.
func (s *session) handle(data []byte) bool {
	var msg inMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		s.closeWith(CloseBadRequest, "Invalid message received")
		return false
	}

	switch msg.Type {
	case msgConnectionInit:
		if !s.initReceived.CompareAndSwap(false, true) {
			s.closeWith(CloseTooManyInits, "Too many initialisation requests")
			return false
		}
		s.acked = true
		s.send(s.ctx, outMessage{Type: msgConnectionAck})

	case msgPing:
		s.send(s.ctx, outMessage{Type: msgPong})

	case msgPong:

	case msgSubscribe:
		return s.subscribe(msg)

	case msgComplete:
		s.cancelOperation(msg.ID)

	default:
		s.closeWith(CloseBadRequest, "Invalid message received")
		return false
	}
	return true
}

func (s *session) subscribe(msg inMessage) bool {
	if !s.acked {
		s.closeWith(CloseUnauthorized, "Unauthorized")
		return false
	}

	var req Request
	if msg.ID == "" || json.Unmarshal(msg.Payload, &req) != nil || strings.TrimSpace(req.Query) == "" {
		s.closeWith(CloseBadRequest, "Invalid message received")
		return false
	}

	s.mu.Lock()
	if _, exists := s.ops[msg.ID]; exists {
		s.mu.Unlock()
		s.closeWith(CloseSubscriberExists, "Subscriber for "+msg.ID+" already exists")
		return false
	}
	s.seq++
	opCtx, cancel := context.WithCancel(s.ctx)
	op := &operation{seq: s.seq, cancel: cancel}
	s.ops[msg.ID] = op
	s.opsWG.Add(1)
	s.mu.Unlock()

	go s.runOperation(opCtx, msg.ID, op, req)
	return true
}

func (s *session) cancelOperation(id string) {
	s.mu.Lock()
	op, ok := s.ops[id]
	if ok {
		delete(s.ops, id)
	}
	s.mu.Unlock()

	if ok {
		op.cancel()
	}
}

func (s *session) finishOperation(id string, op *operation) {
	s.mu.Lock()
	if current, ok := s.ops[id]; ok && current.seq == op.seq {
		delete(s.ops, id)
	}
	s.mu.Unlock()
	op.cancel()
}

func (s *session) runOperation(ctx context.Context, id string, op *operation, req Request) {
	defer s.opsWG.Done()
	defer s.finishOperation(id, op)

	kind := OperationType(req.Query, req.OperationName)
	label := kind
	if label == "" {
		label = "unknown"
	}
	s.h.metrics.OperationsTotal.WithLabelValues(label).Inc()
	s.h.metrics.ActiveOperations.Inc()
	defer s.h.metrics.ActiveOperations.Dec()

	if kind == opSubscription {
		if !s.streamSubscription(ctx, id, req) {
			return
		}
	} else {
		resp := s.h.executor.Exec(ctx, req)
		if IsRequestError(resp) {
			s.send(ctx, outMessage{ID: id, Type: msgError, Payload: resp.Errors})
			return
		}
		if !s.send(ctx, outMessage{ID: id, Type: msgNext, Payload: resp}) {
			return
		}
	}

	if ctx.Err() == nil {
		s.send(ctx, outMessage{ID: id, Type: msgComplete})
	}
}

// streamSubscription forwards every event as a next message. It returns
// false when the operation ended without a complete being due.
func (s *session) streamSubscription(ctx context.Context, id string, req Request) bool {
	stream, err := s.h.executor.Subscribe(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "Subscription rejected", "id", id, "error", err)
		s.send(ctx, outMessage{ID: id, Type: msgError, Payload: []*gqlerrors.QueryError{gqlerrors.Errorf("%s", err)}})
		return false
	}

	first := true
	for resp := range stream {
		if first && IsRequestError(resp) {
			s.send(ctx, outMessage{ID: id, Type: msgError, Payload: resp.Errors})
			return false
		}
		first = false

		if !s.send(ctx, outMessage{ID: id, Type: msgNext, Payload: resp}) {
			return false
		}
	}
	return true
}

// IsRequestError reports a response that failed before execution produced
// any data, which graphql-transport-ws signals with an error message.
func IsRequestError(resp *graphql.Response) bool {
	return resp != nil && len(resp.Data) == 0 && len(resp.Errors) > 0
}
