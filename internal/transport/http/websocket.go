package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/internal/service/conversation"
	"github.com/sandevgo/knowbot/pkg/log"
)

const (
	frameChat     = "chat"
	frameThinking = "thinking"
	frameResponse = "response"
	frameError    = "error"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Turns queued per connection while one is being processed.
	wsQueueSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type frame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

func (c *wsConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r, "")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.FromCtx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	// The request context ends when the handler returns, so the connection
	// gets its own, detached from it but still carrying the logger.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	ctx = log.WithFields(ctx, "conn_id", connID, "session_id", sessionID)

	untrack := s.wsConn.add(connID, cancel, conn)
	go func() {
		defer untrack()
		s.serveWebSocket(ctx, cancel, &wsConn{conn: conn}, sessionID)
	}()
}

func (s *Server) serveWebSocket(ctx context.Context, cancel context.CancelFunc, c *wsConn, sessionID string) {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("websocket connected")

	jobs := make(chan string, wsQueueSize)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.wsWorker(ctx, c, sessionID, jobs)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	s.wsReadLoop(ctx, c, jobs)

	cancel()
	close(jobs)
	wg.Wait()
	_ = c.conn.Close()

	logger.Info().Msg("websocket disconnected")
}

func (s *Server) wsReadLoop(ctx context.Context, c *wsConn, jobs chan<- string) {
	logger := log.FromCtx(ctx)

	c.conn.SetReadLimit(maxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in frame
		if err := json.Unmarshal(data, &in); err != nil {
			_ = c.send(frame{Type: frameError, Message: "Invalid message format"})
			continue
		}
		if in.Type != frameChat {
			_ = c.send(frame{Type: frameError, Message: "Unsupported message type"})
			continue
		}

		select {
		case jobs <- in.Message:
		case <-ctx.Done():
			return
		default:
			_ = c.send(frame{Type: frameError, Message: "Too many messages in flight, slow down"})
		}
	}
}

func (s *Server) wsWorker(ctx context.Context, c *wsConn, sessionID string, jobs <-chan string) {
	logger := log.FromCtx(ctx)

	for msg := range jobs {
		if ctx.Err() != nil {
			continue
		}

		notify := func(stage conversation.Stage) {
			if stage == conversation.StageReceived {
				_ = c.send(frame{Type: frameThinking})
			}
		}

		reply, err := s.conv.HandleTurn(ctx, sessionID, msg, notify)
		switch {
		case err == nil:
			_ = c.send(frame{Type: frameResponse, Message: reply})
		case errors.Is(err, core.ErrInvalidInput):
			_ = c.send(frame{Type: frameError, Message: err.Error()})
		case ctx.Err() != nil:
			return
		default:
			logger.Error().Err(err).Msg("websocket turn failed")
			_ = c.send(frame{Type: frameError, Message: core.UserFacingError})
		}
	}
}

// connTracker remembers open WebSocket connections so Shutdown can close
// them; http.Server forgets hijacked connections.
type connTracker struct {
	mu    sync.Mutex
	conns map[string]trackedConn
}

type trackedConn struct {
	cancel context.CancelFunc
	conn   *websocket.Conn
}

func newConnTracker() *connTracker {
	return &connTracker{conns: make(map[string]trackedConn)}
}

func (t *connTracker) add(id string, cancel context.CancelFunc, conn *websocket.Conn) func() {
	t.mu.Lock()
	t.conns[id] = trackedConn{cancel: cancel, conn: conn}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.conns, id)
		t.mu.Unlock()
	}
}

func (t *connTracker) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.conns {
		c.cancel()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

func (t *connTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
