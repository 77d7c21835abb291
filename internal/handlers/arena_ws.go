// internal/handlers/arena_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/middleware"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

const (
	outBuffer    = 32
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	maxFrameSize = 16 << 10
)

// wsClient is the presence.Sender of one socket. Send never blocks: a client
// whose buffer is full misses the event.
type wsClient struct {
	id      uuid.UUID
	OutChan chan protocol.Event

	mu     sync.Mutex
	closed bool
}

func newWSClient(id uuid.UUID) *wsClient {
	return &wsClient{id: id, OutChan: make(chan protocol.Event, outBuffer)}
}

func (c *wsClient) Send(ev protocol.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.OutChan <- ev:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.OutChan)
	}
}

// ArenaWSHandler upgrades /ws. A token may be supplied at the handshake as
// ?token= or the auth_token cookie; otherwise the client sends "authenticate".
func ArenaWSHandler(logger *logrus.Logger, s *ArenaServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{protocol.Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != protocol.Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the quizduel subprotocol")
			return
		}
		c.SetReadLimit(maxFrameSize)

		connID := uuid.New()
		client := newWSClient(connID)
		s.Connect(connID, client)
		middleware.LogWebSocketConnect(logger, connID, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if token := handshakeToken(r); token != "" {
			if err := s.Authenticate(ctx, connID, token); err != nil {
				s.Disconnect(connID)
				client.close()
				if code := apperr.CodeOf(err); code == apperr.CodeAuthFailed {
					writeDirect(ctx, c, protocol.NewEvent(protocol.EventAuthError, protocol.MessagePayload{Message: "invalid token"}))
					c.Close(InvalidAuthTokenError, "invalid auth token")
				} else {
					// the token may be fine, the client should retry later
					writeDirect(ctx, c, protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{
						Code:    code,
						Message: "authentication unavailable",
					}))
					c.Close(websocket.StatusTryAgainLater, "authentication unavailable")
				}
				middleware.LogWebSocketDisconnect(logger, connID, r.RemoteAddr, r.URL.Path, err)
				return
			}
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			writePump(ctx, c, client, logger)
			// a dead writer means a dead socket
			cancel()
		}()

		readErr := readPump(ctx, c, s, connID, logger)

		// forfeit handling runs while the sender is still registered, then the
		// writer drains and stops
		s.Disconnect(connID)
		client.close()
		cancel()
		wg.Wait()
		middleware.LogWebSocketDisconnect(logger, connID, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes frames and hands them to the arena one at a time.
func readPump(ctx context.Context, c *websocket.Conn, s *ArenaServer, connID uuid.UUID, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.WithField("conn_id", connID).Warnf("ignoring non-text frame of type %d", typ)
			continue
		}

		var msg protocol.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WithField("conn_id", connID).Warnf("invalid json: %v", err)
			s.reportError(connID, msg, apperr.Invalid("invalid JSON format"))
			continue
		}
		s.HandleMessage(ctx, connID, msg)
	}
}

// writePump serializes queued events onto the socket and keeps it alive with
// pings. It returns when OutChan is closed or a write fails.
func writePump(ctx context.Context, c *websocket.Conn, client *wsClient, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-client.OutChan:
			if !ok {
				return
			}
			if err := writeEvent(ctx, c, ev); err != nil {
				logger.WithField("conn_id", client.id).Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("conn_id", client.id).Warnf("failed to send ping: %v. Assuming disconnect.", err)
				return
			}
		case <-ctx.Done():
			// drain what the disconnect handling queued, best effort
			for ev := range client.OutChan {
				if err := writeEvent(context.Background(), c, ev); err != nil {
					return
				}
			}
			return
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}

// writeDirect writes outside the pump, for frames sent before it starts.
func writeDirect(ctx context.Context, c *websocket.Conn, ev protocol.Event) {
	_ = writeEvent(ctx, c, ev)
}

// handshakeToken reads ?token= first, then the auth_token cookie.
func handshakeToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return extractCookieToken(r.Header.Get("Cookie"), "auth_token")
}
